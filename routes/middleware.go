package routes

import (
	"ratemylandlord-server/services"
	"ratemylandlord-server/utils"

	"github.com/kataras/iris/v12"
)

const (
	viewerKey    = "viewer"
	sessionKey   = "session"
	adminHintKey = "adminHint"
)

// OptionalAuth attaches the caller's viewer when a valid bearer token is
// present and an anonymous one otherwise.
func (h *Handlers) OptionalAuth(ctx iris.Context) {
	viewer := services.Viewer{IP: utils.ClientIP(ctx)}
	if token := utils.BearerToken(ctx); token != "" {
		sess, v, err := h.sessions.Current(ctx.Request().Context(), token)
		if err == nil {
			v.IP = viewer.IP
			viewer = h.withAllowList(ctx, v)
			ctx.Values().Set(sessionKey, sess)
		}
	}
	ctx.Values().Set(viewerKey, viewer)
	ctx.Next()
}

// RequireAuth rejects requests without a live session.
func (h *Handlers) RequireAuth(ctx iris.Context) {
	token := utils.BearerToken(ctx)
	if token == "" {
		utils.JSONError(ctx, iris.StatusUnauthorized, "unauthorized", "Sign in to continue.")
		return
	}
	sess, viewer, err := h.sessions.Current(ctx.Request().Context(), token)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	viewer.IP = utils.ClientIP(ctx)
	viewer = h.withAllowList(ctx, viewer)
	ctx.Values().Set(sessionKey, sess)
	ctx.Values().Set(viewerKey, viewer)
	ctx.Next()
}

// AdminOnly must run after RequireAuth. It asks the allow-list directly;
// the cached flag on the viewer is never trusted for enforcement.
func (h *Handlers) AdminOnly(ctx iris.Context) {
	viewer := viewerOf(ctx)
	isAdmin, err := h.admins.IsAdminEmail(ctx.Request().Context(), viewer.Email)
	if err != nil {
		h.logger.Error().Err(err).Str("email", viewer.Email).Msg("admin allow-list lookup failed")
		utils.CreateInternalServerError(ctx)
		return
	}
	if !isAdmin {
		utils.JSONError(ctx, iris.StatusForbidden, "forbidden", "Administrator access required.")
		return
	}
	viewer.IsAdmin = true
	ctx.Values().Set(viewerKey, viewer)
	ctx.Next()
}

// withAllowList replaces the cached admin hint on viewer with the
// allow-list's answer, which is what visibility decisions run on. The hint
// is kept for /api/auth/me. A failed lookup counts as non-admin.
func (h *Handlers) withAllowList(ctx iris.Context, viewer services.Viewer) services.Viewer {
	ctx.Values().Set(adminHintKey, viewer.IsAdmin)
	isAdmin, err := h.admins.IsAdminEmail(ctx.Request().Context(), viewer.Email)
	if err != nil {
		h.logger.Warn().Err(err).Str("email", viewer.Email).Msg("admin allow-list lookup failed, treating as non-admin")
		isAdmin = false
	}
	viewer.IsAdmin = isAdmin
	return viewer
}

func viewerOf(ctx iris.Context) services.Viewer {
	if v, ok := ctx.Values().Get(viewerKey).(services.Viewer); ok {
		return v
	}
	return services.Viewer{IP: utils.ClientIP(ctx)}
}

func sessionOf(ctx iris.Context) *services.Session {
	sess, _ := ctx.Values().Get(sessionKey).(*services.Session)
	return sess
}
