package routes

import (
	"errors"
	"net/url"
	"strconv"

	"ratemylandlord-server/services"
	"ratemylandlord-server/utils"

	"github.com/kataras/iris/v12"
)

// Client pages the verify endpoint redirects to.
const (
	signupLandingPath   = "/verify-email"
	recoveryLandingPath = "/"
)

type CredentialsInput struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	CaptchaToken string `json:"captchaToken"`
}

type EmailInput struct {
	Email        string `json:"email"`
	CaptchaToken string `json:"captchaToken"`
}

type UpdatePasswordInput struct {
	Password string `json:"password" validate:"required"`
}

type CallbackInput struct {
	Fragment string `json:"fragment"`
}

func (h *Handlers) Register(ctx iris.Context) {
	var in CredentialsInput
	if err := ctx.ReadJSON(&in); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	user, err := h.sessions.Register(ctx.Request().Context(), in.Email, in.Password, in.CaptchaToken, utils.ClientIP(ctx))
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(iris.Map{
		"user":    services.SessionUser{ID: user.ID, Email: user.Email},
		"message": "Check your e-mail to confirm your account.",
	})
}

func (h *Handlers) Login(ctx iris.Context) {
	var in CredentialsInput
	if err := ctx.ReadJSON(&in); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	sess, err := h.sessions.Login(ctx.Request().Context(), in.Email, in.Password)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(sess)
}

func (h *Handlers) Logout(ctx iris.Context) {
	if err := h.sessions.Logout(ctx.Request().Context(), utils.BearerToken(ctx)); err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.StatusCode(iris.StatusNoContent)
}

// ResendConfirmation answers the same way whether or not the address is
// known.
func (h *Handlers) ResendConfirmation(ctx iris.Context) {
	var in EmailInput
	if err := ctx.ReadJSON(&in); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}
	if err := h.sessions.ResendConfirmation(ctx.Request().Context(), in.Email); err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(iris.Map{"message": "If that account is waiting for confirmation, a new e-mail is on its way."})
}

func (h *Handlers) ForgotPassword(ctx iris.Context) {
	var in EmailInput
	if err := ctx.ReadJSON(&in); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}
	if err := h.sessions.ResetPassword(ctx.Request().Context(), in.Email, in.CaptchaToken, utils.ClientIP(ctx)); err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(iris.Map{"message": "If an account exists for that address, a reset link has been sent."})
}

func (h *Handlers) Refresh(ctx iris.Context) {
	var in utils.RefreshTokenInput
	if err := ctx.ReadJSON(&in); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}
	sess, err := h.sessions.Refresh(ctx.Request().Context(), in.RefreshToken)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(sess)
}

// Me returns the signed-in user and the cached admin hint the client uses
// to show or hide admin navigation.
func (h *Handlers) Me(ctx iris.Context) {
	hint, _ := ctx.Values().Get(adminHintKey).(bool)
	ctx.JSON(iris.Map{
		"user":    sessionOf(ctx).User,
		"isAdmin": hint,
	})
}

// UpdatePassword changes the password of the signed-in user.
func (h *Handlers) UpdatePassword(ctx iris.Context) {
	var in UpdatePasswordInput
	if err := ctx.ReadJSON(&in); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}
	if err := h.sessions.UpdatePassword(ctx.Request().Context(), utils.BearerToken(ctx), in.Password); err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.StatusCode(iris.StatusNoContent)
}

// Verify consumes an e-mail link and sends the browser back to the client
// with the session, or the failure, in the URL fragment.
func (h *Handlers) Verify(ctx iris.Context) {
	token := ctx.URLParam("token")
	kind := ctx.URLParamDefault("type", services.LinkSignup)

	landing := signupLandingPath
	if kind == services.LinkRecovery {
		landing = recoveryLandingPath
	}

	fragment := url.Values{}
	sess, err := h.identity.VerifyOTP(ctx.Request().Context(), token, kind)
	switch {
	case err == nil:
		fragment.Set("access_token", sess.AccessToken)
		fragment.Set("refresh_token", sess.RefreshToken)
		fragment.Set("expires_in", strconv.FormatInt(sess.ExpiresIn, 10))
		fragment.Set("type", kind)
	case errors.Is(err, services.ErrOTPExpired):
		fragment.Set("error", "access_denied")
		fragment.Set("error_code", "otp_expired")
		fragment.Set("error_description", "Email link is invalid or has expired")
	case errors.Is(err, services.ErrOTPInvalid):
		fragment.Set("error", "access_denied")
		fragment.Set("error_code", "invalid_link")
		fragment.Set("error_description", "Email link is invalid or has expired")
	default:
		h.logger.Error().Err(err).Msg("verify link failed")
		fragment.Set("error", "server_error")
		fragment.Set("error_description", "Something went wrong. Please try again.")
	}

	ctx.Redirect(h.appURL+landing+"#"+fragment.Encode(), iris.StatusSeeOther)
}

// Callback runs the redirect handshake for a fragment the client received.
func (h *Handlers) Callback(ctx iris.Context) {
	var in CallbackInput
	if err := ctx.ReadJSON(&in); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}
	ctx.JSON(h.handshake.Run(ctx.Request().Context(), in.Fragment))
}

// CheckReset tells the set-new-password page whether to show its form.
func (h *Handlers) CheckReset(ctx iris.Context) {
	var in services.ResetCheck
	if err := ctx.ReadJSON(&in); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}
	in.AccessToken = utils.BearerToken(ctx)
	ctx.JSON(h.reset.Check(ctx.Request().Context(), in))
}

func (h *Handlers) CompleteReset(ctx iris.Context) {
	var in services.ResetRequest
	if err := ctx.ReadJSON(&in); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}
	in.AccessToken = utils.BearerToken(ctx)

	if err := h.reset.Complete(ctx.Request().Context(), in); err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(iris.Map{"message": "Your password has been updated. Please sign in with your new password."})
}
