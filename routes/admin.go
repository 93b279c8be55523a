package routes

import (
	"context"

	"ratemylandlord-server/models"
	"ratemylandlord-server/services"
	"ratemylandlord-server/utils"

	"github.com/kataras/iris/v12"
)

func (h *Handlers) AdminPendingLandlords(ctx iris.Context) {
	landlords, err := h.moderation.PendingLandlords(ctx.Request().Context())
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	utils.JSONList(ctx, landlords, len(landlords))
}

func (h *Handlers) AdminPendingReviews(ctx iris.Context) {
	reviews, err := h.moderation.PendingReviews(ctx.Request().Context())
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	utils.JSONList(ctx, reviews, len(reviews))
}

type (
	landlordDecision func(ctx context.Context, viewer services.Viewer, id uint, d services.Decision) (*models.Landlord, error)
	reviewDecision   func(ctx context.Context, viewer services.Viewer, id uint, d services.Decision) (*models.Review, error)
)

func readDecision(ctx iris.Context) (services.Decision, bool) {
	var d services.Decision
	if err := ctx.ReadJSON(&d); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return d, false
	}
	return d, true
}

func (h *Handlers) AdminApproveLandlord(ctx iris.Context) {
	h.decideLandlord(ctx, h.moderation.ApproveLandlord)
}

func (h *Handlers) AdminRejectLandlord(ctx iris.Context) {
	h.decideLandlord(ctx, h.moderation.RejectLandlord)
}

func (h *Handlers) AdminVerifyReview(ctx iris.Context) {
	h.decideReview(ctx, h.moderation.VerifyReview)
}

func (h *Handlers) AdminRejectReviewVerification(ctx iris.Context) {
	h.decideReview(ctx, h.moderation.RejectReviewVerification)
}

func (h *Handlers) decideLandlord(ctx iris.Context, decide landlordDecision) {
	d, ok := readDecision(ctx)
	if !ok {
		return
	}
	landlord, err := decide(ctx.Request().Context(), viewerOf(ctx), ctx.Params().GetUintDefault("id", 0), d)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(landlord)
}

func (h *Handlers) decideReview(ctx iris.Context, decide reviewDecision) {
	d, ok := readDecision(ctx)
	if !ok {
		return
	}
	review, err := decide(ctx.Request().Context(), viewerOf(ctx), ctx.Params().GetUintDefault("id", 0), d)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(review)
}

func (h *Handlers) AdminDeleteReview(ctx iris.Context) {
	if err := h.store.DeleteReview(ctx.Request().Context(), viewerOf(ctx), ctx.Params().GetUintDefault("id", 0)); err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.StatusCode(iris.StatusNoContent)
}

func (h *Handlers) AdminRestoreReview(ctx iris.Context) {
	if err := h.store.RestoreReview(ctx.Request().Context(), viewerOf(ctx), ctx.Params().GetUintDefault("id", 0)); err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.StatusCode(iris.StatusNoContent)
}

// AdminAuditTrail lists the moderation decisions taken on one resource.
func (h *Handlers) AdminAuditTrail(ctx iris.Context) {
	resourceType := ctx.Params().Get("type")
	if resourceType != "landlord" && resourceType != "review" {
		utils.CreateNotFound(ctx)
		return
	}
	entries, err := h.audit.ListAudit(ctx.Request().Context(), resourceType, ctx.Params().GetUintDefault("id", 0))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	utils.JSONList(ctx, entries, len(entries))
}
