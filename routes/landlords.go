package routes

import (
	"ratemylandlord-server/utils"

	"github.com/kataras/iris/v12"
)

// ListLandlords returns the landlords visible to the caller. If the
// database is unreachable the last list served is returned with a warning.
func (h *Handlers) ListLandlords(ctx iris.Context) {
	viewer := viewerOf(ctx)
	landlords, err := h.store.ListLandlords(ctx.Request().Context(), viewer)
	if err != nil {
		cached, ok := h.store.CachedLandlords(viewer)
		if !ok {
			h.respondError(ctx, err)
			return
		}
		h.logger.Warn().Err(err).Msg("serving cached landlord list")
		utils.JSONWarning(ctx, cached, "Showing previously loaded landlords; the list could not be refreshed.")
		return
	}
	utils.JSONList(ctx, landlords, len(landlords))
}

func (h *Handlers) GetLandlord(ctx iris.Context) {
	id := ctx.Params().GetUintDefault("id", 0)
	landlord, err := h.store.GetLandlord(ctx.Request().Context(), viewerOf(ctx), id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(landlord)
}

// AddLandlord submits a new landlord for moderation, optionally with a
// first review and its verification document.
func (h *Handlers) AddLandlord(ctx iris.Context) {
	in, file, err := readLandlordSubmission(ctx)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}
	defer closeUpload(file)

	result, err := h.store.AddLandlord(ctx.Request().Context(), viewerOf(ctx), in.Landlord, in.Review, file)
	if err != nil {
		if result != nil && h.respondPartial(ctx, result, err) {
			return
		}
		h.respondError(ctx, err)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(result)
}

func (h *Handlers) ListLandlordReviews(ctx iris.Context) {
	id := ctx.Params().GetUintDefault("id", 0)
	reviews, err := h.store.GetReviewsForLandlord(ctx.Request().Context(), viewerOf(ctx), id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	utils.JSONList(ctx, reviews, len(reviews))
}

func (h *Handlers) AddReview(ctx iris.Context) {
	id := ctx.Params().GetUintDefault("id", 0)
	in, file, err := readReviewSubmission(ctx)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}
	defer closeUpload(file)

	review, err := h.store.AddReview(ctx.Request().Context(), viewerOf(ctx), id, *in, file)
	if err != nil {
		if review != nil && h.respondPartial(ctx, review, err) {
			return
		}
		h.respondError(ctx, err)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(review)
}
