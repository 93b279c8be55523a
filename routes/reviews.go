package routes

import (
	"ratemylandlord-server/utils"

	"github.com/kataras/iris/v12"
)

// GetReview loads a review for its edit form.
func (h *Handlers) GetReview(ctx iris.Context) {
	id := ctx.Params().GetUintDefault("id", 0)
	review, err := h.store.GetReview(ctx.Request().Context(), viewerOf(ctx), id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(review)
}

// EditReview updates the caller's own review. Attaching a file replaces any
// previous one and resets verification to pending.
func (h *Handlers) EditReview(ctx iris.Context) {
	id := ctx.Params().GetUintDefault("id", 0)
	in, file, err := readReviewSubmission(ctx)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}
	defer closeUpload(file)

	review, err := h.store.EditReview(ctx.Request().Context(), viewerOf(ctx), id, *in, file)
	if err != nil {
		if review != nil && h.respondPartial(ctx, review, err) {
			return
		}
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(review)
}
