package routes

import (
	"errors"

	"ratemylandlord-server/services"
	"ratemylandlord-server/storage"
	"ratemylandlord-server/utils"

	"github.com/kataras/iris/v12"
)

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{storage.ErrNotFound, iris.StatusNotFound, "not_found", "Not found."},
	{services.ErrForbidden, iris.StatusForbidden, "forbidden", "You are not allowed to do that."},
	{services.ErrInvalidCredentials, iris.StatusUnauthorized, "invalid_credentials", "Invalid email or password."},
	{services.ErrEmailNotConfirmed, iris.StatusUnauthorized, "email_not_confirmed", "Please confirm your e-mail address before signing in."},
	{services.ErrInvalidSession, iris.StatusUnauthorized, "invalid_session", "Your session has expired. Please sign in again."},
	{services.ErrSessionNotReady, iris.StatusUnauthorized, "session_not_ready", "Your session is not ready yet."},
	{services.ErrEmailTaken, iris.StatusConflict, "email_taken", "Email Already Registered"},
	{services.ErrInvalidTransition, iris.StatusConflict, "invalid_transition", "This item has already been decided."},
	{services.ErrReviewDeleted, iris.StatusConflict, "review_deleted", "This review has been removed and can no longer be edited."},
	{services.ErrConfirmationRequired, iris.StatusBadRequest, "confirmation_required", "Please confirm this action."},
	{services.ErrCaptchaFailed, iris.StatusBadRequest, "captcha_failed", "Captcha verification failed. Please try again."},
	{services.ErrInvalidLink, iris.StatusBadRequest, "invalid_link", "This link is invalid or has expired."},
	{services.ErrOTPExpired, iris.StatusBadRequest, "otp_expired", "This link has expired. Please request a new one."},
	{services.ErrOTPInvalid, iris.StatusBadRequest, "invalid_link", "This link is invalid or has expired."},
}

// respondError writes the response for a service error. Unknown errors are
// logged and reported as 500.
func (h *Handlers) respondError(ctx iris.Context, err error) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		ctx.StopWithJSON(iris.StatusUnprocessableEntity, iris.Map{
			"error":   "validation_failed",
			"field":   verr.Field,
			"message": verr.Message,
		})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			utils.JSONError(ctx, m.status, m.code, m.message)
			return
		}
	}

	h.logger.Error().Err(err).Str("path", ctx.Path()).Msg("request failed")
	utils.CreateInternalServerError(ctx)
}

// respondPartial answers 207 when the first write of a multi-step
// submission was kept and a later one failed; any other error goes through
// respondError.
func (h *Handlers) respondPartial(ctx iris.Context, data interface{}, err error) bool {
	var perr *services.PartialWriteError
	if !errors.As(err, &perr) || data == nil {
		return false
	}
	h.logger.Warn().Err(err).Str("path", ctx.Path()).Msg("partial write")
	utils.JSONWarning(ctx, data, "Your "+perr.Completed+" was saved, but the "+perr.Failed+" failed. Please try again later.")
	return true
}
