package routes

import (
	"github.com/kataras/iris/v12"
)

// Register mounts every endpoint on app.
func Register(app *iris.Application, h *Handlers) {
	app.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"status": "ok"})
	})

	auth := app.Party("/api/auth")
	{
		auth.Post("/register", h.Register)
		auth.Post("/login", h.Login)
		auth.Post("/logout", h.RequireAuth, h.Logout)
		auth.Post("/resend", h.ResendConfirmation)
		auth.Post("/forgot-password", h.ForgotPassword)
		auth.Post("/refresh", h.Refresh)
		auth.Get("/me", h.RequireAuth, h.Me)
		auth.Patch("/password", h.RequireAuth, h.UpdatePassword)
		auth.Get("/verify", h.Verify)
		auth.Post("/callback", h.Callback)
		auth.Post("/reset-password/check", h.CheckReset)
		auth.Post("/reset-password", h.CompleteReset)
	}

	landlords := app.Party("/api/landlords", h.OptionalAuth)
	{
		landlords.Get("/", h.ListLandlords)
		landlords.Post("/", h.AddLandlord)
		landlords.Get("/{id:uint}", h.GetLandlord)
		landlords.Get("/{id:uint}/reviews", h.ListLandlordReviews)
		landlords.Post("/{id:uint}/reviews", h.AddReview)
	}

	reviews := app.Party("/api/reviews", h.RequireAuth)
	{
		reviews.Get("/{id:uint}", h.GetReview)
		reviews.Patch("/{id:uint}", h.EditReview)
	}

	admin := app.Party("/api/admin", h.RequireAuth, h.AdminOnly)
	{
		admin.Get("/landlords/pending", h.AdminPendingLandlords)
		admin.Post("/landlords/{id:uint}/approve", h.AdminApproveLandlord)
		admin.Post("/landlords/{id:uint}/reject", h.AdminRejectLandlord)
		admin.Get("/reviews/pending", h.AdminPendingReviews)
		admin.Post("/reviews/{id:uint}/verify", h.AdminVerifyReview)
		admin.Post("/reviews/{id:uint}/reject", h.AdminRejectReviewVerification)
		admin.Delete("/reviews/{id:uint}", h.AdminDeleteReview)
		admin.Post("/reviews/{id:uint}/restore", h.AdminRestoreReview)
		admin.Get("/audit/{type:string}/{id:uint}", h.AdminAuditTrail)
	}
}
