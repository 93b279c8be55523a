package services

import (
	"context"
	"time"

	"ratemylandlord-server/models"
)

// Viewer is the caller on whose behalf an operation runs.
type Viewer struct {
	UserID  string
	Email   string
	IsAdmin bool
	IP      string
}

func (v Viewer) Anonymous() bool {
	return v.UserID == ""
}

// Records is the subset of storage.Records the services depend on.
type Records interface {
	ListLandlords(ctx context.Context, includeHidden bool) ([]models.Landlord, error)
	GetLandlord(ctx context.Context, id uint, includeUnapproved bool) (*models.Landlord, error)
	CreateLandlord(ctx context.Context, landlord *models.Landlord) error
	SoftDeleteLandlord(ctx context.Context, id uint) error
	UpdateLandlordStatus(ctx context.Context, id uint, status string) error
	ListPendingLandlords(ctx context.Context) ([]models.Landlord, error)

	ListReviews(ctx context.Context, landlordID uint, includeDeleted bool) ([]models.Review, error)
	GetReview(ctx context.Context, id uint) (*models.Review, error)
	CreateReview(ctx context.Context, review *models.Review) error
	UpdateReview(ctx context.Context, id uint, updates map[string]interface{}) (*models.Review, error)
	SetReviewDeleted(ctx context.Context, id uint, deleted bool) error
	ListPendingReviews(ctx context.Context) ([]models.Review, error)

	WriteAudit(ctx context.Context, entry *models.AuditLog) error
}

// AdminDirectory answers whether an e-mail is on the admin allow-list.
type AdminDirectory interface {
	IsAdminEmail(ctx context.Context, email string) (bool, error)
}

// UserRecords is what the local identity provider persists.
type UserRecords interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ConfirmUserEmail(ctx context.Context, id string, at time.Time) error
	UpdateUserPassword(ctx context.Context, id string, hash string) error
}

// CacheInvalidator drops cached reads after a moderation decision.
type CacheInvalidator interface {
	InvalidateReviews(landlordID uint)
	InvalidateLandlords()
}
