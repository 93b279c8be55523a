package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ratemylandlord-server/models"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a single-row fetch matches nothing.
var ErrNotFound = errors.New("record not found")

// Records is the data client for landlords, reviews, users, the admin
// allow-list and the audit log.
type Records struct {
	db *gorm.DB
}

func NewRecords(db *gorm.DB) *Records {
	return &Records{db: db}
}

func (r *Records) DB() *gorm.DB {
	return r.db
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// ---------------------------------------------------------------------
// Landlords
// ---------------------------------------------------------------------

// ListLandlords returns the landlords ordered by name. Without includeHidden
// only approved, non-deleted rows are returned.
func (r *Records) ListLandlords(ctx context.Context, includeHidden bool) ([]models.Landlord, error) {
	var landlords []models.Landlord
	q := r.db.WithContext(ctx).Model(&models.Landlord{})
	if !includeHidden {
		q = q.Where("status = ? AND is_deleted = ?", models.LandlordApproved, false)
	}
	if err := q.Order("name ASC, id ASC").Find(&landlords).Error; err != nil {
		return nil, fmt.Errorf("list landlords: %w", err)
	}
	return landlords, nil
}

// GetLandlord never returns soft-deleted rows. Without includeUnapproved only
// approved landlords are found.
func (r *Records) GetLandlord(ctx context.Context, id uint, includeUnapproved bool) (*models.Landlord, error) {
	var landlord models.Landlord
	q := r.db.WithContext(ctx).Where("id = ? AND is_deleted = ?", id, false)
	if !includeUnapproved {
		q = q.Where("status = ?", models.LandlordApproved)
	}
	if err := q.First(&landlord).Error; err != nil {
		return nil, notFound(err)
	}
	return &landlord, nil
}

func (r *Records) CreateLandlord(ctx context.Context, landlord *models.Landlord) error {
	if err := r.db.WithContext(ctx).Create(landlord).Error; err != nil {
		return fmt.Errorf("create landlord: %w", err)
	}
	return nil
}

func (r *Records) SoftDeleteLandlord(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.Landlord{}).Where("id = ?", id).Update("is_deleted", true)
	if res.Error != nil {
		return fmt.Errorf("soft delete landlord %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Records) UpdateLandlordStatus(ctx context.Context, id uint, status string) error {
	res := r.db.WithContext(ctx).Model(&models.Landlord{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("update landlord %d status: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPendingLandlords returns non-deleted pending landlords, newest first.
func (r *Records) ListPendingLandlords(ctx context.Context) ([]models.Landlord, error) {
	var landlords []models.Landlord
	err := r.db.WithContext(ctx).
		Where("status = ? AND is_deleted = ?", models.LandlordPending, false).
		Order("created_at DESC, id DESC").
		Find(&landlords).Error
	if err != nil {
		return nil, fmt.Errorf("list pending landlords: %w", err)
	}
	return landlords, nil
}

// ---------------------------------------------------------------------
// Reviews
// ---------------------------------------------------------------------

// ListReviews returns a landlord's reviews newest first.
func (r *Records) ListReviews(ctx context.Context, landlordID uint, includeDeleted bool) ([]models.Review, error) {
	var reviews []models.Review
	q := r.db.WithContext(ctx).Where("landlord_id = ?", landlordID)
	if !includeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	if err := q.Order("created_at DESC, id DESC").Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("list reviews for landlord %d: %w", landlordID, err)
	}
	return reviews, nil
}

func (r *Records) GetReview(ctx context.Context, id uint) (*models.Review, error) {
	var review models.Review
	if err := r.db.WithContext(ctx).First(&review, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &review, nil
}

func (r *Records) CreateReview(ctx context.Context, review *models.Review) error {
	if err := r.db.WithContext(ctx).Create(review).Error; err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

// UpdateReview applies the given column updates and returns the fresh row.
func (r *Records) UpdateReview(ctx context.Context, id uint, updates map[string]interface{}) (*models.Review, error) {
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	res := r.db.WithContext(ctx).Model(&models.Review{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("update review %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetReview(ctx, id)
}

func (r *Records) SetReviewDeleted(ctx context.Context, id uint, deleted bool) error {
	res := r.db.WithContext(ctx).Model(&models.Review{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_deleted": deleted, "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("set review %d deleted=%t: %w", id, deleted, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPendingReviews returns non-deleted reviews awaiting verification,
// newest first.
func (r *Records) ListPendingReviews(ctx context.Context) ([]models.Review, error) {
	var reviews []models.Review
	err := r.db.WithContext(ctx).
		Where("verification_status = ? AND is_deleted = ?", models.VerificationPending, false).
		Order("created_at DESC, id DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, fmt.Errorf("list pending reviews: %w", err)
	}
	return reviews, nil
}

// ---------------------------------------------------------------------
// Admin allow-list
// ---------------------------------------------------------------------

func (r *Records) IsAdminEmail(ctx context.Context, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false, nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Admin{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, fmt.Errorf("admin lookup: %w", err)
	}
	return count > 0, nil
}

func (r *Records) AddAdmin(ctx context.Context, email string) error {
	admin := models.Admin{Email: strings.ToLower(strings.TrimSpace(email))}
	if admin.Email == "" {
		return fmt.Errorf("admin email is empty")
	}
	if err := r.db.WithContext(ctx).Where(models.Admin{Email: admin.Email}).FirstOrCreate(&admin).Error; err != nil {
		return fmt.Errorf("add admin %s: %w", admin.Email, err)
	}
	return nil
}

// ---------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------

func (r *Records) CreateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *Records) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *Records) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *Records) ConfirmUserEmail(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("email_confirmed_at", at)
	if res.Error != nil {
		return fmt.Errorf("confirm user %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Records) UpdateUserPassword(ctx context.Context, id string, hash string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password", hash)
	if res.Error != nil {
		return fmt.Errorf("update password for %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------
// Audit
// ---------------------------------------------------------------------

func (r *Records) WriteAudit(ctx context.Context, entry *models.AuditLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("write audit: %w", err)
	}
	return nil
}

func (r *Records) ListAudit(ctx context.Context, resourceType string, resourceID uint) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	err := r.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at DESC, id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return entries, nil
}
