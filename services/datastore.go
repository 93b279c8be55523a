package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"ratemylandlord-server/models"
	"ratemylandlord-server/storage"
	"ratemylandlord-server/utils"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

type LandlordInput struct {
	Name      string   `json:"name" validate:"required"`
	Addresses []string `json:"addresses"`
	// Accepted for compatibility and ignored: new landlords always start
	// pending in the default city.
	City   string `json:"city,omitempty"`
	Status string `json:"status,omitempty"`
}

type ReviewInput struct {
	Rating          int      `json:"rating" validate:"required,min=1,max=5"`
	Communication   int      `json:"communication" validate:"required,min=1,max=5"`
	Maintenance     int      `json:"maintenance" validate:"required,min=1,max=5"`
	Respect         int      `json:"respect" validate:"required,min=1,max=5"`
	Comment         string   `json:"comment" validate:"required"`
	WouldRentAgain  bool     `json:"wouldRentAgain"`
	RentAmount      *float64 `json:"rentAmount,omitempty"`
	PropertyAddress *string  `json:"propertyAddress,omitempty"`
}

// VerificationUpload is a tenancy document attached to a review.
type VerificationUpload struct {
	ContentType string
	Size        int64
	Body        io.ReadSeeker
}

type AddLandlordResult struct {
	Landlord *models.Landlord `json:"landlord"`
	Review   *models.Review   `json:"review,omitempty"`
}

const (
	viewPublic = "public"
	viewAdmin  = "admin"
)

func viewOf(v Viewer) string {
	if v.IsAdmin {
		return viewAdmin
	}
	return viewPublic
}

// DataStore serves landlords and reviews with per-landlord review caching.
type DataStore struct {
	records        Records
	files          storage.FileStore
	defaultCity    string
	studentDomains []string
	landlords      *cache.Cache
	reviews        *cache.Cache
	now            func() time.Time
	logger         zerolog.Logger
}

func NewDataStore(records Records, files storage.FileStore, defaultCity string, studentDomains []string, logger zerolog.Logger) *DataStore {
	return &DataStore{
		records:        records,
		files:          files,
		defaultCity:    defaultCity,
		studentDomains: studentDomains,
		landlords:      cache.New(cache.NoExpiration, 0),
		reviews:        cache.New(cache.NoExpiration, 0),
		now:            time.Now,
		logger:         logger.With().Str("component", "datastore").Logger(),
	}
}

// ---------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------

// ListLandlords always fetches. A failed fetch keeps the previous list.
func (d *DataStore) ListLandlords(ctx context.Context, viewer Viewer) ([]models.Landlord, error) {
	landlords, err := d.records.ListLandlords(ctx, viewer.IsAdmin)
	if err != nil {
		return nil, err
	}
	d.landlords.Set(viewOf(viewer), landlords, cache.NoExpiration)
	return landlords, nil
}

// CachedLandlords returns the list of the last successful ListLandlords.
func (d *DataStore) CachedLandlords(viewer Viewer) ([]models.Landlord, bool) {
	v, ok := d.landlords.Get(viewOf(viewer))
	if !ok {
		return nil, false
	}
	return v.([]models.Landlord), true
}

// GetLandlord hides unapproved landlords from non-admins and deleted ones
// from everybody.
func (d *DataStore) GetLandlord(ctx context.Context, viewer Viewer, id uint) (*models.Landlord, error) {
	return d.records.GetLandlord(ctx, id, viewer.IsAdmin)
}

func reviewsKey(landlordID uint, view string) string {
	return fmt.Sprintf("%d:%s", landlordID, view)
}

// GetReviewsForLandlord returns the landlord's reviews newest first. Admins
// also see soft-deleted reviews, and who wrote each one.
func (d *DataStore) GetReviewsForLandlord(ctx context.Context, viewer Viewer, landlordID uint) ([]models.Review, error) {
	key := reviewsKey(landlordID, viewOf(viewer))
	if v, ok := d.reviews.Get(key); ok {
		return redactReviews(viewer, v.([]models.Review)), nil
	}

	if _, err := d.records.GetLandlord(ctx, landlordID, viewer.IsAdmin); err != nil {
		return nil, err
	}
	reviews, err := d.records.ListReviews(ctx, landlordID, viewer.IsAdmin)
	if err != nil {
		return nil, err
	}
	d.reviews.Set(key, reviews, cache.NoExpiration)
	return redactReviews(viewer, reviews), nil
}

// redactReviews clears the author and the document path of every review the
// viewer did not write. The cached slice is never modified.
func redactReviews(viewer Viewer, reviews []models.Review) []models.Review {
	if viewer.IsAdmin {
		return reviews
	}
	out := make([]models.Review, len(reviews))
	for i, r := range reviews {
		if !r.OwnedBy(viewer.UserID) {
			r.UserID = nil
			r.VerificationFileURL = nil
		}
		out[i] = r
	}
	return out
}

// GetReview returns a review to its owner or an admin.
func (d *DataStore) GetReview(ctx context.Context, viewer Viewer, id uint) (*models.Review, error) {
	if viewer.Anonymous() && !viewer.IsAdmin {
		return nil, ErrForbidden
	}
	review, err := d.records.GetReview(ctx, id)
	if err != nil {
		return nil, err
	}
	if viewer.IsAdmin {
		return review, nil
	}
	if review.IsDeleted {
		return nil, storage.ErrNotFound
	}
	if !review.OwnedBy(viewer.UserID) {
		return nil, ErrForbidden
	}
	return review, nil
}

// ---------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------

func validateLandlord(in *LandlordInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", "landlord name is required")
	}
	return nil
}

func validateReview(in *ReviewInput) error {
	ratings := []struct {
		field string
		value int
	}{
		{"rating", in.Rating},
		{"communication", in.Communication},
		{"maintenance", in.Maintenance},
		{"respect", in.Respect},
	}
	for _, r := range ratings {
		if r.value < 1 || r.value > 5 {
			return invalid(r.field, "rating must be between 1 and 5")
		}
	}
	if strings.TrimSpace(in.Comment) == "" {
		return invalid("comment", "comment is required")
	}
	if in.RentAmount != nil && *in.RentAmount < 0 {
		return invalid("rentAmount", "rent amount cannot be negative")
	}
	return nil
}

func validateUpload(file *VerificationUpload) error {
	if file == nil {
		return nil
	}
	if err := utils.ValidateVerificationFile(file.ContentType, file.Size); err != nil {
		return invalid("verificationFile", err.Error())
	}
	if file.Body == nil {
		return invalid("verificationFile", "verification file is empty")
	}
	return nil
}

func optionalString(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func (d *DataStore) newReview(viewer Viewer, landlordID uint, in *ReviewInput, withFile bool) *models.Review {
	review := &models.Review{
		LandlordID:         landlordID,
		Rating:             in.Rating,
		Communication:      in.Communication,
		Maintenance:        in.Maintenance,
		Respect:            in.Respect,
		Comment:            strings.TrimSpace(in.Comment),
		WouldRentAgain:     in.WouldRentAgain,
		RentAmount:         in.RentAmount,
		PropertyAddress:    optionalString(in.PropertyAddress),
		VerificationStatus: models.VerificationUnverified,
		CreatedByStudent:   utils.IsStudentEmail(viewer.Email, d.studentDomains),
	}
	if !viewer.Anonymous() {
		uid := viewer.UserID
		review.UserID = &uid
	}
	if withFile {
		review.VerificationStatus = models.VerificationPending
	}
	return review
}

// AddLandlord creates a pending landlord, optionally with a first review and
// its verification file. A failed review insert soft-deletes the landlord
// again; a failed upload leaves the review unverified.
func (d *DataStore) AddLandlord(ctx context.Context, viewer Viewer, in LandlordInput, review *ReviewInput, file *VerificationUpload) (*AddLandlordResult, error) {
	if err := validateLandlord(&in); err != nil {
		return nil, err
	}
	if review != nil {
		if err := validateReview(review); err != nil {
			return nil, err
		}
	}
	if file != nil && review == nil {
		return nil, invalid("verificationFile", "a verification file needs a review")
	}
	if err := validateUpload(file); err != nil {
		return nil, err
	}

	landlord := &models.Landlord{
		Name:   strings.TrimSpace(in.Name),
		City:   d.defaultCity,
		Status: models.LandlordPending,
	}
	landlord.SetAddresses(in.Addresses)
	if err := d.records.CreateLandlord(ctx, landlord); err != nil {
		return nil, err
	}
	d.InvalidateLandlords()

	result := &AddLandlordResult{Landlord: landlord}
	if review == nil {
		return result, nil
	}

	rev := d.newReview(viewer, landlord.ID, review, file != nil)
	if err := d.records.CreateReview(ctx, rev); err != nil {
		if compErr := d.records.SoftDeleteLandlord(ctx, landlord.ID); compErr != nil {
			d.logger.Error().Err(compErr).Uint("landlordID", landlord.ID).Msg("could not roll back landlord after review insert failed")
			return result, &PartialWriteError{Completed: "landlord", Failed: "review", Err: errors.Join(err, compErr)}
		}
		d.InvalidateLandlords()
		return nil, fmt.Errorf("review insert failed, landlord %d rolled back: %w", landlord.ID, err)
	}
	d.InvalidateReviews(landlord.ID)
	result.Review = rev

	if file == nil {
		return result, nil
	}
	updated, err := d.attachVerification(ctx, viewer, rev, file)
	if err != nil {
		result.Review = d.reconcileUnverified(ctx, rev)
		return result, &PartialWriteError{Completed: "review", Failed: "verification upload", Err: err}
	}
	result.Review = updated
	return result, nil
}

// AddReview creates a review for a visible landlord.
func (d *DataStore) AddReview(ctx context.Context, viewer Viewer, landlordID uint, in ReviewInput, file *VerificationUpload) (*models.Review, error) {
	if err := validateReview(&in); err != nil {
		return nil, err
	}
	if err := validateUpload(file); err != nil {
		return nil, err
	}

	if _, err := d.records.GetLandlord(ctx, landlordID, viewer.IsAdmin); err != nil {
		return nil, err
	}

	review := d.newReview(viewer, landlordID, &in, file != nil)
	if err := d.records.CreateReview(ctx, review); err != nil {
		return nil, err
	}
	d.InvalidateReviews(landlordID)

	if file == nil {
		return review, nil
	}
	updated, err := d.attachVerification(ctx, viewer, review, file)
	if err != nil {
		return d.reconcileUnverified(ctx, review), &PartialWriteError{Completed: "review", Failed: "verification upload", Err: err}
	}
	return updated, nil
}

// EditReview lets the owner change a live review. An attached file replaces
// the previous one and puts the review back into pending verification.
func (d *DataStore) EditReview(ctx context.Context, viewer Viewer, id uint, in ReviewInput, file *VerificationUpload) (*models.Review, error) {
	if viewer.Anonymous() {
		return nil, ErrForbidden
	}
	if err := validateReview(&in); err != nil {
		return nil, err
	}
	if err := validateUpload(file); err != nil {
		return nil, err
	}

	existing, err := d.records.GetReview(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.OwnedBy(viewer.UserID) {
		return nil, ErrForbidden
	}
	if existing.IsDeleted {
		return nil, ErrReviewDeleted
	}

	updated, err := d.records.UpdateReview(ctx, id, map[string]interface{}{
		"rating":           in.Rating,
		"communication":    in.Communication,
		"maintenance":      in.Maintenance,
		"respect":          in.Respect,
		"comment":          strings.TrimSpace(in.Comment),
		"would_rent_again": in.WouldRentAgain,
		"rent_amount":      in.RentAmount,
		"property_address": optionalString(in.PropertyAddress),
	})
	if err != nil {
		return nil, err
	}
	d.InvalidateReviews(existing.LandlordID)

	if file == nil {
		return updated, nil
	}

	withFile, err := d.attachVerification(ctx, viewer, updated, file)
	if err != nil {
		return updated, &PartialWriteError{Completed: "review", Failed: "verification upload", Err: err}
	}
	if existing.HasVerificationFile() && *existing.VerificationFileURL != *withFile.VerificationFileURL {
		if err := d.files.Delete(ctx, *existing.VerificationFileURL); err != nil {
			d.logger.Warn().Err(err).Str("path", *existing.VerificationFileURL).Msg("old verification file not deleted")
		}
	}
	return withFile, nil
}

// DeleteReview soft-deletes a review. Admin only, idempotent.
func (d *DataStore) DeleteReview(ctx context.Context, viewer Viewer, id uint) error {
	return d.setDeleted(ctx, viewer, id, true)
}

// RestoreReview undoes DeleteReview. Admin only, idempotent.
func (d *DataStore) RestoreReview(ctx context.Context, viewer Viewer, id uint) error {
	return d.setDeleted(ctx, viewer, id, false)
}

func (d *DataStore) setDeleted(ctx context.Context, viewer Viewer, id uint, deleted bool) error {
	if !viewer.IsAdmin {
		return ErrForbidden
	}
	review, err := d.records.GetReview(ctx, id)
	if err != nil {
		return err
	}
	if err := d.records.SetReviewDeleted(ctx, id, deleted); err != nil {
		return err
	}
	d.InvalidateReviews(review.LandlordID)
	return nil
}

// InvalidateReviews drops both cached views of one landlord's reviews.
func (d *DataStore) InvalidateReviews(landlordID uint) {
	d.reviews.Delete(reviewsKey(landlordID, viewPublic))
	d.reviews.Delete(reviewsKey(landlordID, viewAdmin))
}

// InvalidateLandlords drops the cached landlord lists.
func (d *DataStore) InvalidateLandlords() {
	d.landlords.Delete(viewPublic)
	d.landlords.Delete(viewAdmin)
}

// attachVerification uploads the file and records its path on the review.
// If the row update fails the uploaded object is removed again.
func (d *DataStore) attachVerification(ctx context.Context, viewer Viewer, review *models.Review, file *VerificationUpload) (*models.Review, error) {
	path := utils.VerificationFilePath(viewer.UserID, review.ID, d.now())
	if err := d.files.Upload(ctx, path, file.Body, file.ContentType); err != nil {
		return nil, err
	}

	updated, err := d.records.UpdateReview(ctx, review.ID, map[string]interface{}{
		"verification_file_url": path,
		"verification_status":   models.VerificationPending,
	})
	if err != nil {
		if delErr := d.files.Delete(ctx, path); delErr != nil {
			d.logger.Warn().Err(delErr).Str("path", path).Msg("orphaned verification file not deleted")
		}
		return nil, err
	}
	d.InvalidateReviews(review.LandlordID)
	return updated, nil
}

// reconcileUnverified marks a review whose file never arrived as unverified.
func (d *DataStore) reconcileUnverified(ctx context.Context, review *models.Review) *models.Review {
	d.InvalidateReviews(review.LandlordID)
	if review.VerificationStatus != models.VerificationPending || review.HasVerificationFile() {
		return review
	}
	updated, err := d.records.UpdateReview(ctx, review.ID, map[string]interface{}{
		"verification_status": models.VerificationUnverified,
	})
	if err != nil {
		d.logger.Error().Err(err).Uint("reviewID", review.ID).Msg("review left pending without a verification file")
		return review
	}
	return updated
}
