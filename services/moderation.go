package services

import (
	"context"
	"time"

	"ratemylandlord-server/models"
	"ratemylandlord-server/storage"
	"ratemylandlord-server/utils"

	"github.com/rs/zerolog"
)

// Decision carries the explicit confirmation every moderation write needs.
type Decision struct {
	Confirm bool `json:"confirm"`
}

// PendingReview is a worklist item with a short-lived link to its document.
type PendingReview struct {
	models.Review
	VerificationFileSignedURL string `json:"verificationFileSignedURL,omitempty"`
}

type Moderation struct {
	records   Records
	files     storage.FileStore
	caches    CacheInvalidator
	signedTTL time.Duration
	logger    zerolog.Logger
}

func NewModeration(records Records, files storage.FileStore, caches CacheInvalidator, signedTTL time.Duration, logger zerolog.Logger) *Moderation {
	return &Moderation{
		records:   records,
		files:     files,
		caches:    caches,
		signedTTL: signedTTL,
		logger:    logger.With().Str("component", "moderation").Logger(),
	}
}

func (m *Moderation) PendingLandlords(ctx context.Context) ([]models.Landlord, error) {
	return m.records.ListPendingLandlords(ctx)
}

// PendingReviews lists reviews awaiting verification. A file whose link
// cannot be signed is listed without one.
func (m *Moderation) PendingReviews(ctx context.Context) ([]PendingReview, error) {
	reviews, err := m.records.ListPendingReviews(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]PendingReview, 0, len(reviews))
	for _, r := range reviews {
		item := PendingReview{Review: r}
		if r.HasVerificationFile() {
			url, err := m.files.SignedURL(ctx, *r.VerificationFileURL, m.signedTTL)
			if err != nil {
				m.logger.Warn().Err(err).Uint("reviewID", r.ID).Msg("could not sign verification file link")
			} else {
				item.VerificationFileSignedURL = url
			}
		}
		out = append(out, item)
	}
	return out, nil
}

func (m *Moderation) ApproveLandlord(ctx context.Context, viewer Viewer, id uint, d Decision) (*models.Landlord, error) {
	return m.decideLandlord(ctx, viewer, id, d, models.LandlordApproved, "landlord.approve")
}

func (m *Moderation) RejectLandlord(ctx context.Context, viewer Viewer, id uint, d Decision) (*models.Landlord, error) {
	return m.decideLandlord(ctx, viewer, id, d, models.LandlordRejected, "landlord.reject")
}

// VerifyReview marks the review verified and discards its document.
func (m *Moderation) VerifyReview(ctx context.Context, viewer Viewer, id uint, d Decision) (*models.Review, error) {
	return m.decideReview(ctx, viewer, id, d, models.VerificationVerified, "review.verify")
}

// RejectReviewVerification sends the review back to unverified and discards
// its document.
func (m *Moderation) RejectReviewVerification(ctx context.Context, viewer Viewer, id uint, d Decision) (*models.Review, error) {
	return m.decideReview(ctx, viewer, id, d, models.VerificationUnverified, "review.reject_verification")
}

func (m *Moderation) decideLandlord(ctx context.Context, viewer Viewer, id uint, d Decision, status, action string) (*models.Landlord, error) {
	if !viewer.IsAdmin {
		return nil, ErrForbidden
	}
	if !d.Confirm {
		return nil, ErrConfirmationRequired
	}

	before, err := m.records.GetLandlord(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if before.Status != models.LandlordPending {
		return nil, ErrInvalidTransition
	}

	if err := m.records.UpdateLandlordStatus(ctx, id, status); err != nil {
		return nil, err
	}
	after := *before
	after.Status = status

	m.audit(ctx, viewer, action, "landlord", id, before, &after)
	m.caches.InvalidateLandlords()
	m.caches.InvalidateReviews(id)
	return &after, nil
}

func (m *Moderation) decideReview(ctx context.Context, viewer Viewer, id uint, d Decision, status, action string) (*models.Review, error) {
	if !viewer.IsAdmin {
		return nil, ErrForbidden
	}
	if !d.Confirm {
		return nil, ErrConfirmationRequired
	}

	before, err := m.records.GetReview(ctx, id)
	if err != nil {
		return nil, err
	}
	switch before.EffectiveVerificationStatus() {
	case models.VerificationUnverified, models.VerificationPending:
	default:
		return nil, ErrInvalidTransition
	}

	after, err := m.records.UpdateReview(ctx, id, map[string]interface{}{
		"verification_status":   status,
		"verification_file_url": nil,
	})
	if err != nil {
		return nil, err
	}

	if before.HasVerificationFile() {
		if err := m.files.Delete(ctx, *before.VerificationFileURL); err != nil {
			m.logger.Warn().Err(err).Str("path", *before.VerificationFileURL).Msg("verification file not deleted")
		}
	}

	m.audit(ctx, viewer, action, "review", id, before, after)
	m.caches.InvalidateReviews(before.LandlordID)
	return after, nil
}

func (m *Moderation) audit(ctx context.Context, viewer Viewer, action, resourceType string, id uint, before, after interface{}) {
	entry := utils.AuditEntry(viewer.UserID, action, resourceType, id, before, after, viewer.IP)
	if err := m.records.WriteAudit(ctx, entry); err != nil {
		m.logger.Error().Err(err).Str("action", action).Uint("resourceID", id).Msg("audit write failed")
	}
}
