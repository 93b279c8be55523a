package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"ratemylandlord-server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	reviews   []uint
	landlords int
}

func (r *recordingInvalidator) InvalidateReviews(landlordID uint) {
	r.reviews = append(r.reviews, landlordID)
}

func (r *recordingInvalidator) InvalidateLandlords() { r.landlords++ }

func setupModeration(t *testing.T) (*fakeRecords, *fakeFiles, *recordingInvalidator, *Moderation) {
	t.Helper()
	records := newFakeRecords()
	files := newFakeFiles()
	caches := &recordingInvalidator{}
	return records, files, caches, NewModeration(records, files, caches, 10*time.Minute, testLogger)
}

var confirmed = Decision{Confirm: true}

func pendingReviewWithFile(t *testing.T, records *fakeRecords, files *fakeFiles, landlordID uint, status string) *models.Review {
	t.Helper()
	ctx := context.Background()
	path := "user-1/1-1700000000000.pdf"
	userID := "user-1"
	r := &models.Review{
		LandlordID:          landlordID,
		UserID:              &userID,
		Rating:              4,
		Communication:       4,
		Maintenance:         4,
		Respect:             4,
		Comment:             "ok",
		VerificationStatus:  status,
		VerificationFileURL: &path,
	}
	require.NoError(t, records.CreateReview(ctx, r))
	require.NoError(t, files.Upload(ctx, path, pdf(10).Body, "application/pdf"))
	return r
}

func TestModeration_RequiresAdminAndConfirmation(t *testing.T) {
	records, _, _, mod := setupModeration(t)
	ctx := context.Background()
	l := &models.Landlord{Name: "Acme", Status: models.LandlordPending}
	require.NoError(t, records.CreateLandlord(ctx, l))

	_, err := mod.ApproveLandlord(ctx, tenant, l.ID, confirmed)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = mod.ApproveLandlord(ctx, admin, l.ID, Decision{})
	assert.ErrorIs(t, err, ErrConfirmationRequired)

	assert.Equal(t, models.LandlordPending, records.landlord(l.ID).Status)
	assert.Empty(t, records.audit)
}

func TestModeration_LandlordTransitionsOnlyFromPending(t *testing.T) {
	records, _, caches, mod := setupModeration(t)
	ctx := context.Background()
	admin := admin
	admin.IP = "10.0.0.1"

	l := &models.Landlord{Name: "Acme", Status: models.LandlordPending}
	require.NoError(t, records.CreateLandlord(ctx, l))

	approved, err := mod.ApproveLandlord(ctx, admin, l.ID, confirmed)
	require.NoError(t, err)
	assert.Equal(t, models.LandlordApproved, approved.Status)
	assert.Equal(t, models.LandlordApproved, records.landlord(l.ID).Status)
	assert.Equal(t, 1, caches.landlords)
	assert.Contains(t, caches.reviews, l.ID)

	_, err = mod.RejectLandlord(ctx, admin, l.ID, confirmed)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = mod.ApproveLandlord(ctx, admin, l.ID, confirmed)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.Len(t, records.audit, 1)
	entry := records.audit[0]
	assert.Equal(t, "landlord.approve", entry.Action)
	assert.Equal(t, "landlord", entry.ResourceType)
	assert.Equal(t, l.ID, entry.ResourceID)
	assert.Equal(t, admin.UserID, entry.AdminUserID)
	assert.Equal(t, "10.0.0.1", entry.IPAddress)
	assert.Contains(t, entry.BeforeJSON, `"status":"pending"`)
	assert.Contains(t, entry.AfterJSON, `"status":"approved"`)
}

func TestModeration_RejectLandlord(t *testing.T) {
	records, _, _, mod := setupModeration(t)
	ctx := context.Background()
	l := &models.Landlord{Name: "Acme", Status: models.LandlordPending}
	require.NoError(t, records.CreateLandlord(ctx, l))

	rejected, err := mod.RejectLandlord(ctx, admin, l.ID, confirmed)
	require.NoError(t, err)
	assert.Equal(t, models.LandlordRejected, rejected.Status)

	pending, err := mod.PendingLandlords(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestModeration_ReviewDecisionsClearAndDeleteFile(t *testing.T) {
	cases := []struct {
		name   string
		prior  string
		decide func(*Moderation, uint) (*models.Review, error)
		want   string
		action string
	}{
		{"verify pending", models.VerificationPending, func(m *Moderation, id uint) (*models.Review, error) {
			return m.VerifyReview(context.Background(), admin, id, confirmed)
		}, models.VerificationVerified, "review.verify"},
		{"verify unverified", models.VerificationUnverified, func(m *Moderation, id uint) (*models.Review, error) {
			return m.VerifyReview(context.Background(), admin, id, confirmed)
		}, models.VerificationVerified, "review.verify"},
		{"reject pending", models.VerificationPending, func(m *Moderation, id uint) (*models.Review, error) {
			return m.RejectReviewVerification(context.Background(), admin, id, confirmed)
		}, models.VerificationUnverified, "review.reject_verification"},
		{"reject legacy empty status", "", func(m *Moderation, id uint) (*models.Review, error) {
			return m.RejectReviewVerification(context.Background(), admin, id, confirmed)
		}, models.VerificationUnverified, "review.reject_verification"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			records, files, caches, mod := setupModeration(t)
			r := pendingReviewWithFile(t, records, files, 7, tc.prior)

			got, err := tc.decide(mod, r.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.VerificationStatus)
			assert.Nil(t, got.VerificationFileURL)
			assert.Nil(t, records.review(r.ID).VerificationFileURL)
			assert.Equal(t, 0, files.count())
			assert.Equal(t, []uint{7}, caches.reviews)

			require.Len(t, records.audit, 1)
			assert.Equal(t, tc.action, records.audit[0].Action)
			assert.Equal(t, "review", records.audit[0].ResourceType)
		})
	}
}

func TestModeration_VerifiedReviewIsFinal(t *testing.T) {
	records, files, _, mod := setupModeration(t)
	ctx := context.Background()
	r := pendingReviewWithFile(t, records, files, 1, models.VerificationPending)

	_, err := mod.VerifyReview(ctx, admin, r.ID, confirmed)
	require.NoError(t, err)

	_, err = mod.RejectReviewVerification(ctx, admin, r.ID, confirmed)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = mod.VerifyReview(ctx, admin, r.ID, confirmed)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, models.VerificationVerified, records.review(r.ID).VerificationStatus)
}

func TestModeration_FileDeleteFailureIsNotFatal(t *testing.T) {
	records, files, _, mod := setupModeration(t)
	r := pendingReviewWithFile(t, records, files, 1, models.VerificationPending)
	files.deleteErr = errors.New("bucket offline")

	got, err := mod.VerifyReview(context.Background(), admin, r.ID, confirmed)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationVerified, got.VerificationStatus)
	assert.Nil(t, records.review(r.ID).VerificationFileURL)
}

func TestModeration_StatusWriteFailureLeavesFile(t *testing.T) {
	records, files, caches, mod := setupModeration(t)
	r := pendingReviewWithFile(t, records, files, 1, models.VerificationPending)
	records.updateReviewErr = errors.New("db down")

	_, err := mod.VerifyReview(context.Background(), admin, r.ID, confirmed)
	require.Error(t, err)
	assert.Equal(t, 1, files.count())
	assert.Empty(t, caches.reviews)
	assert.Empty(t, records.audit)
}

func TestModeration_PendingReviewsCarrySignedLinks(t *testing.T) {
	records, files, _, mod := setupModeration(t)
	ctx := context.Background()
	withFile := pendingReviewWithFile(t, records, files, 1, models.VerificationPending)
	withoutFile := &models.Review{LandlordID: 1, Rating: 3, Communication: 3, Maintenance: 3, Respect: 3, VerificationStatus: models.VerificationPending}
	require.NoError(t, records.CreateReview(ctx, withoutFile))
	verified := &models.Review{LandlordID: 1, Rating: 3, Communication: 3, Maintenance: 3, Respect: 3, VerificationStatus: models.VerificationVerified}
	require.NoError(t, records.CreateReview(ctx, verified))

	pending, err := mod.PendingReviews(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, withoutFile.ID, pending[0].ID)
	assert.Empty(t, pending[0].VerificationFileSignedURL)
	assert.Equal(t, withFile.ID, pending[1].ID)
	assert.Equal(t, "https://files.test/"+*withFile.VerificationFileURL+"?ttl=600", pending[1].VerificationFileSignedURL)

	files.signErr = errors.New("cannot sign")
	pending, err = mod.PendingReviews(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Empty(t, pending[1].VerificationFileSignedURL)
}

func TestModeration_UnknownReview(t *testing.T) {
	_, _, _, mod := setupModeration(t)
	_, err := mod.VerifyReview(context.Background(), admin, 99, confirmed)
	assert.Error(t, err)
}
