package services

import (
	"context"
	"testing"
	"time"

	"ratemylandlord-server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type world struct {
	records    *fakeRecords
	files      *fakeFiles
	store      *DataStore
	moderation *Moderation
}

func newWorld(t *testing.T) *world {
	t.Helper()
	records, files, store := setupDataStore(t)
	return &world{
		records:    records,
		files:      files,
		store:      store,
		moderation: NewModeration(records, files, store, 5*time.Minute, testLogger),
	}
}

func landlordNames(list []models.Landlord) []string {
	names := make([]string, 0, len(list))
	for _, l := range list {
		names = append(names, l.Name)
	}
	return names
}

func TestScenario_NewLandlordNeedsApproval(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	res, err := w.store.AddLandlord(ctx, anonymous, LandlordInput{Name: "Acme Rentals"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, models.LandlordPending, res.Landlord.Status)

	public, err := w.store.ListLandlords(ctx, tenant)
	require.NoError(t, err)
	assert.NotContains(t, landlordNames(public), "Acme Rentals")

	pending, err := w.moderation.PendingLandlords(ctx)
	require.NoError(t, err)
	assert.Contains(t, landlordNames(pending), "Acme Rentals")

	_, err = w.moderation.ApproveLandlord(ctx, admin, res.Landlord.ID, confirmed)
	require.NoError(t, err)

	public, err = w.store.ListLandlords(ctx, tenant)
	require.NoError(t, err)
	assert.Contains(t, landlordNames(public), "Acme Rentals")
}

func TestScenario_ReviewWithoutFileIsUnverified(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	l := approvedLandlord(t, w.records, "Acme Rentals")

	// Warm the cache so the write has to invalidate it.
	_, err := w.store.GetReviewsForLandlord(ctx, anonymous, l.ID)
	require.NoError(t, err)

	r, err := w.store.AddReview(ctx, tenant, l.ID, ReviewInput{Rating: 5, Communication: 5, Maintenance: 5, Respect: 5, Comment: "Great"}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationUnverified, r.VerificationStatus)

	visible, err := w.store.GetReviewsForLandlord(ctx, anonymous, l.ID)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "Great", visible[0].Comment)
}

func TestScenario_AttachThenRejectVerification(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	l := approvedLandlord(t, w.records, "Acme Rentals")

	r, err := w.store.AddReview(ctx, tenant, l.ID, goodReview(), nil)
	require.NoError(t, err)

	edited, err := w.store.EditReview(ctx, tenant, r.ID, goodReview(), pdf(1<<20))
	require.NoError(t, err)
	assert.Equal(t, models.VerificationPending, edited.VerificationStatus)
	require.NotNil(t, edited.VerificationFileURL)
	path := *edited.VerificationFileURL
	assert.True(t, w.files.has(path))

	rejected, err := w.moderation.RejectReviewVerification(ctx, admin, r.ID, confirmed)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationUnverified, rejected.VerificationStatus)
	assert.False(t, w.files.has(path))

	visible, err := w.store.GetReviewsForLandlord(ctx, tenant, l.ID)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, models.VerificationUnverified, visible[0].VerificationStatus)
}

func TestScenario_OversizedFileRejectedBeforeUpload(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	l := approvedLandlord(t, w.records, "Acme Rentals")

	_, err := w.store.AddReview(ctx, tenant, l.ID, goodReview(), pdf(20<<20))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, w.files.uploads)
	assert.Empty(t, w.records.reviews)

	r, err := w.store.AddReview(ctx, tenant, l.ID, goodReview(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationUnverified, r.VerificationStatus)

	r2, err := w.store.AddReview(ctx, tenant, l.ID, goodReview(), pdf(2<<20))
	require.NoError(t, err)
	assert.Equal(t, models.VerificationPending, r2.VerificationStatus)
	assert.Equal(t, 1, w.files.uploads)
}
