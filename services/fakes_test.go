package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"ratemylandlord-server/models"
	"ratemylandlord-server/storage"

	"github.com/rs/zerolog"
)

var testLogger = zerolog.Nop()

// fakeRecords is an in-memory Records, AdminDirectory and UserRecords.
type fakeRecords struct {
	mu sync.Mutex

	seq       uint
	clock     time.Time
	landlords map[uint]*models.Landlord
	reviews   map[uint]*models.Review
	admins    map[string]bool
	users     map[string]*models.User
	audit     []models.AuditLog

	listLandlordsErr error
	listReviewsErr   error
	createReviewErr  error
	softDeleteErr    error
	updateReviewErr  error
	updateStatusErr  error

	listReviewsCalls int
	adminCalls       int
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{
		clock:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		landlords: map[uint]*models.Landlord{},
		reviews:   map[uint]*models.Review{},
		admins:    map[string]bool{},
		users:     map[string]*models.User{},
	}
}

func (f *fakeRecords) tick() (uint, time.Time) {
	f.seq++
	f.clock = f.clock.Add(time.Second)
	return f.seq, f.clock
}

func (f *fakeRecords) ListLandlords(_ context.Context, includeHidden bool) ([]models.Landlord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listLandlordsErr != nil {
		return nil, f.listLandlordsErr
	}
	out := []models.Landlord{}
	for _, l := range f.landlords {
		if includeHidden || l.IsPubliclyVisible() {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeRecords) GetLandlord(_ context.Context, id uint, includeUnapproved bool) (*models.Landlord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.landlords[id]
	if !ok || l.IsDeleted || (!includeUnapproved && l.Status != models.LandlordApproved) {
		return nil, storage.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (f *fakeRecords) CreateLandlord(_ context.Context, l *models.Landlord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l.ID, l.CreatedAt = f.tick()
	if l.Status == "" {
		l.Status = models.LandlordPending
	}
	cp := *l
	f.landlords[l.ID] = &cp
	return nil
}

func (f *fakeRecords) SoftDeleteLandlord(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.softDeleteErr != nil {
		return f.softDeleteErr
	}
	l, ok := f.landlords[id]
	if !ok {
		return storage.ErrNotFound
	}
	l.IsDeleted = true
	return nil
}

func (f *fakeRecords) UpdateLandlordStatus(_ context.Context, id uint, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateStatusErr != nil {
		return f.updateStatusErr
	}
	l, ok := f.landlords[id]
	if !ok {
		return storage.ErrNotFound
	}
	l.Status = status
	return nil
}

func (f *fakeRecords) ListPendingLandlords(_ context.Context) ([]models.Landlord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Landlord{}
	for _, l := range f.landlords {
		if l.Status == models.LandlordPending && !l.IsDeleted {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeRecords) ListReviews(_ context.Context, landlordID uint, includeDeleted bool) ([]models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listReviewsCalls++
	if f.listReviewsErr != nil {
		return nil, f.listReviewsErr
	}
	out := []models.Review{}
	for _, r := range f.reviews {
		if r.LandlordID == landlordID && (includeDeleted || !r.IsDeleted) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeRecords) GetReview(_ context.Context, id uint) (*models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reviews[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRecords) CreateReview(_ context.Context, r *models.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createReviewErr != nil {
		return f.createReviewErr
	}
	r.ID, r.CreatedAt = f.tick()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	f.reviews[r.ID] = &cp
	return nil
}

func (f *fakeRecords) UpdateReview(_ context.Context, id uint, updates map[string]interface{}) (*models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateReviewErr != nil {
		return nil, f.updateReviewErr
	}
	r, ok := f.reviews[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	for k, v := range updates {
		switch k {
		case "rating":
			r.Rating = v.(int)
		case "communication":
			r.Communication = v.(int)
		case "maintenance":
			r.Maintenance = v.(int)
		case "respect":
			r.Respect = v.(int)
		case "comment":
			r.Comment = v.(string)
		case "would_rent_again":
			r.WouldRentAgain = v.(bool)
		case "rent_amount":
			r.RentAmount, _ = v.(*float64)
		case "property_address":
			r.PropertyAddress, _ = v.(*string)
		case "verification_status":
			r.VerificationStatus = v.(string)
		case "verification_file_url":
			switch p := v.(type) {
			case string:
				r.VerificationFileURL = &p
			case *string:
				r.VerificationFileURL = p
			default:
				r.VerificationFileURL = nil
			}
		default:
			panic(fmt.Sprintf("unexpected review column %q", k))
		}
	}
	_, r.UpdatedAt = f.tick()
	cp := *r
	return &cp, nil
}

func (f *fakeRecords) SetReviewDeleted(_ context.Context, id uint, deleted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reviews[id]
	if !ok {
		return storage.ErrNotFound
	}
	r.IsDeleted = deleted
	return nil
}

func (f *fakeRecords) ListPendingReviews(_ context.Context) ([]models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Review{}
	for _, r := range f.reviews {
		if r.VerificationStatus == models.VerificationPending && !r.IsDeleted {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeRecords) WriteAudit(_ context.Context, entry *models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audit = append(f.audit, *entry)
	return nil
}

func (f *fakeRecords) IsAdminEmail(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adminCalls++
	return f.admins[strings.ToLower(email)], nil
}

func (f *fakeRecords) CreateUser(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return fmt.Errorf("duplicate email %s", u.Email)
		}
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeRecords) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeRecords) GetUserByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeRecords) ConfirmUserEmail(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.EmailConfirmedAt = &at
	return nil
}

func (f *fakeRecords) UpdateUserPassword(_ context.Context, id string, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.Password = hash
	return nil
}

func (f *fakeRecords) review(id uint) models.Review {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.reviews[id]
}

func (f *fakeRecords) landlord(id uint) models.Landlord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.landlords[id]
}

// fakeFiles is an in-memory FileStore.
type fakeFiles struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploads   int
	uploadErr error
	deleteErr error
	signErr   error
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{objects: map[string][]byte{}}
}

func (f *fakeFiles) Upload(_ context.Context, key string, body io.ReadSeeker, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if f.uploadErr != nil {
		return f.uploadErr
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[key] = b
	return nil
}

func (f *fakeFiles) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeFiles) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	return fmt.Sprintf("https://files.test/%s?ttl=%d", key, int(ttl.Seconds())), nil
}

func (f *fakeFiles) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func (f *fakeFiles) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

// recordingMailer keeps every message it was asked to send.
type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

type sentMail struct {
	To, Subject, Body string
}

func (m *recordingMailer) Send(_ context.Context, to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: html})
	return nil
}

func (m *recordingMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func pdf(size int) *VerificationUpload {
	return &VerificationUpload{
		ContentType: "application/pdf",
		Size:        int64(size),
		Body:        strings.NewReader(strings.Repeat("x", size)),
	}
}

func goodReview() ReviewInput {
	return ReviewInput{Rating: 5, Communication: 4, Maintenance: 4, Respect: 5, Comment: "Great"}
}
