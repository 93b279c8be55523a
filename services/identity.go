package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ratemylandlord-server/models"
	"ratemylandlord-server/storage"
	"ratemylandlord-server/utils"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type SessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is an established sign-in.
type Session struct {
	ID           string      `json:"-"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken,omitempty"`
	ExpiresIn    int64       `json:"expiresIn,omitempty"`
	User         SessionUser `json:"user"`
}

type SessionEventKind string

const (
	SessionSignedIn       SessionEventKind = "SIGNED_IN"
	SessionTokenRefreshed SessionEventKind = "TOKEN_REFRESHED"
	SessionSignedOut      SessionEventKind = "SIGNED_OUT"
)

type SessionEvent struct {
	Kind      SessionEventKind
	SessionID string
	UserID    string
	Email     string
}

// Identity is the authentication provider the session store delegates to.
type Identity interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*models.User, error)
	ResendConfirmation(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, token, kind string) (*Session, error)
	GetSession(ctx context.Context, accessToken string) (*Session, error)
	SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*Session, error)
	UpdatePassword(ctx context.Context, accessToken, newPassword string) error
	SendPasswordReset(ctx context.Context, email string) error
	SignOut(ctx context.Context, accessToken string) error
	Subscribe() (<-chan SessionEvent, func())
}

const (
	sessionKeyPrefix = "session:"
	otpKeyPrefix     = "otp:"
)

type otpRecord struct {
	UserID string `json:"userID"`
	Kind   string `json:"kind"`
}

// LocalIdentity keeps accounts in the database and sessions and one-time
// tokens in Redis.
type LocalIdentity struct {
	users    UserRecords
	redis    *redis.Client
	tokens   *utils.TokenIssuer
	notifier *NotificationService
	otpTTL   time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	mu          sync.Mutex
	nextSubID   int
	subscribers map[int]chan SessionEvent
}

func NewLocalIdentity(users UserRecords, rdb *redis.Client, tokens *utils.TokenIssuer, notifier *NotificationService, otpTTL time.Duration, logger zerolog.Logger) *LocalIdentity {
	return &LocalIdentity{
		users:       users,
		redis:       rdb,
		tokens:      tokens,
		notifier:    notifier,
		otpTTL:      otpTTL,
		logger:      logger.With().Str("component", "identity").Logger(),
		now:         time.Now,
		subscribers: make(map[int]chan SessionEvent),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (id *LocalIdentity) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := id.users.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsConfirmed() {
		return nil, ErrEmailNotConfirmed
	}

	sess, err := id.newSession(ctx, user)
	if err != nil {
		return nil, err
	}
	id.publish(SessionEvent{Kind: SessionSignedIn, SessionID: sess.ID, UserID: user.ID, Email: user.Email})
	return sess, nil
}

// SignUp creates an unconfirmed account and e-mails its confirmation link.
// Signing up again with an unconfirmed address re-sends the link.
func (id *LocalIdentity) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)

	existing, err := id.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil && existing.IsConfirmed():
		return nil, ErrEmailTaken
	case err == nil:
		if err := id.sendConfirmation(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		ID:       uuid.NewString(),
		Email:    email,
		Password: string(hash),
	}
	if err := id.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	if err := id.sendConfirmation(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (id *LocalIdentity) ResendConfirmation(ctx context.Context, email string) error {
	user, err := id.users.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if user.IsConfirmed() {
		return nil
	}
	return id.sendConfirmation(ctx, user)
}

func (id *LocalIdentity) SendPasswordReset(ctx context.Context, email string) error {
	user, err := id.users.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		id.logger.Debug().Str("email", email).Msg("password reset requested for unknown e-mail")
		return nil
	}
	if err != nil {
		return err
	}

	token, err := id.issueOTP(ctx, user.ID, LinkRecovery)
	if err != nil {
		return err
	}
	return id.notifier.SendPasswordReset(ctx, user.Email, token)
}

// VerifyOTP consumes a one-time link token and opens a session for its user.
func (id *LocalIdentity) VerifyOTP(ctx context.Context, token, kind string) (*Session, error) {
	if token == "" {
		return nil, ErrOTPInvalid
	}

	raw, err := id.redis.GetDel(ctx, otpKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrOTPExpired
	}
	if err != nil {
		return nil, fmt.Errorf("otp lookup: %w", err)
	}

	var rec otpRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, ErrOTPInvalid
	}
	if rec.Kind != kind {
		return nil, ErrOTPInvalid
	}

	user, err := id.users.GetUserByID(ctx, rec.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrOTPInvalid
	}
	if err != nil {
		return nil, err
	}

	if kind == LinkSignup && !user.IsConfirmed() {
		at := id.now()
		if err := id.users.ConfirmUserEmail(ctx, user.ID, at); err != nil {
			return nil, err
		}
		user.EmailConfirmedAt = &at
	}

	sess, err := id.newSession(ctx, user)
	if err != nil {
		return nil, err
	}
	id.publish(SessionEvent{Kind: SessionSignedIn, SessionID: sess.ID, UserID: user.ID, Email: user.Email})
	return sess, nil
}

// GetSession returns the live session an access token belongs to.
func (id *LocalIdentity) GetSession(ctx context.Context, accessToken string) (*Session, error) {
	claims, err := id.tokens.ParseAccess(accessToken)
	if err != nil {
		return nil, ErrInvalidSession
	}

	userID, err := id.redis.Get(ctx, sessionKeyPrefix+claims.SessionID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	if userID != claims.ID {
		return nil, ErrInvalidSession
	}

	return &Session{
		ID:          claims.SessionID,
		AccessToken: accessToken,
		User:        SessionUser{ID: claims.ID, Email: claims.Email},
	}, nil
}

// SetSession adopts a token pair delivered out of band, e.g. in a redirect
// fragment. Both tokens must belong to the same live session.
func (id *LocalIdentity) SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	sess, err := id.GetSession(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	sid, err := id.tokens.ParseRefresh(refreshToken)
	if err != nil || sid != sess.ID {
		return nil, ErrInvalidSession
	}
	sess.RefreshToken = refreshToken
	return sess, nil
}

func (id *LocalIdentity) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	sid, err := id.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidSession
	}

	userID, err := id.redis.Get(ctx, sessionKeyPrefix+sid).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("session lookup: %w", err)
	}

	user, err := id.users.GetUserByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}

	pair, err := id.tokens.Issue(user.ID, user.Email, sid)
	if err != nil {
		return nil, err
	}
	if err := id.redis.Expire(ctx, sessionKeyPrefix+sid, id.tokens.RefreshTTL()).Err(); err != nil {
		return nil, fmt.Errorf("extend session: %w", err)
	}

	sess := sessionFromPair(sid, user, pair)
	id.publish(SessionEvent{Kind: SessionTokenRefreshed, SessionID: sid, UserID: user.ID, Email: user.Email})
	return sess, nil
}

func (id *LocalIdentity) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	sess, err := id.GetSession(ctx, accessToken)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return id.users.UpdateUserPassword(ctx, sess.User.ID, string(hash))
}

func (id *LocalIdentity) SignOut(ctx context.Context, accessToken string) error {
	claims, err := id.tokens.ParseAccess(accessToken)
	if err != nil {
		return ErrInvalidSession
	}
	if err := id.redis.Del(ctx, sessionKeyPrefix+claims.SessionID).Err(); err != nil {
		return fmt.Errorf("drop session: %w", err)
	}
	id.publish(SessionEvent{Kind: SessionSignedOut, SessionID: claims.SessionID, UserID: claims.ID, Email: claims.Email})
	return nil
}

// Subscribe registers a listener for session changes. The returned func
// unregisters it and closes the channel.
func (id *LocalIdentity) Subscribe() (<-chan SessionEvent, func()) {
	id.mu.Lock()
	defer id.mu.Unlock()

	subID := id.nextSubID
	id.nextSubID++
	ch := make(chan SessionEvent, 32)
	id.subscribers[subID] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			id.mu.Lock()
			delete(id.subscribers, subID)
			id.mu.Unlock()
			close(ch)
		})
	}
}

func (id *LocalIdentity) publish(ev SessionEvent) {
	id.mu.Lock()
	defer id.mu.Unlock()
	for _, ch := range id.subscribers {
		select {
		case ch <- ev:
		default:
			id.logger.Warn().Str("kind", string(ev.Kind)).Msg("session listener is full, event dropped")
		}
	}
}

func (id *LocalIdentity) newSession(ctx context.Context, user *models.User) (*Session, error) {
	sid := uuid.NewString()
	if err := id.redis.Set(ctx, sessionKeyPrefix+sid, user.ID, id.tokens.RefreshTTL()).Err(); err != nil {
		return nil, fmt.Errorf("register session: %w", err)
	}
	pair, err := id.tokens.Issue(user.ID, user.Email, sid)
	if err != nil {
		return nil, err
	}
	return sessionFromPair(sid, user, pair), nil
}

func (id *LocalIdentity) issueOTP(ctx context.Context, userID, kind string) (string, error) {
	token := utils.GenerateShortToken(24)
	if token == "" {
		return "", errors.New("generate otp: no randomness")
	}
	payload, err := json.Marshal(otpRecord{UserID: userID, Kind: kind})
	if err != nil {
		return "", err
	}
	if err := id.redis.Set(ctx, otpKeyPrefix+token, payload, id.otpTTL).Err(); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	return token, nil
}

func (id *LocalIdentity) sendConfirmation(ctx context.Context, user *models.User) error {
	token, err := id.issueOTP(ctx, user.ID, LinkSignup)
	if err != nil {
		return err
	}
	if err := id.notifier.SendConfirmation(ctx, user.Email, token); err != nil {
		return fmt.Errorf("send confirmation: %w", err)
	}
	return nil
}

func sessionFromPair(sid string, user *models.User, pair *utils.TokenPair) *Session {
	return &Session{
		ID:           sid,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		User:         SessionUser{ID: user.ID, Email: user.Email},
	}
}
