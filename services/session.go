package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"ratemylandlord-server/models"

	"github.com/rs/zerolog"
)

const MinPasswordLength = 6

// SessionStore fronts the identity provider and derives the admin flag of
// signed-in users through a short-lived cache.
type SessionStore struct {
	identity     Identity
	admins       AdminDirectory
	cache        AdminFlagCache
	captcha      CaptchaVerifier
	refreshDelay time.Duration
	logger       zerolog.Logger
}

func NewSessionStore(identity Identity, admins AdminDirectory, cache AdminFlagCache, captcha CaptchaVerifier, refreshDelay time.Duration, logger zerolog.Logger) *SessionStore {
	if captcha == nil {
		captcha = NoCaptcha{}
	}
	return &SessionStore{
		identity:     identity,
		admins:       admins,
		cache:        cache,
		captcha:      captcha,
		refreshDelay: refreshDelay,
		logger:       logger.With().Str("component", "session").Logger(),
	}
}

func validateEmail(email string) error {
	if email == "" {
		return invalid("email", "email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return invalid("email", "email is not valid")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return invalid("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	return nil
}

// Login opens a session. Failures are ErrEmailNotConfirmed or
// ErrInvalidCredentials so callers can offer a resend of the confirmation.
func (s *SessionStore) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, invalid("password", "password is required")
	}
	return s.identity.SignIn(ctx, email, password)
}

// Register creates an unconfirmed account. No session is opened.
func (s *SessionStore) Register(ctx context.Context, email, password, captchaToken, remoteIP string) (*models.User, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if err := s.captcha.Verify(ctx, captchaToken, remoteIP); err != nil {
		return nil, err
	}
	return s.identity.SignUp(ctx, email, password)
}

// Logout ends the session and forgets the cached admin flag of its user.
func (s *SessionStore) Logout(ctx context.Context, accessToken string) error {
	sess, _ := s.identity.GetSession(ctx, accessToken)
	if err := s.identity.SignOut(ctx, accessToken); err != nil {
		return err
	}
	if sess != nil {
		if err := s.cache.Evict(ctx, sess.User.Email); err != nil {
			s.logger.Warn().Err(err).Str("email", sess.User.Email).Msg("admin flag eviction failed")
		}
	}
	return nil
}

func (s *SessionStore) ResetPassword(ctx context.Context, email, captchaToken, remoteIP string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	if err := s.captcha.Verify(ctx, captchaToken, remoteIP); err != nil {
		return err
	}
	return s.identity.SendPasswordReset(ctx, email)
}

func (s *SessionStore) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	return s.identity.UpdatePassword(ctx, accessToken, newPassword)
}

func (s *SessionStore) ResendConfirmation(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	return s.identity.ResendConfirmation(ctx, email)
}

func (s *SessionStore) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrInvalidSession
	}
	return s.identity.RefreshSession(ctx, refreshToken)
}

// Current resolves an access token into its session and the viewer it acts
// as. The viewer's admin flag comes from the cache and is only a hint.
func (s *SessionStore) Current(ctx context.Context, accessToken string) (*Session, Viewer, error) {
	sess, err := s.identity.GetSession(ctx, accessToken)
	if err != nil {
		return nil, Viewer{}, err
	}

	viewer := Viewer{UserID: sess.User.ID, Email: sess.User.Email}
	isAdmin, err := s.IsAdmin(ctx, sess.User.Email)
	if err != nil {
		s.logger.Warn().Err(err).Str("email", sess.User.Email).Msg("admin flag lookup failed, treating as non-admin")
	} else {
		viewer.IsAdmin = isAdmin
	}
	return sess, viewer, nil
}

// IsAdmin answers from the cache when an entry exists, otherwise asks the
// allow-list and caches the answer.
func (s *SessionStore) IsAdmin(ctx context.Context, email string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" {
		return false, nil
	}

	if v, ok, err := s.cache.Get(ctx, email); err != nil {
		s.logger.Warn().Err(err).Msg("admin cache read failed")
	} else if ok {
		return v, nil
	}

	isAdmin, err := s.admins.IsAdminEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if err := s.cache.Set(ctx, email, isAdmin); err != nil {
		s.logger.Warn().Err(err).Msg("admin cache write failed")
	}
	return isAdmin, nil
}

// Run listens for session changes until ctx is done. Sign-ins derive the
// admin flag at once, token refreshes after a short delay, sign-outs evict.
func (s *SessionStore) Run(ctx context.Context) {
	events, unsubscribe := s.identity.Subscribe()
	defer unsubscribe()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case SessionSignedIn:
				s.deriveAdminFlag(ctx, ev.Email)
			case SessionTokenRefreshed:
				wg.Add(1)
				go func(email string) {
					defer wg.Done()
					timer := time.NewTimer(s.refreshDelay)
					defer timer.Stop()
					select {
					case <-ctx.Done():
						return
					case <-timer.C:
					}
					s.deriveAdminFlag(ctx, email)
				}(ev.Email)
			case SessionSignedOut:
				if err := s.cache.Evict(ctx, ev.Email); err != nil {
					s.logger.Warn().Err(err).Str("email", ev.Email).Msg("admin flag eviction failed")
				}
			}
		}
	}
}

func (s *SessionStore) deriveAdminFlag(ctx context.Context, email string) {
	if _, err := s.IsAdmin(ctx, email); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn().Err(err).Str("email", email).Msg("admin flag derivation failed")
	}
}
