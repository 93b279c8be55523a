package services

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ratemylandlord-server/utils"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Fragment is the parsed "#access_token=...&type=..." part of an auth
// redirect, or its "#error=...&error_code=..." failure form.
type Fragment struct {
	AccessToken      string
	RefreshToken     string
	Type             string
	ExpiresIn        int64
	Error            string
	ErrorCode        string
	ErrorDescription string
}

// ParseFragment accepts the fragment with or without its leading '#'.
// Unparseable input yields an empty Fragment.
func ParseFragment(raw string) Fragment {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "#")
	values, err := url.ParseQuery(raw)
	if err != nil {
		return Fragment{}
	}
	f := Fragment{
		AccessToken:      values.Get("access_token"),
		RefreshToken:     values.Get("refresh_token"),
		Type:             values.Get("type"),
		Error:            values.Get("error"),
		ErrorCode:        values.Get("error_code"),
		ErrorDescription: values.Get("error_description"),
	}
	if v := values.Get("expires_in"); v != "" {
		f.ExpiresIn, _ = strconv.ParseInt(v, 10, 64)
	}
	return f
}

func (f Fragment) HasError() bool {
	return f.Error != "" || f.ErrorCode != ""
}

type LinkFailure string

const (
	FailureNone       LinkFailure = ""
	FailureOTPExpired LinkFailure = "otp_expired"
	FailureInvalid    LinkFailure = "invalid_link"
)

func (f Fragment) Failure() LinkFailure {
	switch {
	case !f.HasError():
		return FailureNone
	case f.ErrorCode == "otp_expired":
		return FailureOTPExpired
	default:
		return FailureInvalid
	}
}

// Message is the text shown for a failed link.
func (f Fragment) Message() string {
	switch f.Failure() {
	case FailureNone:
		return ""
	case FailureOTPExpired:
		return "This link has expired. Please request a new one."
	default:
		if f.ErrorDescription != "" {
			return f.ErrorDescription
		}
		return "This link is invalid or has expired."
	}
}

// RecoveryTickets remembers which sessions came out of a password recovery
// redirect. A ticket is bound to one session and expires on its own.
type RecoveryTickets struct {
	c *cache.Cache
}

func NewRecoveryTickets(ttl time.Duration) *RecoveryTickets {
	return &RecoveryTickets{c: cache.New(ttl, 2*ttl)}
}

func (t *RecoveryTickets) Issue(sessionID string) string {
	ticket := utils.GenerateShortToken(16)
	t.c.SetDefault(ticket, sessionID)
	return ticket
}

func (t *RecoveryTickets) Valid(ticket, sessionID string) bool {
	if ticket == "" {
		return false
	}
	v, ok := t.c.Get(ticket)
	return ok && v.(string) == sessionID
}

func (t *RecoveryTickets) Consume(ticket string) {
	t.c.Delete(ticket)
}

type HandshakeKind string

const (
	HandshakeNone                 HandshakeKind = "none"
	HandshakeLinkError            HandshakeKind = "link_error"
	HandshakeVerificationComplete HandshakeKind = "verification_complete"
	HandshakeSetNewPassword       HandshakeKind = "set_new_password"
	HandshakeAborted              HandshakeKind = "aborted"
)

const (
	RedirectVerificationComplete = "/verify-email/complete"
	RedirectResetPassword        = "/reset-password"
)

type HandshakeOutcome struct {
	Kind     HandshakeKind `json:"kind"`
	Failure  LinkFailure   `json:"failure,omitempty"`
	Message  string        `json:"message,omitempty"`
	Session  *Session      `json:"session,omitempty"`
	Ticket   string        `json:"ticket,omitempty"`
	Redirect string        `json:"redirect,omitempty"`
}

// Handshake turns an auth redirect fragment into a session and tells the
// caller where to go next.
type Handshake struct {
	identity  Identity
	readiness *Readiness
	tickets   *RecoveryTickets
	settle    time.Duration
	group     singleflight.Group
	logger    zerolog.Logger
}

func NewHandshake(identity Identity, readiness *Readiness, tickets *RecoveryTickets, settle time.Duration, logger zerolog.Logger) *Handshake {
	return &Handshake{
		identity:  identity,
		readiness: readiness,
		tickets:   tickets,
		settle:    settle,
		logger:    logger.With().Str("component", "handshake").Logger(),
	}
}

// Run processes one fragment. Concurrent calls for the same fragment share a
// single execution and its outcome. The shared execution is detached from
// the first caller's cancellation so it cannot abort the others.
func (h *Handshake) Run(ctx context.Context, raw string) HandshakeOutcome {
	shared := context.WithoutCancel(ctx)
	v, _, _ := h.group.Do(raw, func() (interface{}, error) {
		return h.run(shared, ParseFragment(raw)), nil
	})
	return v.(HandshakeOutcome)
}

func (h *Handshake) run(ctx context.Context, f Fragment) HandshakeOutcome {
	if f.HasError() {
		return HandshakeOutcome{Kind: HandshakeLinkError, Failure: f.Failure(), Message: f.Message()}
	}

	switch {
	case f.Type == LinkSignup && f.AccessToken != "":
		return h.signup(ctx, f)
	case f.Type == LinkRecovery && f.AccessToken != "" && f.RefreshToken != "":
		return h.recovery(ctx, f)
	default:
		return HandshakeOutcome{Kind: HandshakeNone}
	}
}

func (h *Handshake) signup(ctx context.Context, f Fragment) HandshakeOutcome {
	var (
		sess *Session
		err  error
	)
	if f.RefreshToken != "" {
		sess, err = h.identity.SetSession(ctx, f.AccessToken, f.RefreshToken)
	} else {
		sess, err = h.identity.GetSession(ctx, f.AccessToken)
	}
	if err != nil {
		h.logger.Info().Err(err).Msg("signup link session could not be established")
		return aborted("We could not sign you in from this link. Please log in.")
	}

	if !h.wait(ctx) {
		return aborted("Verification was interrupted.")
	}
	return HandshakeOutcome{
		Kind:     HandshakeVerificationComplete,
		Session:  sess,
		Redirect: RedirectVerificationComplete,
	}
}

func (h *Handshake) recovery(ctx context.Context, f Fragment) HandshakeOutcome {
	sess, err := h.identity.SetSession(ctx, f.AccessToken, f.RefreshToken)
	if err != nil {
		h.logger.Info().Err(err).Msg("recovery link session could not be set")
		return aborted("This password reset link could not be used. Please request a new one.")
	}

	ticket := h.tickets.Issue(sess.ID)
	if !h.wait(ctx) {
		h.tickets.Consume(ticket)
		return aborted("Password reset was interrupted.")
	}

	if _, err := h.readiness.Await(ctx, f.AccessToken, nil); err != nil {
		h.tickets.Consume(ticket)
		return aborted("Your reset session did not become ready. Please request a new link.")
	}

	q := url.Values{}
	q.Set("ticket", ticket)
	return HandshakeOutcome{
		Kind:     HandshakeSetNewPassword,
		Session:  sess,
		Ticket:   ticket,
		Redirect: RedirectResetPassword + "?" + q.Encode(),
	}
}

func (h *Handshake) wait(ctx context.Context) bool {
	if h.settle <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(h.settle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func aborted(message string) HandshakeOutcome {
	return HandshakeOutcome{Kind: HandshakeAborted, Message: message}
}

type ResetStatus string

const (
	ResetReady   ResetStatus = "ready"
	ResetInvalid ResetStatus = "invalid"
)

type ResetCheck struct {
	Fragment    string `json:"fragment"`
	AccessToken string `json:"-"`
	Ticket      string `json:"ticket"`
}

type ResetState struct {
	Status  ResetStatus `json:"status"`
	Failure LinkFailure `json:"failure,omitempty"`
	Message string      `json:"message,omitempty"`
}

type ResetRequest struct {
	AccessToken     string `json:"-"`
	Ticket          string `json:"ticket" validate:"required"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

// PasswordReset guards the set-new-password step: it only proceeds for a
// live session that holds a recovery ticket.
type PasswordReset struct {
	identity  Identity
	readiness *Readiness
	tickets   *RecoveryTickets
	logger    zerolog.Logger
}

func NewPasswordReset(identity Identity, readiness *Readiness, tickets *RecoveryTickets, logger zerolog.Logger) *PasswordReset {
	return &PasswordReset{
		identity:  identity,
		readiness: readiness,
		tickets:   tickets,
		logger:    logger.With().Str("component", "password-reset").Logger(),
	}
}

const invalidLinkMessage = "This password reset link is invalid or has expired."

// Check reports whether the set-new-password form may be shown. An error
// fragment is final without polling.
func (p *PasswordReset) Check(ctx context.Context, in ResetCheck) ResetState {
	if f := ParseFragment(in.Fragment); f.HasError() {
		return ResetState{Status: ResetInvalid, Failure: f.Failure(), Message: f.Message()}
	}
	if in.AccessToken == "" || in.Ticket == "" {
		return ResetState{Status: ResetInvalid, Failure: FailureInvalid, Message: invalidLinkMessage}
	}

	if _, err := p.awaitTicket(ctx, in.AccessToken, in.Ticket); err != nil {
		return ResetState{Status: ResetInvalid, Failure: FailureInvalid, Message: invalidLinkMessage}
	}
	return ResetState{Status: ResetReady}
}

// Complete sets the new password and ends the recovery session so the user
// signs in again with it.
func (p *PasswordReset) Complete(ctx context.Context, in ResetRequest) error {
	if in.Password != in.ConfirmPassword {
		return invalid("confirmPassword", "passwords do not match")
	}
	if err := validatePassword(in.Password); err != nil {
		return err
	}
	if in.AccessToken == "" || in.Ticket == "" {
		return ErrInvalidLink
	}

	if _, err := p.awaitTicket(ctx, in.AccessToken, in.Ticket); err != nil {
		return ErrInvalidLink
	}

	if err := p.identity.UpdatePassword(ctx, in.AccessToken, in.Password); err != nil {
		return err
	}
	p.tickets.Consume(in.Ticket)

	if err := p.identity.SignOut(ctx, in.AccessToken); err != nil {
		p.logger.Warn().Err(err).Msg("recovery session not signed out after password change")
	}
	return nil
}

func (p *PasswordReset) awaitTicket(ctx context.Context, accessToken, ticket string) (*Session, error) {
	return p.readiness.Await(ctx, accessToken, func(s *Session) bool {
		return p.tickets.Valid(ticket, s.ID)
	})
}
