package services

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var errConditionNotMet = errors.New("session condition not met")

// Readiness waits, with a bounded number of attempts, for a session to
// exist and satisfy a condition.
type Readiness struct {
	identity Identity
	attempts int
	interval time.Duration
}

func NewReadiness(identity Identity, attempts int, interval time.Duration) *Readiness {
	if attempts < 1 {
		attempts = 1
	}
	return &Readiness{identity: identity, attempts: attempts, interval: interval}
}

func (r *Readiness) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(r.interval), uint64(r.attempts-1))
	return backoff.WithContext(b, ctx)
}

// Await polls GetSession until the session is present and cond holds. Every
// failure, cancellation included, is reported as ErrSessionNotReady.
func (r *Readiness) Await(ctx context.Context, accessToken string, cond func(*Session) bool) (*Session, error) {
	var ready *Session
	op := func() error {
		sess, err := r.identity.GetSession(ctx, accessToken)
		if err != nil {
			return err
		}
		if cond != nil && !cond(sess) {
			return errConditionNotMet
		}
		ready = sess
		return nil
	}

	if err := backoff.Retry(op, r.backOff(ctx)); err != nil {
		return nil, ErrSessionNotReady
	}
	return ready, nil
}
