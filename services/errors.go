package services

import (
	"errors"
	"fmt"
)

var (
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrEmailNotConfirmed    = errors.New("email not confirmed")
	ErrEmailTaken           = errors.New("email already registered")
	ErrInvalidTransition    = errors.New("invalid moderation transition")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrReviewDeleted        = errors.New("review is deleted")
	ErrSessionNotReady      = errors.New("session not ready")
	ErrInvalidLink          = errors.New("invalid or expired link")
	ErrOTPExpired           = errors.New("otp expired")
	ErrOTPInvalid           = errors.New("otp invalid")
	ErrInvalidSession       = errors.New("invalid session")
	ErrCaptchaFailed        = errors.New("captcha verification failed")
)

// ValidationError is returned before any remote call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// PartialWriteError reports that the first step of a multi-step write was
// kept while a later one failed.
type PartialWriteError struct {
	Completed string
	Failed    string
	Err       error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("%s succeeded but %s failed: %v", e.Completed, e.Failed, e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}
