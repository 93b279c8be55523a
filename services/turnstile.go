package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// CaptchaVerifier checks a challenge token solved by the browser.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// NoCaptcha accepts every token. Used when no secret is configured.
type NoCaptcha struct{}

func (NoCaptcha) Verify(context.Context, string, string) error { return nil }

const turnstileVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

type TurnstileVerifier struct {
	client *resty.Client
	url    string
	secret string
	logger zerolog.Logger
}

type turnstileResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
	Hostname   string   `json:"hostname"`
}

func NewTurnstileVerifier(secret string, logger zerolog.Logger) *TurnstileVerifier {
	return NewTurnstileVerifierWithURL(secret, turnstileVerifyURL, logger)
}

func NewTurnstileVerifierWithURL(secret, verifyURL string, logger zerolog.Logger) *TurnstileVerifier {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second)

	return &TurnstileVerifier{
		client: client,
		url:    verifyURL,
		secret: secret,
		logger: logger.With().Str("component", "turnstile").Logger(),
	}
}

func (v *TurnstileVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	if token == "" {
		return ErrCaptchaFailed
	}

	form := map[string]string{
		"secret":   v.secret,
		"response": token,
	}
	if remoteIP != "" {
		form["remoteip"] = remoteIP
	}

	var result turnstileResponse
	resp, err := v.client.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&result).
		Post(v.url)
	if err != nil {
		return fmt.Errorf("turnstile request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("turnstile returned status %d", resp.StatusCode())
	}
	if !result.Success {
		v.logger.Info().Strs("errorCodes", result.ErrorCodes).Msg("captcha rejected")
		return ErrCaptchaFailed
	}
	return nil
}

// NewCaptchaVerifier returns Turnstile when a secret is configured.
func NewCaptchaVerifier(secret string, logger zerolog.Logger) CaptchaVerifier {
	if secret == "" {
		return NoCaptcha{}
	}
	return NewTurnstileVerifier(secret, logger)
}
