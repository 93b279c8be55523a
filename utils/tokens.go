package utils

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/kataras/iris/v12/middleware/jwt"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type AccessToken struct {
	ID        string `json:"ID"`
	Email     string `json:"email"`
	SessionID string `json:"sid"`
}

// TokenPair is what clients hold for one session.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type RefreshTokenInput struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// TokenIssuer signs and verifies the access/refresh pair of a session.
type TokenIssuer struct {
	accessSigner    *jwt.Signer
	refreshSigner   *jwt.Signer
	accessVerifier  *jwt.Verifier
	refreshVerifier *jwt.Verifier
	accessTTL       time.Duration
	refreshTTL      time.Duration
}

func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		accessSigner:    jwt.NewSigner(jwt.HS256, []byte(accessSecret), accessTTL),
		refreshSigner:   jwt.NewSigner(jwt.HS256, []byte(refreshSecret), refreshTTL),
		accessVerifier:  jwt.NewVerifier(jwt.HS256, []byte(accessSecret)),
		refreshVerifier: jwt.NewVerifier(jwt.HS256, []byte(refreshSecret)),
		accessTTL:       accessTTL,
		refreshTTL:      refreshTTL,
	}
}

func (t *TokenIssuer) RefreshTTL() time.Duration {
	return t.refreshTTL
}

func (t *TokenIssuer) Issue(userID, email, sessionID string) (*TokenPair, error) {
	accessToken, err := t.accessSigner.Sign(AccessToken{
		ID:        userID,
		Email:     email,
		SessionID: sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := t.refreshSigner.Sign(jwt.Claims{
		Subject: sessionID,
		ID:      GenerateShortToken(8),
	})
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  string(accessToken),
		RefreshToken: string(refreshToken),
		ExpiresIn:    int64(t.accessTTL.Seconds()),
	}, nil
}

func (t *TokenIssuer) ParseAccess(token string) (*AccessToken, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	verified, err := t.accessVerifier.VerifyToken([]byte(token))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	var claims AccessToken
	if err := verified.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ID == "" || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// ParseRefresh returns the session id a refresh token belongs to.
func (t *TokenIssuer) ParseRefresh(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	verified, err := t.refreshVerifier.VerifyToken([]byte(token))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if verified.StandardClaims.Subject == "" {
		return "", ErrInvalidToken
	}
	return verified.StandardClaims.Subject, nil
}

// GenerateShortToken returns a URL-safe random string of the given length (bytes*2 hex).
func GenerateShortToken(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	const hex = "0123456789abcdef"
	out := make([]byte, n*2)
	for i, v := range b {
		out[i*2] = hex[v>>4]
		out[i*2+1] = hex[v&0x0f]
	}
	return string(out)
}
