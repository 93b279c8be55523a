package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func turnstileServer(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestTurnstileVerifier(t *testing.T) {
	var gotSecret, gotResponse, gotIP string
	url := turnstileServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotSecret = r.PostForm.Get("secret")
		gotResponse = r.PostForm.Get("response")
		gotIP = r.PostForm.Get("remoteip")

		w.Header().Set("Content-Type", "application/json")
		if gotResponse == "good" {
			w.Write([]byte(`{"success":true,"hostname":"example.com"}`))
			return
		}
		w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	})
	v := NewTurnstileVerifierWithURL("shh", url, testLogger)
	ctx := context.Background()

	require.NoError(t, v.Verify(ctx, "good", "10.0.0.1"))
	assert.Equal(t, "shh", gotSecret)
	assert.Equal(t, "good", gotResponse)
	assert.Equal(t, "10.0.0.1", gotIP)

	assert.ErrorIs(t, v.Verify(ctx, "bad", ""), ErrCaptchaFailed)
	assert.ErrorIs(t, v.Verify(ctx, "", ""), ErrCaptchaFailed)
}

func TestTurnstileVerifier_UpstreamFailure(t *testing.T) {
	url := turnstileServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	err := NewTurnstileVerifierWithURL("shh", url, testLogger).Verify(context.Background(), "good", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCaptchaFailed)
}

func TestNewCaptchaVerifier(t *testing.T) {
	assert.IsType(t, NoCaptcha{}, NewCaptchaVerifier("", testLogger))
	assert.IsType(t, &TurnstileVerifier{}, NewCaptchaVerifier("secret", testLogger))
}
