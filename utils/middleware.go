package utils

import (
	"strings"
	"time"

	"github.com/kataras/iris/v12"
	"github.com/rs/zerolog"
)

// BearerToken returns the token of an "Authorization: Bearer" header.
func BearerToken(ctx iris.Context) string {
	header := ctx.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequestLogger logs method, path, status and latency of every request.
func RequestLogger(logger zerolog.Logger) iris.Handler {
	return func(ctx iris.Context) {
		start := time.Now()
		ctx.Next()

		status := ctx.GetStatusCode()
		event := logger.Info()
		if status >= 500 {
			event = logger.Error()
		} else if status >= 400 {
			event = logger.Warn()
		}
		event.
			Str("method", ctx.Method()).
			Str("path", ctx.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", ClientIP(ctx)).
			Msg("request")
	}
}
