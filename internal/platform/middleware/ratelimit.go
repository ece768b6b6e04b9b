package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	dErrors "certreg/pkg/domain-errors"
	"certreg/pkg/platform/httputil"
	"certreg/pkg/requestcontext"
)

// Limiter decides whether one more request from an identifier is allowed.
type Limiter interface {
	Allow(ctx context.Context, identifier string) (bool, error)
}

// RateLimit throttles per actor when authenticated, per client IP
// otherwise. A limiter failure fails open: losing Redis should not take
// the registry down with it.
func RateLimit(limiter Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			identifier := requestcontext.ActorID(ctx).String()
			if requestcontext.ActorID(ctx).IsZero() {
				identifier = clientIP(r)
			}

			allowed, err := limiter.Allow(ctx, identifier)
			if err != nil {
				logger.WarnContext(ctx, "rate limit check failed",
					"request_id", requestcontext.RequestID(ctx),
					"error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", "1")
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
