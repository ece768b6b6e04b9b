package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	id "certreg/pkg/domain"
	"certreg/pkg/requestcontext"
)

type stubLimiter struct {
	allowed    bool
	err        error
	identifier string
}

func (l *stubLimiter) Allow(_ context.Context, identifier string) (bool, error) {
	l.identifier = identifier
	return l.allowed, l.err
}

func rateLimitedHandler(l Limiter) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return RateLimit(l, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestRateLimitAllows(t *testing.T) {
	limiter := &stubLimiter{allowed: true}
	rec := httptest.NewRecorder()
	rateLimitedHandler(limiter).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestRateLimitRejects(t *testing.T) {
	limiter := &stubLimiter{allowed: false}
	rec := httptest.NewRecorder()
	rateLimitedHandler(limiter).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Fatal("expected Retry-After header")
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	limiter := &stubLimiter{allowed: false, err: errors.New("redis down")}
	rec := httptest.NewRecorder()
	rateLimitedHandler(limiter).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected limiter failure to fail open, got %d", rec.Code)
	}
}

func TestRateLimitNilLimiterPasses(t *testing.T) {
	rec := httptest.NewRecorder()
	rateLimitedHandler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 with no limiter, got %d", rec.Code)
	}
}

func TestRateLimitIdentifier(t *testing.T) {
	t.Run("authenticated requests key on the actor", func(t *testing.T) {
		limiter := &stubLimiter{allowed: true}
		actor := id.ActorID(uuid.New())

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(requestcontext.WithActor(req.Context(), actor, requestcontext.RoleReviewer))
		rateLimitedHandler(limiter).ServeHTTP(httptest.NewRecorder(), req)

		if limiter.identifier != actor.String() {
			t.Fatalf("expected actor identifier, got %q", limiter.identifier)
		}
	})

	t.Run("anonymous requests key on the client IP", func(t *testing.T) {
		limiter := &stubLimiter{allowed: true}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.9:4711"
		rateLimitedHandler(limiter).ServeHTTP(httptest.NewRecorder(), req)

		if limiter.identifier != "203.0.113.9" {
			t.Fatalf("expected client ip identifier, got %q", limiter.identifier)
		}
	})
}
