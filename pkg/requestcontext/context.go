// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services consume them without importing
// net/http. Tests inject them directly:
//
//	ctx = requestcontext.WithActor(ctx, actorID, requestcontext.RoleReviewer)
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "certreg/pkg/domain"
)

// Role is the coarse capability attached to an authenticated actor.
// The identity provider validates credentials; this package only carries
// the already-verified role through the request.
type Role string

const (
	RoleApplicant Role = "applicant"
	RoleReviewer  Role = "reviewer"
	RoleRegistrar Role = "registrar"
	RoleAdmin     Role = "admin"
)

// CanReview reports whether the role may verify evidence and decide
// applications.
func (r Role) CanReview() bool {
	return r == RoleReviewer || r == RoleRegistrar || r == RoleAdmin
}

// CanRegister reports whether the role may finalize registration.
func (r Role) CanRegister() bool {
	return r == RoleRegistrar || r == RoleAdmin
}

type (
	actorIDKey     struct{}
	actorRoleKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeyActorID     = actorIDKey{}
	ContextKeyActorRole   = actorRoleKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// ActorID retrieves the authenticated actor ID from the context.
// Returns the zero value if not set.
func ActorID(ctx context.Context) id.ActorID {
	if actorID, ok := ctx.Value(ContextKeyActorID).(id.ActorID); ok {
		return actorID
	}
	return id.ActorID{}
}

// ActorRole retrieves the authenticated actor's role from the context.
func ActorRole(ctx context.Context) Role {
	if role, ok := ctx.Value(ContextKeyActorRole).(Role); ok {
		return role
	}
	return ""
}

// WithActor injects an actor identity into the context.
func WithActor(ctx context.Context, actorID id.ActorID, role Role) context.Context {
	ctx = context.WithValue(ctx, ContextKeyActorID, actorID)
	return context.WithValue(ctx, ContextKeyActorRole, role)
}

// RequestID retrieves the request correlation ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context. All writes within one
// request observe the same "now", keeping audit timestamps and domain
// timestamps consistent. Falls back to time.Now() outside HTTP (workers,
// CLI, tests that don't inject a time).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service unit
// tests that don't run the HTTP middleware chain.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
