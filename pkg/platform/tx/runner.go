package tx

import (
	"context"
	"sync"
	"time"

	dErrors "certreg/pkg/domain-errors"
)

// Runner is the transaction boundary services run their mutations through.
// The SQL implementation (wired in cmd/server) wraps a database
// transaction; InMemoryRunner gives unit tests and demo mode the same
// serialization guarantees with a coarse lock.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type lockKeyCtx struct{}

var lockKey = lockKeyCtx{}

// WithLockKey tags the context with the serialization key (typically the
// application id) so the in-memory runner can pick a shard.
func WithLockKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, lockKey, key)
}

// LockKey extracts the serialization key, if any.
func LockKey(ctx context.Context) string {
	if key, ok := ctx.Value(lockKey).(string); ok {
		return key
	}
	return ""
}

// numShards spreads unrelated applications across independent mutexes so
// concurrent requests rarely contend.
const numShards = 128

// defaultTxTimeout bounds a logical transaction when the caller set no
// deadline.
const defaultTxTimeout = 5 * time.Second

// InMemoryRunner serializes logical transactions per lock key using sharded
// mutexes. Operations on the same application take the same shard;
// operations on different applications usually proceed concurrently.
type InMemoryRunner struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

func NewInMemoryRunner() *InMemoryRunner {
	return &InMemoryRunner{}
}

func (r *InMemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := r.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := r.selectShard(ctx)
	r.shards[shard].Lock()
	defer r.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

func (r *InMemoryRunner) selectShard(ctx context.Context) int {
	if key := LockKey(ctx); key != "" {
		return int(fnvHash(key) % numShards)
	}
	return 0
}

// fnvHash is FNV-1a, chosen for cheap, well-distributed string hashing.
func fnvHash(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
