package coordination

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by Store.TTL when the key does not exist or has expired.
var ErrKeyNotFound = errors.New("coordination key not found")

// Store is the shared coordination backend used for locks, rate counters and
// short-lived guard records. Every method must be atomic at the backend.
// Losing the backend never corrupts the claim ledger; it only weakens the
// best-effort mutual exclusion built on top of it.
type Store interface {
	// SetIfAbsent writes value with expiry only when key is absent or expired.
	SetIfAbsent(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	// Increment adds one to the counter at key. The first increment of a
	// window sets the expiry to ttl; later increments keep it.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Get(ctx context.Context, key string) (string, bool, error)
	// CompareAndSwap replaces expected with value and keeps the remaining TTL.
	CompareAndSwap(ctx context.Context, key string, expected string, value string) (bool, error)
	CompareAndDelete(ctx context.Context, key string, expected string) (bool, error)
	Delete(ctx context.Context, key string) error
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// Clock lets the in-memory backend and the limiter run on test time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// SystemClock returns wall-clock UTC time.
func SystemClock() Clock {
	return systemClock{}
}
