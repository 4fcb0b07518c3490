package ports

import (
	"context"
	"time"

	"claimguard/contexts/rewards-settlement/tx-guard/domain/entities"
)

// LockManager grants exclusive short-lived holds. Refusal is ok=false.
type LockManager interface {
	Acquire(ctx context.Context, resourceKey string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, resourceKey string, holderToken string) (bool, error)
}

type RateDecision struct {
	Allowed    bool
	RetryAfter time.Duration
}

type RateLimiter interface {
	Allow(ctx context.Context, subject string) (RateDecision, error)
}

// RecordStore keeps guard records for the lifetime of their hold.
// Records expire with ttl; MarkSent keeps the remaining ttl.
type RecordStore interface {
	Save(ctx context.Context, record entities.Record, ttl time.Duration) error
	Load(ctx context.Context, lockKey string) (entities.Record, bool, error)
	MarkSent(ctx context.Context, lockKey string) (entities.Record, bool, error)
	Delete(ctx context.Context, lockKey string) error
}

// Metrics receives guard decisions. A nil Metrics is replaced with a no-op.
type Metrics interface {
	GuardDecision(action string, outcome string)
}

type Clock interface {
	Now() time.Time
}
