package ports

import (
	"context"
	"time"

	"claimguard/contexts/rewards-settlement/claim-settlement/domain/entities"
	contractsv1 "claimguard/contracts/gen/events/v1"

	"github.com/holiman/uint256"
)

// TerminalMark finalizes a processing claim. LeaseAt fences the write: a
// claim recovered and re-leased since the caller leased it is not touched.
type TerminalMark struct {
	ClaimID string
	LeaseAt time.Time
	TxRef   string
	Error   string
	At      time.Time
	EventID string
}

// ClaimLedger is the single source of truth for settlement state. Every
// transition is a conditional write that re-checks the current row.
type ClaimLedger interface {
	// InsertPending returns the existing row with created=false on an
	// idempotency key collision.
	InsertPending(ctx context.Context, claim entities.Claim) (entities.Claim, bool, error)
	// LeaseNext flips up to limit pending claims, oldest first, to processing.
	LeaseNext(ctx context.Context, limit int, now time.Time) ([]entities.Claim, error)
	// MarkCompleted and MarkFailed persist the settlement outbox row in the
	// same write and return ErrLeaseLost when the fence does not match.
	MarkCompleted(ctx context.Context, mark TerminalMark) (entities.Claim, error)
	MarkFailed(ctx context.Context, mark TerminalMark) (entities.Claim, error)
	Requeue(ctx context.Context, claimID string, leaseAt time.Time, reason string, countAttempt bool, at time.Time) error
	ListStaleLeases(ctx context.Context, leasedBefore time.Time, limit int) ([]entities.Claim, error)
	// RecoverLease reports false when the claim left processing or was
	// re-leased after it was listed.
	RecoverLease(ctx context.Context, claimID string, leaseAt time.Time, annotation string, at time.Time) (bool, error)
	FindByIdempoKey(ctx context.Context, idempoKey string) (entities.Claim, bool, error)
	GetClaim(ctx context.Context, claimID string) (entities.Claim, error)
	// SumReserved totals processing and completed claims of token leased in
	// [from, to). With a non-nil ahead, the cursor's own claim is skipped and
	// processing claims count only when they sort before it.
	SumReserved(ctx context.Context, token string, from time.Time, to time.Time, ahead *ReservationCursor) (uint256.Int, error)
	CountByStatus(ctx context.Context) (map[entities.ClaimStatus]int64, error)
	OldestProcessingLease(ctx context.Context) (time.Time, bool, error)
}

// OutboxMessage is a row ready to relay from the settlement outbox.
// ReservationCursor orders processing reservations by (LeaseAt, ClaimID), so
// concurrently leased claims never count each other both ways.
type ReservationCursor struct {
	LeaseAt time.Time
	ClaimID string
}

// Ahead reports whether a reservation at (leaseAt, claimID) sorts before c.
func (c ReservationCursor) Ahead(leaseAt time.Time, claimID string) bool {
	if leaseAt.Equal(c.LeaseAt) {
		return claimID < c.ClaimID
	}
	return leaseAt.Before(c.LeaseAt)
}

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error
}

type PayoutRequest struct {
	ClaimID        string
	Wallet         string
	Amount         string
	Token          string
	IdempotencyKey string
}

type PayoutResult struct {
	TxRef string
}

// PayoutExecutor moves funds. Implementations must treat IdempotencyKey as
// the dedup key so a replayed request never pays twice. Retryable failures
// wrap domain ErrPayoutRetryable.
type PayoutExecutor interface {
	Execute(ctx context.Context, req PayoutRequest) (PayoutResult, error)
}

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

// Metrics receives settlement counters. A nil Metrics is replaced with a no-op.
type Metrics interface {
	ClaimSubmitted(outcome string)
	ClaimSettled(status entities.ClaimStatus, attempts int)
	ClaimRequeued(reason string)
	LeasesRecovered(count int)
	PayoutObserved(outcome string, elapsed time.Duration)
}

// Clock allows deterministic testing of lease and cap windows.
type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// EventEnvelope reuses the canonical cross-runtime envelope contract.
type EventEnvelope = contractsv1.Envelope

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
