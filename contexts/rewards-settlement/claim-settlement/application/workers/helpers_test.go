package workers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"claimguard/contexts/rewards-settlement/claim-settlement/adapters/memory"
	"claimguard/contexts/rewards-settlement/claim-settlement/domain/entities"
	"claimguard/contexts/rewards-settlement/claim-settlement/domain/services"
	"claimguard/contexts/rewards-settlement/claim-settlement/ports"

	"github.com/holiman/uint256"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingExecutor pays each idempotency key at most once and replays the
// original tx ref for repeats, the contract a real executor must honour.
type recordingExecutor struct {
	mu       sync.Mutex
	calls    int
	paid     map[string]string
	failures []error
}

func newRecordingExecutor(failures ...error) *recordingExecutor {
	return &recordingExecutor{paid: make(map[string]string), failures: failures}
}

func (e *recordingExecutor) Execute(_ context.Context, req ports.PayoutRequest) (ports.PayoutResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls++
	if len(e.failures) > 0 {
		err := e.failures[0]
		e.failures = e.failures[1:]
		if err != nil {
			return ports.PayoutResult{}, err
		}
	}
	if txRef, ok := e.paid[req.IdempotencyKey]; ok {
		return ports.PayoutResult{TxRef: txRef}, nil
	}
	txRef := fmt.Sprintf("0xtx%02d", len(e.paid)+1)
	e.paid[req.IdempotencyKey] = txRef
	return ports.PayoutResult{TxRef: txRef}, nil
}

func (e *recordingExecutor) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *recordingExecutor) Payouts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.paid)
}

func insertClaim(t *testing.T, store *memory.Store, clock *testClock, amount string, claimID string) entities.Claim {
	t.Helper()
	identity, err := services.NewClaimIdentity("0x00000000000000000000000000000000000000aa", amount, "usdc", claimID)
	if err != nil {
		t.Fatalf("identity failed: %v", err)
	}
	id, _ := store.NewID(context.Background())
	claim := entities.NewPendingClaim(
		id,
		identity.Wallet,
		identity.Amount,
		identity.Token,
		identity.ClaimID,
		services.IdempotencyKeyHex(identity),
		clock.Now(),
	)
	stored, created, err := store.InsertPending(context.Background(), claim)
	if err != nil || !created {
		t.Fatalf("insert failed: created=%v err=%v", created, err)
	}
	clock.Advance(time.Second)
	return stored
}

// overlappingCapReads holds the first two cap reads until both have read,
// so two leased claims evaluate the daily cap against the same snapshot.
type overlappingCapReads struct {
	ports.ClaimLedger
	mu      sync.Mutex
	reads   int
	release chan struct{}
}

func newOverlappingCapReads(ledger ports.ClaimLedger) *overlappingCapReads {
	return &overlappingCapReads{ClaimLedger: ledger, release: make(chan struct{})}
}

func (l *overlappingCapReads) SumReserved(
	ctx context.Context,
	token string,
	from time.Time,
	to time.Time,
	ahead *ports.ReservationCursor,
) (uint256.Int, error) {
	sum, err := l.ClaimLedger.SumReserved(ctx, token, from, to, ahead)

	l.mu.Lock()
	l.reads++
	held := l.reads <= 2
	if l.reads == 2 {
		close(l.release)
	}
	l.mu.Unlock()

	if held {
		select {
		case <-l.release:
		case <-ctx.Done():
		case <-time.After(2 * time.Second):
		}
	}
	return sum, err
}
