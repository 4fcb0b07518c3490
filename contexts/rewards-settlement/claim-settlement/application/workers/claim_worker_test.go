package workers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"claimguard/contexts/rewards-settlement/claim-settlement/adapters/memory"
	application "claimguard/contexts/rewards-settlement/claim-settlement/application"
	"claimguard/contexts/rewards-settlement/claim-settlement/domain/entities"
	domainerrors "claimguard/contexts/rewards-settlement/claim-settlement/domain/errors"
	"claimguard/contexts/rewards-settlement/claim-settlement/ports"
	"claimguard/internal/platform/coordination"

	"github.com/holiman/uint256"
)

type workerFixture struct {
	clock   *testClock
	store   *memory.Store
	locks   *coordination.LockManager
	payouts *recordingExecutor
	worker  ClaimWorker
	sweeper LeaseSweeper
}

func newWorkerFixture(payouts *recordingExecutor, caps map[string]uint256.Int) workerFixture {
	clock := newTestClock()
	store := memory.NewStore(clock, nil)
	locks := coordination.NewLockManager(coordination.NewMemoryStore(clock))
	return workerFixture{
		clock:   clock,
		store:   store,
		locks:   locks,
		payouts: payouts,
		worker: ClaimWorker{
			Ledger:       store,
			Locks:        locks,
			Caps:         application.DailyCapAccountant{Ledger: store, Clock: clock, Caps: caps},
			Payouts:      payouts,
			Clock:        clock,
			IDGenerator:  store,
			BatchSize:    10,
			Concurrency:  4,
			MaxAttempts:  3,
			LeaseTimeout: 10 * time.Minute,
		},
		sweeper: LeaseSweeper{
			Ledger:       store,
			Clock:        clock,
			LeaseTimeout: 10 * time.Minute,
		},
	}
}

func TestClaimWorkerCompletesPendingClaims(t *testing.T) {
	f := newWorkerFixture(newRecordingExecutor(), nil)
	first := insertClaim(t, f.store, f.clock, "100", "quest:1")
	second := insertClaim(t, f.store, f.clock, "200", "quest:2")

	if err := f.worker.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once failed: %v", err)
	}

	for _, id := range []string{first.ID, second.ID} {
		claim, err := f.store.GetClaim(context.Background(), id)
		if err != nil {
			t.Fatalf("get claim failed: %v", err)
		}
		if claim.Status != entities.ClaimStatusCompleted {
			t.Fatalf("expected completed, got %s", claim.Status)
		}
		if claim.Attempts != 1 || claim.TxRef == "" || claim.ProcessedAt == nil {
			t.Fatalf("unexpected terminal row: %+v", claim)
		}
	}
	if f.payouts.Payouts() != 2 {
		t.Fatalf("expected 2 payouts, got %d", f.payouts.Payouts())
	}

	pending, err := f.store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	if len(pending) != 2 || pending[0].EventType != application.EventTypeClaimCompleted {
		t.Fatalf("expected two claim.completed outbox rows, got %+v", pending)
	}
}

func TestCrashedLeaseIsRecoveredAndSettledOnce(t *testing.T) {
	f := newWorkerFixture(newRecordingExecutor(), nil)
	claim := insertClaim(t, f.store, f.clock, "100000", "milestone:first_referral")
	ctx := context.Background()

	// first worker leases and reaches the executor, then dies
	crashed, err := f.store.LeaseNext(ctx, 10, f.clock.Now())
	if err != nil || len(crashed) != 1 {
		t.Fatalf("lease failed: %v (%d)", err, len(crashed))
	}
	if _, err := f.payouts.Execute(ctx, ports.PayoutRequest{IdempotencyKey: claim.IdempoKey}); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	f.clock.Advance(5 * time.Minute)
	if err := f.sweeper.RunOnce(ctx); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	stillLeased, _ := f.store.GetClaim(ctx, claim.ID)
	if stillLeased.Status != entities.ClaimStatusProcessing {
		t.Fatalf("expected fresh lease to survive the sweep, got %s", stillLeased.Status)
	}

	f.clock.Advance(6 * time.Minute)
	if err := f.sweeper.RunOnce(ctx); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	recovered, _ := f.store.GetClaim(ctx, claim.ID)
	if recovered.Status != entities.ClaimStatusPending || recovered.Error != entities.ReasonLeaseTimeoutRecovered {
		t.Fatalf("expected recovered pending claim, got %s %q", recovered.Status, recovered.Error)
	}

	if err := f.worker.RunOnce(ctx); err != nil {
		t.Fatalf("run once failed: %v", err)
	}
	settled, _ := f.store.GetClaim(ctx, claim.ID)
	if settled.Status != entities.ClaimStatusCompleted {
		t.Fatalf("expected completed, got %s", settled.Status)
	}
	if f.payouts.Calls() != 2 || f.payouts.Payouts() != 1 {
		t.Fatalf("expected two executor calls and one payout, got %d calls %d payouts", f.payouts.Calls(), f.payouts.Payouts())
	}

	// the crashed worker's late terminal write is fenced off
	_, err = f.store.MarkCompleted(ctx, ports.TerminalMark{
		ClaimID: claim.ID,
		LeaseAt: *crashed[0].LeaseAt,
		TxRef:   "0xstale",
		At:      f.clock.Now(),
		EventID: "evt-stale",
	})
	if !errors.Is(err, domainerrors.ErrLeaseLost) {
		t.Fatalf("expected lease lost, got %v", err)
	}
}

func TestClaimWorkerRetriesRetryableFailures(t *testing.T) {
	retryable := fmt.Errorf("%w: upstream 503", domainerrors.ErrPayoutRetryable)
	f := newWorkerFixture(newRecordingExecutor(retryable), nil)
	claim := insertClaim(t, f.store, f.clock, "500", "quest:retry")
	ctx := context.Background()

	if err := f.worker.RunOnce(ctx); err != nil {
		t.Fatalf("run once failed: %v", err)
	}
	requeued, _ := f.store.GetClaim(ctx, claim.ID)
	if requeued.Status != entities.ClaimStatusPending || requeued.Attempts != 1 {
		t.Fatalf("expected pending with one attempt, got %s/%d", requeued.Status, requeued.Attempts)
	}
	if !strings.Contains(requeued.Error, "upstream 503") {
		t.Fatalf("expected failure recorded, got %q", requeued.Error)
	}

	f.clock.Advance(time.Second)
	if err := f.worker.RunOnce(ctx); err != nil {
		t.Fatalf("run once failed: %v", err)
	}
	settled, _ := f.store.GetClaim(ctx, claim.ID)
	if settled.Status != entities.ClaimStatusCompleted || settled.Attempts != 2 {
		t.Fatalf("expected completed after two attempts, got %s/%d", settled.Status, settled.Attempts)
	}
}

func TestClaimWorkerFailsWhenAttemptsExhausted(t *testing.T) {
	retryable := fmt.Errorf("%w: timeout", domainerrors.ErrPayoutRetryable)
	f := newWorkerFixture(newRecordingExecutor(retryable, retryable, retryable), nil)
	f.worker.MaxAttempts = 2
	claim := insertClaim(t, f.store, f.clock, "500", "quest:exhaust")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := f.worker.RunOnce(ctx); err != nil {
			t.Fatalf("run once failed: %v", err)
		}
		f.clock.Advance(time.Second)
	}
	failed, _ := f.store.GetClaim(ctx, claim.ID)
	if failed.Status != entities.ClaimStatusFailed || failed.Attempts != 2 {
		t.Fatalf("expected failed after two attempts, got %s/%d", failed.Status, failed.Attempts)
	}
	if f.payouts.Calls() != 2 {
		t.Fatalf("expected terminal claim to stop executing, got %d calls", f.payouts.Calls())
	}
}

func TestClaimWorkerFailsPermanentRejection(t *testing.T) {
	f := newWorkerFixture(newRecordingExecutor(fmt.Errorf("%w: bad wallet", domainerrors.ErrPayoutRejected)), nil)
	claim := insertClaim(t, f.store, f.clock, "500", "quest:reject")

	if err := f.worker.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once failed: %v", err)
	}
	failed, _ := f.store.GetClaim(context.Background(), claim.ID)
	if failed.Status != entities.ClaimStatusFailed || failed.Attempts != 1 {
		t.Fatalf("expected failed with one attempt, got %s/%d", failed.Status, failed.Attempts)
	}
	pending, _ := f.store.ListPendingOutbox(context.Background(), 10)
	if len(pending) != 1 || pending[0].EventType != application.EventTypeClaimFailed {
		t.Fatalf("expected claim.failed outbox row, got %+v", pending)
	}
}

func TestClaimWorkerDefersClaimsOverDailyCap(t *testing.T) {
	caps := map[string]uint256.Int{"usdc": *uint256.NewInt(1_000_000)}
	f := newWorkerFixture(newRecordingExecutor(), caps)
	ctx := context.Background()

	reserved := insertClaim(t, f.store, f.clock, "900000", "quest:big")
	if leased, err := f.store.LeaseNext(ctx, 1, f.clock.Now()); err != nil || len(leased) != 1 || leased[0].ID != reserved.ID {
		t.Fatalf("expected to lease reserved claim, got %v %v", leased, err)
	}
	over := insertClaim(t, f.store, f.clock, "200000", "quest:over")

	if err := f.worker.RunOnce(ctx); err != nil {
		t.Fatalf("run once failed: %v", err)
	}
	deferred, _ := f.store.GetClaim(ctx, over.ID)
	if deferred.Status != entities.ClaimStatusPending || deferred.Error != entities.ReasonDailyCapExceeded {
		t.Fatalf("expected cap-deferred pending claim, got %s %q", deferred.Status, deferred.Error)
	}
	if deferred.Attempts != 0 {
		t.Fatalf("expected cap deferral not to count an attempt, got %d", deferred.Attempts)
	}
	if f.payouts.Calls() != 0 {
		t.Fatalf("expected no payout, got %d", f.payouts.Calls())
	}
}

func TestClaimWorkerRequeuesOnLockConflict(t *testing.T) {
	f := newWorkerFixture(newRecordingExecutor(), nil)
	claim := insertClaim(t, f.store, f.clock, "10", "quest:locked")
	ctx := context.Background()

	if _, ok, err := f.locks.Acquire(ctx, "settle:"+claim.IdempoKey, time.Minute); err != nil || !ok {
		t.Fatalf("expected to pre-acquire settle lock: %v", err)
	}
	if err := f.worker.RunOnce(ctx); err != nil {
		t.Fatalf("run once failed: %v", err)
	}
	requeued, _ := f.store.GetClaim(ctx, claim.ID)
	if requeued.Status != entities.ClaimStatusPending || requeued.Error != entities.ReasonLockConflict || requeued.Attempts != 0 {
		t.Fatalf("expected lock-conflict requeue, got %+v", requeued)
	}
	if f.payouts.Calls() != 0 {
		t.Fatalf("expected no payout while locked, got %d", f.payouts.Calls())
	}
}

func TestLeaseSweeperLeavesCompletedClaims(t *testing.T) {
	f := newWorkerFixture(newRecordingExecutor(), nil)
	claim := insertClaim(t, f.store, f.clock, "10", "quest:done")
	ctx := context.Background()

	leased, _ := f.store.LeaseNext(ctx, 1, f.clock.Now())
	stale, _ := f.store.ListStaleLeases(ctx, f.clock.Now().Add(time.Hour), 10)
	if len(stale) != 1 {
		t.Fatalf("expected one stale candidate, got %d", len(stale))
	}

	// completes between the sweeper's read and its write
	if _, err := f.store.MarkCompleted(ctx, ports.TerminalMark{
		ClaimID: claim.ID,
		LeaseAt: *leased[0].LeaseAt,
		TxRef:   "0x1",
		At:      f.clock.Now(),
		EventID: "evt-1",
	}); err != nil {
		t.Fatalf("mark completed failed: %v", err)
	}
	ok, err := f.store.RecoverLease(ctx, claim.ID, *stale[0].LeaseAt, entities.ReasonLeaseTimeoutRecovered, f.clock.Now())
	if err != nil || ok {
		t.Fatalf("expected recovery to skip completed claim, ok=%v err=%v", ok, err)
	}
	final, _ := f.store.GetClaim(ctx, claim.ID)
	if final.Status != entities.ClaimStatusCompleted {
		t.Fatalf("expected completed to stay terminal, got %s", final.Status)
	}
}

func TestConcurrentCapChecksAdmitEarliestLease(t *testing.T) {
	caps := map[string]uint256.Int{"usdc": *uint256.NewInt(1_000_000)}
	f := newWorkerFixture(newRecordingExecutor(), caps)
	f.worker.Caps.Ledger = newOverlappingCapReads(f.store)
	ctx := context.Background()

	first := insertClaim(t, f.store, f.clock, "600000", "quest:first")
	second := insertClaim(t, f.store, f.clock, "600000", "quest:second")

	if err := f.worker.RunOnce(ctx); err != nil {
		t.Fatalf("run once failed: %v", err)
	}
	settled, _ := f.store.GetClaim(ctx, first.ID)
	if settled.Status != entities.ClaimStatusCompleted {
		t.Fatalf("expected earliest lease to settle, got %s %q", settled.Status, settled.Error)
	}
	deferred, _ := f.store.GetClaim(ctx, second.ID)
	if deferred.Status != entities.ClaimStatusPending || deferred.Error != entities.ReasonDailyCapExceeded {
		t.Fatalf("expected later lease to defer, got %s %q", deferred.Status, deferred.Error)
	}

	if err := f.worker.RunOnce(ctx); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if f.payouts.Calls() != 1 {
		t.Fatalf("expected one payout within the day, got %d", f.payouts.Calls())
	}

	f.clock.Advance(24 * time.Hour)
	if err := f.worker.RunOnce(ctx); err != nil {
		t.Fatalf("next-day run failed: %v", err)
	}
	nextDay, _ := f.store.GetClaim(ctx, second.ID)
	if nextDay.Status != entities.ClaimStatusCompleted {
		t.Fatalf("expected deferred claim to settle on the next UTC day, got %s %q", nextDay.Status, nextDay.Error)
	}
	if f.payouts.Calls() != 2 {
		t.Fatalf("expected two payouts in total, got %d", f.payouts.Calls())
	}
}
