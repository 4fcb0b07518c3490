package commands

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	coordinationadapter "claimguard/contexts/rewards-settlement/claim-settlement/adapters/coordination"
	"claimguard/contexts/rewards-settlement/claim-settlement/adapters/memory"
	application "claimguard/contexts/rewards-settlement/claim-settlement/application"
	"claimguard/contexts/rewards-settlement/claim-settlement/domain/entities"
	domainerrors "claimguard/contexts/rewards-settlement/claim-settlement/domain/errors"
	"claimguard/internal/platform/coordination"

	"github.com/holiman/uint256"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

func newSubmitUseCase(limit int64, caps map[string]uint256.Int) (SubmitClaimUseCase, *memory.Store) {
	clock := fixedClock{now: time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)}
	store := memory.NewStore(clock, nil)
	coordinationStore := coordination.NewMemoryStore(clock)
	return SubmitClaimUseCase{
		Ledger:      store,
		Locks:       coordination.NewLockManager(coordinationStore),
		RateLimiter: coordinationadapter.NewRateLimiter(coordination.NewFixedWindowLimiter(coordinationStore, "claim", limit, time.Minute)),
		Caps:        application.DailyCapAccountant{Ledger: store, Clock: clock, Caps: caps},
		Clock:       clock,
		IDGenerator: store,
	}, store
}

func TestSubmitClaimParallelDuplicatesCollapse(t *testing.T) {
	useCase, store := newSubmitUseCase(10, nil)
	cmd := SubmitClaimCommand{
		Wallet:  "0x00000000000000000000000000000000000000A1",
		Amount:  "100000",
		Token:   "USDC",
		ClaimID: "milestone:first_referral",
	}

	var wg sync.WaitGroup
	results := make([]SubmitClaimResult, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = useCase.Execute(context.Background(), cmd)
		}(i)
	}
	wg.Wait()

	duplicates := 0
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("submission %d failed: %v", i, errs[i])
		}
		if results[i].AlreadyClaimed {
			duplicates++
		}
	}
	if duplicates != 1 {
		t.Fatalf("expected exactly one alreadyClaimed, got %d", duplicates)
	}
	if results[0].Claim.IdempoKey != results[1].Claim.IdempoKey {
		t.Fatalf("expected same idempotency key")
	}
	if len(store.Claims()) != 1 {
		t.Fatalf("expected one ledger row, got %d", len(store.Claims()))
	}
}

func TestSubmitClaimSequentialReplayIsDuplicate(t *testing.T) {
	useCase, store := newSubmitUseCase(10, nil)
	cmd := SubmitClaimCommand{
		Wallet:  "0x00000000000000000000000000000000000000a1",
		Amount:  "42",
		Token:   "usdc",
		ClaimID: "referral_event:9f1",
	}
	first, err := useCase.Execute(context.Background(), cmd)
	if err != nil || first.AlreadyClaimed {
		t.Fatalf("expected fresh accept, got %+v %v", first, err)
	}
	cmd.Amount = "0042"
	second, err := useCase.Execute(context.Background(), cmd)
	if err != nil || !second.AlreadyClaimed {
		t.Fatalf("expected duplicate, got %+v %v", second, err)
	}
	if second.Claim.ID != first.Claim.ID {
		t.Fatalf("expected duplicate to return row %s, got %s", first.Claim.ID, second.Claim.ID)
	}
	if len(store.Claims()) != 1 {
		t.Fatalf("expected one ledger row, got %d", len(store.Claims()))
	}
}

func TestSubmitClaimRejectsBareCategory(t *testing.T) {
	useCase, store := newSubmitUseCase(10, nil)
	_, err := useCase.Execute(context.Background(), SubmitClaimCommand{
		Wallet:  "0x00000000000000000000000000000000000000a1",
		Amount:  "1",
		Token:   "usdc",
		ClaimID: "free_attack",
	})
	if !errors.Is(err, domainerrors.ErrInvalidClaimID) {
		t.Fatalf("expected invalid claim id, got %v", err)
	}
	if len(store.Claims()) != 0 {
		t.Fatalf("expected no row for rejected claim")
	}
}

func TestSubmitClaimRateLimitsPerWallet(t *testing.T) {
	useCase, _ := newSubmitUseCase(2, nil)
	submit := func(claimID string) error {
		_, err := useCase.Execute(context.Background(), SubmitClaimCommand{
			Wallet:  "0x00000000000000000000000000000000000000a1",
			Amount:  "1",
			Token:   "usdc",
			ClaimID: claimID,
		})
		return err
	}
	if err := submit("quest:1"); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if err := submit("quest:2"); err != nil {
		t.Fatalf("second submit failed: %v", err)
	}
	// a replay is answered from the ledger before the limiter runs
	if err := submit("quest:1"); err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	err := submit("quest:3")
	var rateErr domainerrors.RateLimitError
	if !errors.As(err, &rateErr) || !errors.Is(err, domainerrors.ErrRateLimited) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if rateErr.RetryAfter != time.Minute {
		t.Fatalf("expected retry after one minute, got %s", rateErr.RetryAfter)
	}
}

func TestSubmitClaimOverCapStaysPending(t *testing.T) {
	caps := map[string]uint256.Int{"usdc": *uint256.NewInt(1_000_000)}
	useCase, store := newSubmitUseCase(10, caps)
	ctx := context.Background()

	big, err := useCase.Execute(ctx, SubmitClaimCommand{
		Wallet:  "0x00000000000000000000000000000000000000a1",
		Amount:  "900000",
		Token:   "usdc",
		ClaimID: "quest:big",
	})
	if err != nil || big.CapDeferred {
		t.Fatalf("expected admitted claim, got %+v %v", big, err)
	}
	if _, err := store.LeaseNext(ctx, 1, useCase.Clock.Now()); err != nil {
		t.Fatalf("lease failed: %v", err)
	}

	remaining, err := useCase.Caps.RemainingCap(ctx, "usdc", caps["usdc"])
	if err != nil || remaining.Uint64() != 100_000 {
		t.Fatalf("expected 100000 remaining, got %s %v", remaining.Dec(), err)
	}
	admitted, err := useCase.Caps.CanAdmit(ctx, *uint256.NewInt(200_000), "usdc", caps["usdc"])
	if err != nil || admitted {
		t.Fatalf("expected 200000 not admissible, got %v %v", admitted, err)
	}

	over, err := useCase.Execute(ctx, SubmitClaimCommand{
		Wallet:  "0x00000000000000000000000000000000000000a2",
		Amount:  "200000",
		Token:   "usdc",
		ClaimID: "quest:over",
	})
	if err != nil {
		t.Fatalf("expected over-cap claim to be accepted, got %v", err)
	}
	if !over.CapDeferred || over.Claim.Status != entities.ClaimStatusPending {
		t.Fatalf("expected cap-deferred pending claim, got %+v", over)
	}
}
