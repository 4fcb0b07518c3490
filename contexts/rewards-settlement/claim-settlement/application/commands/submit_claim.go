package commands

import (
	"context"
	"log/slog"
	"time"

	application "claimguard/contexts/rewards-settlement/claim-settlement/application"
	"claimguard/contexts/rewards-settlement/claim-settlement/domain/entities"
	domainerrors "claimguard/contexts/rewards-settlement/claim-settlement/domain/errors"
	"claimguard/contexts/rewards-settlement/claim-settlement/domain/services"
	"claimguard/contexts/rewards-settlement/claim-settlement/ports"
)

type SubmitClaimCommand struct {
	Wallet  string
	Amount  string
	Token   string
	ClaimID string
}

type SubmitClaimResult struct {
	Claim          entities.Claim
	AlreadyClaimed bool
	// CapDeferred is advisory: the claim is queued but today's cap has no
	// headroom, so the worker will hold it pending.
	CapDeferred bool
}

type SubmitClaimUseCase struct {
	Ledger        ports.ClaimLedger
	Locks         ports.LockManager
	RateLimiter   ports.RateLimiter
	Caps          application.DailyCapAccountant
	Clock         ports.Clock
	IDGenerator   ports.IDGenerator
	Metrics       ports.Metrics
	LockTTL       time.Duration
	LockAttempts  int
	LockRetryWait time.Duration
	Logger        *slog.Logger
}

// Execute runs the accept path in this order:
// 1) normalize and derive the idempotency key
// 2) ledger duplicate check
// 3) per-wallet rate limit
// 4) accept lock on the key
// 5) advisory daily cap check
// 6) pending insert, where a key collision is a duplicate, not an error.
func (u SubmitClaimUseCase) Execute(ctx context.Context, cmd SubmitClaimCommand) (SubmitClaimResult, error) {
	logger := application.ResolveLogger(u.Logger)
	metrics := application.ResolveMetrics(u.Metrics)

	identity, err := services.NewClaimIdentity(cmd.Wallet, cmd.Amount, cmd.Token, cmd.ClaimID)
	if err != nil {
		metrics.ClaimSubmitted("invalid")
		logger.Warn("submit claim rejected",
			"event", "claim_submit_invalid",
			"module", "rewards-settlement/claim-settlement",
			"layer", "application",
			"error", err.Error(),
		)
		return SubmitClaimResult{}, err
	}
	idempoKey := services.IdempotencyKeyHex(identity)

	logger.Info("submit claim started",
		"event", "claim_submit_started",
		"module", "rewards-settlement/claim-settlement",
		"layer", "application",
		"wallet", identity.Wallet,
		"token", identity.Token,
		"claim_id", identity.ClaimID,
		"idempo_key", idempoKey,
	)

	if existing, found, err := u.Ledger.FindByIdempoKey(ctx, idempoKey); err != nil {
		return SubmitClaimResult{}, err
	} else if found {
		return u.duplicate(logger, metrics, existing), nil
	}

	if u.RateLimiter != nil {
		decision, err := u.RateLimiter.Allow(ctx, identity.Wallet)
		if err != nil {
			logger.Error("submit claim rate limit check failed",
				"event", "claim_submit_rate_limit_failed",
				"module", "rewards-settlement/claim-settlement",
				"layer", "application",
				"wallet", identity.Wallet,
				"error", err.Error(),
			)
			return SubmitClaimResult{}, err
		}
		if !decision.Allowed {
			metrics.ClaimSubmitted("rate_limited")
			logger.Warn("submit claim rate limited",
				"event", "claim_submit_rate_limited",
				"module", "rewards-settlement/claim-settlement",
				"layer", "application",
				"wallet", identity.Wallet,
				"retry_after_seconds", int(decision.RetryAfter.Seconds()),
			)
			return SubmitClaimResult{}, domainerrors.RateLimitError{RetryAfter: decision.RetryAfter}
		}
	}

	lockKey := "claim:" + idempoKey
	holderToken, err := u.acquire(ctx, lockKey)
	if err != nil {
		return SubmitClaimResult{}, err
	}
	if holderToken == "" {
		// A concurrent submitter may have finished while we waited.
		if existing, found, err := u.Ledger.FindByIdempoKey(ctx, idempoKey); err != nil {
			return SubmitClaimResult{}, err
		} else if found {
			return u.duplicate(logger, metrics, existing), nil
		}
		metrics.ClaimSubmitted("lock_conflict")
		logger.Warn("submit claim lock conflict",
			"event", "claim_submit_lock_conflict",
			"module", "rewards-settlement/claim-settlement",
			"layer", "application",
			"idempo_key", idempoKey,
		)
		return SubmitClaimResult{}, domainerrors.ErrLockConflict
	}
	defer func() {
		if _, err := u.Locks.Release(context.WithoutCancel(ctx), lockKey, holderToken); err != nil {
			logger.Warn("submit claim lock release failed",
				"event", "claim_submit_lock_release_failed",
				"module", "rewards-settlement/claim-settlement",
				"layer", "application",
				"idempo_key", idempoKey,
				"error", err.Error(),
			)
		}
	}()

	capDeferred := false
	if capLimit, capped := u.Caps.CapFor(identity.Token); capped {
		admitted, err := u.Caps.CanAdmit(ctx, identity.Amount, identity.Token, capLimit)
		if err != nil {
			return SubmitClaimResult{}, err
		}
		capDeferred = !admitted
	}

	claimID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return SubmitClaimResult{}, err
	}
	claim := entities.NewPendingClaim(
		claimID,
		identity.Wallet,
		identity.Amount,
		identity.Token,
		identity.ClaimID,
		idempoKey,
		u.now(),
	)

	stored, created, err := u.Ledger.InsertPending(ctx, claim)
	if err != nil {
		logger.Error("submit claim insert failed",
			"event", "claim_submit_insert_failed",
			"module", "rewards-settlement/claim-settlement",
			"layer", "application",
			"idempo_key", idempoKey,
			"error", err.Error(),
		)
		return SubmitClaimResult{}, err
	}
	if !created {
		return u.duplicate(logger, metrics, stored), nil
	}

	outcome := "accepted"
	if capDeferred {
		outcome = "cap_deferred"
	}
	metrics.ClaimSubmitted(outcome)
	logger.Info("submit claim accepted",
		"event", "claim_submit_accepted",
		"module", "rewards-settlement/claim-settlement",
		"layer", "application",
		"claim_ref", stored.ID,
		"idempo_key", idempoKey,
		"cap_deferred", capDeferred,
	)
	return SubmitClaimResult{Claim: stored, CapDeferred: capDeferred}, nil
}

// acquire returns "" when every attempt was refused.
func (u SubmitClaimUseCase) acquire(ctx context.Context, lockKey string) (string, error) {
	attempts := u.LockAttempts
	if attempts <= 0 {
		attempts = 3
	}
	for i := 0; i < attempts; i++ {
		token, ok, err := u.Locks.Acquire(ctx, lockKey, u.lockTTL())
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(u.lockRetryWait()):
		}
	}
	return "", nil
}

func (u SubmitClaimUseCase) duplicate(logger *slog.Logger, metrics ports.Metrics, existing entities.Claim) SubmitClaimResult {
	metrics.ClaimSubmitted("duplicate")
	logger.Info("submit claim already queued",
		"event", "claim_submit_duplicate",
		"module", "rewards-settlement/claim-settlement",
		"layer", "application",
		"claim_ref", existing.ID,
		"idempo_key", existing.IdempoKey,
		"status", existing.Status,
	)
	return SubmitClaimResult{Claim: existing, AlreadyClaimed: true}
}

func (u SubmitClaimUseCase) lockTTL() time.Duration {
	if u.LockTTL <= 0 {
		return 30 * time.Second
	}
	return u.LockTTL
}

func (u SubmitClaimUseCase) lockRetryWait() time.Duration {
	if u.LockRetryWait <= 0 {
		return 50 * time.Millisecond
	}
	return u.LockRetryWait
}

func (u SubmitClaimUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}
