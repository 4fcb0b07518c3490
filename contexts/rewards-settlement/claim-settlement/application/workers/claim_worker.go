package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	application "claimguard/contexts/rewards-settlement/claim-settlement/application"
	"claimguard/contexts/rewards-settlement/claim-settlement/domain/entities"
	domainerrors "claimguard/contexts/rewards-settlement/claim-settlement/domain/errors"
	"claimguard/contexts/rewards-settlement/claim-settlement/ports"

	"golang.org/x/sync/errgroup"
)

// ClaimWorker leases pending claims and drives them to a terminal state.
// It never recovers its own stale leases; LeaseSweeper owns that.
type ClaimWorker struct {
	Ledger       ports.ClaimLedger
	Locks        ports.LockManager
	Caps         application.DailyCapAccountant
	Payouts      ports.PayoutExecutor
	Clock        ports.Clock
	IDGenerator  ports.IDGenerator
	Metrics      ports.Metrics
	BatchSize    int
	Concurrency  int
	MaxAttempts  int
	LeaseTimeout time.Duration
	Logger       *slog.Logger
}

// RunOnce leases one batch and settles it with bounded concurrency. Claims
// that were leased always reach a terminal mark or a requeue even if ctx is
// cancelled mid-batch.
func (w ClaimWorker) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(w.Logger)

	// Lease stamps double as fencing tokens, so keep them at storage precision.
	leaseAt := w.now().Truncate(time.Microsecond)
	leased, err := w.Ledger.LeaseNext(ctx, w.batchSize(), leaseAt)
	if err != nil {
		logger.Error("claim lease failed",
			"event", "claim_worker_lease_failed",
			"module", "rewards-settlement/claim-settlement",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(leased) == 0 {
		return nil
	}

	settleCtx := context.WithoutCancel(ctx)
	var group errgroup.Group
	group.SetLimit(w.concurrency())
	for _, claim := range leased {
		group.Go(func() error {
			return w.settle(settleCtx, logger, claim)
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	logger.Info("claim worker cycle completed",
		"event", "claim_worker_cycle_completed",
		"module", "rewards-settlement/claim-settlement",
		"layer", "worker",
		"leased_count", len(leased),
	)
	return nil
}

func (w ClaimWorker) settle(ctx context.Context, logger *slog.Logger, claim entities.Claim) error {
	metrics := application.ResolveMetrics(w.Metrics)
	if claim.LeaseAt == nil {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	leaseAt := *claim.LeaseAt

	lockKey := "settle:" + claim.IdempoKey
	holderToken, ok, err := w.Locks.Acquire(ctx, lockKey, w.leaseTimeout())
	if err != nil {
		logger.Warn("settle lock unavailable",
			"event", "claim_worker_lock_unavailable",
			"module", "rewards-settlement/claim-settlement",
			"layer", "worker",
			"claim_ref", claim.ID,
			"error", err.Error(),
		)
		return w.requeue(ctx, logger, claim, leaseAt, entities.ReasonLockUnavailable, false)
	}
	if !ok {
		return w.requeue(ctx, logger, claim, leaseAt, entities.ReasonLockConflict, false)
	}
	defer func() {
		if _, err := w.Locks.Release(ctx, lockKey, holderToken); err != nil {
			logger.Warn("settle lock release failed",
				"event", "claim_worker_lock_release_failed",
				"module", "rewards-settlement/claim-settlement",
				"layer", "worker",
				"claim_ref", claim.ID,
				"error", err.Error(),
			)
		}
	}()

	if capLimit, capped := w.Caps.CapFor(claim.Token); capped {
		admitted, err := w.Caps.CanAdmitLeased(ctx, claim, capLimit)
		if err != nil {
			logger.Error("daily cap check failed",
				"event", "claim_worker_cap_check_failed",
				"module", "rewards-settlement/claim-settlement",
				"layer", "worker",
				"claim_ref", claim.ID,
				"error", err.Error(),
			)
			return w.requeue(ctx, logger, claim, leaseAt, entities.ReasonCapCheckFailed, false)
		}
		if !admitted {
			return w.requeue(ctx, logger, claim, leaseAt, entities.ReasonDailyCapExceeded, false)
		}
	}

	started := time.Now()
	result, payoutErr := w.Payouts.Execute(ctx, ports.PayoutRequest{
		ClaimID:        claim.ID,
		Wallet:         claim.Wallet,
		Amount:         claim.AmountString(),
		Token:          claim.Token,
		IdempotencyKey: claim.IdempoKey,
	})
	elapsed := time.Since(started)

	if payoutErr == nil {
		metrics.PayoutObserved("success", elapsed)
		return w.finalize(ctx, logger, claim, ports.TerminalMark{
			ClaimID: claim.ID,
			LeaseAt: leaseAt,
			TxRef:   result.TxRef,
		}, true)
	}

	retryable := errors.Is(payoutErr, domainerrors.ErrPayoutRetryable)
	if retryable {
		metrics.PayoutObserved("retryable", elapsed)
	} else {
		metrics.PayoutObserved("rejected", elapsed)
	}
	logger.Warn("payout failed",
		"event", "claim_worker_payout_failed",
		"module", "rewards-settlement/claim-settlement",
		"layer", "worker",
		"claim_ref", claim.ID,
		"attempts", claim.Attempts+1,
		"retryable", retryable,
		"error", payoutErr.Error(),
	)
	if retryable && claim.Attempts+1 < w.maxAttempts() {
		return w.requeue(ctx, logger, claim, leaseAt, payoutErr.Error(), true)
	}
	return w.finalize(ctx, logger, claim, ports.TerminalMark{
		ClaimID: claim.ID,
		LeaseAt: leaseAt,
		Error:   payoutErr.Error(),
	}, false)
}

func (w ClaimWorker) finalize(
	ctx context.Context,
	logger *slog.Logger,
	claim entities.Claim,
	mark ports.TerminalMark,
	completed bool,
) error {
	eventID, err := w.IDGenerator.NewID(ctx)
	if err != nil {
		return err
	}
	mark.EventID = eventID
	mark.At = w.now()

	var updated entities.Claim
	if completed {
		updated, err = w.Ledger.MarkCompleted(ctx, mark)
	} else {
		updated, err = w.Ledger.MarkFailed(ctx, mark)
	}
	if errors.Is(err, domainerrors.ErrLeaseLost) {
		// The sweeper recovered this claim; the executor deduplicates on the
		// idempotency key when the next lease replays it.
		logger.Warn("claim lease lost before terminal mark",
			"event", "claim_worker_lease_lost",
			"module", "rewards-settlement/claim-settlement",
			"layer", "worker",
			"claim_ref", claim.ID,
			"tx_ref", mark.TxRef,
		)
		return nil
	}
	if err != nil {
		logger.Error("claim terminal mark failed",
			"event", "claim_worker_mark_failed",
			"module", "rewards-settlement/claim-settlement",
			"layer", "worker",
			"claim_ref", claim.ID,
			"error", err.Error(),
		)
		return err
	}

	application.ResolveMetrics(w.Metrics).ClaimSettled(updated.Status, updated.Attempts)
	logger.Info("claim settled",
		"event", "claim_worker_settled",
		"module", "rewards-settlement/claim-settlement",
		"layer", "worker",
		"claim_ref", updated.ID,
		"status", updated.Status,
		"attempts", updated.Attempts,
		"tx_ref", updated.TxRef,
	)
	return nil
}

func (w ClaimWorker) requeue(
	ctx context.Context,
	logger *slog.Logger,
	claim entities.Claim,
	leaseAt time.Time,
	reason string,
	countAttempt bool,
) error {
	err := w.Ledger.Requeue(ctx, claim.ID, leaseAt, reason, countAttempt, w.now())
	if errors.Is(err, domainerrors.ErrLeaseLost) {
		return nil
	}
	if err != nil {
		logger.Error("claim requeue failed",
			"event", "claim_worker_requeue_failed",
			"module", "rewards-settlement/claim-settlement",
			"layer", "worker",
			"claim_ref", claim.ID,
			"reason", reason,
			"error", err.Error(),
		)
		return err
	}
	application.ResolveMetrics(w.Metrics).ClaimRequeued(requeueLabel(reason))
	logger.Info("claim requeued",
		"event", "claim_worker_requeued",
		"module", "rewards-settlement/claim-settlement",
		"layer", "worker",
		"claim_ref", claim.ID,
		"reason", reason,
		"attempt_counted", countAttempt,
	)
	return nil
}

// requeueLabel keeps metric cardinality bounded when reason is a payout error.
func requeueLabel(reason string) string {
	switch reason {
	case entities.ReasonLockConflict,
		entities.ReasonLockUnavailable,
		entities.ReasonDailyCapExceeded,
		entities.ReasonCapCheckFailed:
		return reason
	default:
		return "PAYOUT_RETRY"
	}
}

func (w ClaimWorker) batchSize() int {
	if w.BatchSize <= 0 {
		return 10
	}
	return w.BatchSize
}

func (w ClaimWorker) concurrency() int {
	if w.Concurrency <= 0 {
		return 4
	}
	return w.Concurrency
}

func (w ClaimWorker) maxAttempts() int {
	if w.MaxAttempts <= 0 {
		return 3
	}
	return w.MaxAttempts
}

func (w ClaimWorker) leaseTimeout() time.Duration {
	if w.LeaseTimeout <= 0 {
		return 10 * time.Minute
	}
	return w.LeaseTimeout
}

func (w ClaimWorker) now() time.Time {
	if w.Clock == nil {
		return time.Now().UTC()
	}
	return w.Clock.Now().UTC()
}
