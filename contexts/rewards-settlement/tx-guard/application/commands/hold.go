package commands

import (
	"context"
	"log/slog"
	"time"

	"claimguard/contexts/rewards-settlement/tx-guard/domain/entities"
	domainerrors "claimguard/contexts/rewards-settlement/tx-guard/domain/errors"
	"claimguard/contexts/rewards-settlement/tx-guard/ports"
)

type GuardResult struct {
	LockKey   string
	ExpiresAt time.Time
}

// hold locks record.ResourceKey and stores the record under the holder token.
// A refused lock is ErrAlreadyLocked.
func hold(
	ctx context.Context,
	locks ports.LockManager,
	records ports.RecordStore,
	record entities.Record,
	ttl time.Duration,
	now time.Time,
	logger *slog.Logger,
) (GuardResult, error) {
	token, ok, err := locks.Acquire(ctx, record.ResourceKey, ttl)
	if err != nil {
		return GuardResult{}, err
	}
	if !ok {
		return GuardResult{}, domainerrors.ErrAlreadyLocked
	}

	record.LockKey = token
	record.Status = entities.StatusHeld
	record.ExpiresAt = now.Add(ttl)
	if err := records.Save(ctx, record, ttl); err != nil {
		if _, releaseErr := locks.Release(context.WithoutCancel(ctx), record.ResourceKey, token); releaseErr != nil {
			logger.Warn("guard lock release after save failure failed",
				"event", "tx_guard_rollback_release_failed",
				"module", "rewards-settlement/tx-guard",
				"layer", "application",
				"resource_key", record.ResourceKey,
				"error", releaseErr.Error(),
			)
		}
		return GuardResult{}, err
	}
	return GuardResult{LockKey: token, ExpiresAt: record.ExpiresAt}, nil
}

func nowOrSystem(clock ports.Clock) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock.Now().UTC()
}
