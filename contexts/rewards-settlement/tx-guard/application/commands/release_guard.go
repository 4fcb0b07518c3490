package commands

import (
	"context"
	"log/slog"
	"strings"

	application "claimguard/contexts/rewards-settlement/tx-guard/application"
	domainerrors "claimguard/contexts/rewards-settlement/tx-guard/domain/errors"
	"claimguard/contexts/rewards-settlement/tx-guard/ports"
)

type ReleaseGuardResult struct {
	Released bool
}

type ReleaseGuardUseCase struct {
	Locks   ports.LockManager
	Records ports.RecordStore
	Metrics ports.Metrics
	Logger  *slog.Logger
}

// Execute frees the hold behind lockKey. An unknown or expired lockKey is not
// an error; Released reports whether a live hold was dropped.
func (u ReleaseGuardUseCase) Execute(ctx context.Context, lockKey string) (ReleaseGuardResult, error) {
	logger := application.ResolveLogger(u.Logger)
	metrics := application.ResolveMetrics(u.Metrics)

	lockKey = strings.TrimSpace(lockKey)
	if lockKey == "" {
		return ReleaseGuardResult{}, domainerrors.ErrInvalidLockKey
	}
	record, found, err := u.Records.Load(ctx, lockKey)
	if err != nil {
		return ReleaseGuardResult{}, err
	}
	if !found {
		metrics.GuardDecision("release", "expired")
		return ReleaseGuardResult{}, nil
	}

	released, err := u.Locks.Release(ctx, record.ResourceKey, lockKey)
	if err != nil {
		logger.Error("tx guard release failed",
			"event", "tx_guard_release_failed",
			"module", "rewards-settlement/tx-guard",
			"layer", "application",
			"resource_key", record.ResourceKey,
			"error", err.Error(),
		)
		return ReleaseGuardResult{}, err
	}
	if err := u.Records.Delete(ctx, lockKey); err != nil {
		return ReleaseGuardResult{}, err
	}

	metrics.GuardDecision("release", "released")
	logger.Info("tx guard released",
		"event", "tx_guard_released",
		"module", "rewards-settlement/tx-guard",
		"layer", "application",
		"resource_key", record.ResourceKey,
		"status", record.Status,
		"lock_released", released,
	)
	return ReleaseGuardResult{Released: released}, nil
}
