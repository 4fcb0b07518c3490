package commands

import (
	"context"
	"log/slog"
	"strings"

	application "claimguard/contexts/rewards-settlement/tx-guard/application"
	"claimguard/contexts/rewards-settlement/tx-guard/domain/entities"
	domainerrors "claimguard/contexts/rewards-settlement/tx-guard/domain/errors"
	"claimguard/contexts/rewards-settlement/tx-guard/ports"
)

type MarkSentUseCase struct {
	Records ports.RecordStore
	Metrics ports.Metrics
	Logger  *slog.Logger
}

// Execute moves a held guard to sent. Repeating it on a sent guard succeeds.
func (u MarkSentUseCase) Execute(ctx context.Context, lockKey string) (entities.Record, error) {
	logger := application.ResolveLogger(u.Logger)
	metrics := application.ResolveMetrics(u.Metrics)

	lockKey = strings.TrimSpace(lockKey)
	if lockKey == "" {
		return entities.Record{}, domainerrors.ErrInvalidLockKey
	}
	record, found, err := u.Records.MarkSent(ctx, lockKey)
	if err != nil {
		logger.Error("tx guard mark sent failed",
			"event", "tx_guard_mark_sent_failed",
			"module", "rewards-settlement/tx-guard",
			"layer", "application",
			"error", err.Error(),
		)
		return entities.Record{}, err
	}
	if !found {
		metrics.GuardDecision("mark_sent", "not_found")
		return entities.Record{}, domainerrors.ErrGuardNotFound
	}

	metrics.GuardDecision("mark_sent", "sent")
	logger.Info("tx guard marked sent",
		"event", "tx_guard_sent",
		"module", "rewards-settlement/tx-guard",
		"layer", "application",
		"resource_key", record.ResourceKey,
	)
	return record, nil
}
