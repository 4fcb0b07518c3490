package workers

import (
	"context"
	"log/slog"
	"time"

	application "claimguard/contexts/rewards-settlement/claim-settlement/application"
	"claimguard/contexts/rewards-settlement/claim-settlement/domain/entities"
	"claimguard/contexts/rewards-settlement/claim-settlement/ports"
)

// LeaseSweeper reverts processing claims whose lease outlived LeaseTimeout.
// It only ever performs processing->pending.
type LeaseSweeper struct {
	Ledger       ports.ClaimLedger
	Clock        ports.Clock
	Metrics      ports.Metrics
	LeaseTimeout time.Duration
	BatchSize    int
	Logger       *slog.Logger
}

func (s LeaseSweeper) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(s.Logger)
	now := time.Now().UTC()
	if s.Clock != nil {
		now = s.Clock.Now().UTC()
	}
	timeout := s.LeaseTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	limit := s.BatchSize
	if limit <= 0 {
		limit = 500
	}

	stale, err := s.Ledger.ListStaleLeases(ctx, now.Add(-timeout), limit)
	if err != nil {
		logger.Error("stale lease scan failed",
			"event", "claim_sweeper_scan_failed",
			"module", "rewards-settlement/claim-settlement",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	recovered := 0
	for _, claim := range stale {
		if claim.LeaseAt == nil {
			continue
		}
		ok, err := s.Ledger.RecoverLease(ctx, claim.ID, *claim.LeaseAt, entities.ReasonLeaseTimeoutRecovered, now)
		if err != nil {
			logger.Error("lease recovery failed",
				"event", "claim_sweeper_recover_failed",
				"module", "rewards-settlement/claim-settlement",
				"layer", "worker",
				"claim_ref", claim.ID,
				"error", err.Error(),
			)
			return err
		}
		if ok {
			recovered++
			logger.Warn("stale lease recovered",
				"event", "claim_sweeper_lease_recovered",
				"module", "rewards-settlement/claim-settlement",
				"layer", "worker",
				"claim_ref", claim.ID,
				"lease_at", claim.LeaseAt.UTC().Format(time.RFC3339Nano),
			)
		}
	}

	if recovered > 0 {
		application.ResolveMetrics(s.Metrics).LeasesRecovered(recovered)
		logger.Info("lease sweep completed",
			"event", "claim_sweeper_completed",
			"module", "rewards-settlement/claim-settlement",
			"layer", "worker",
			"stale_count", len(stale),
			"recovered_count", recovered,
		)
	}
	return nil
}
