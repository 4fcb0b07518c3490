package queries

import (
	"context"
	"log/slog"
	"time"

	application "claimguard/contexts/rewards-settlement/claim-settlement/application"
	"claimguard/contexts/rewards-settlement/claim-settlement/domain/entities"
	"claimguard/contexts/rewards-settlement/claim-settlement/ports"
)

type ClaimsHealthResult struct {
	Pending    int64
	Processing int64
	Completed  int64
	Failed     int64
	// ProcessingLag is the age of the oldest live lease, zero when idle.
	ProcessingLag time.Duration
	CapUsage      []application.CapUsage
}

type ClaimsHealthUseCase struct {
	Ledger ports.ClaimLedger
	Caps   application.DailyCapAccountant
	Clock  ports.Clock
	Logger *slog.Logger
}

func (u ClaimsHealthUseCase) Execute(ctx context.Context) (ClaimsHealthResult, error) {
	logger := application.ResolveLogger(u.Logger)

	counts, err := u.Ledger.CountByStatus(ctx)
	if err != nil {
		logger.Error("claims health count failed",
			"event", "claims_health_count_failed",
			"module", "rewards-settlement/claim-settlement",
			"layer", "application",
			"error", err.Error(),
		)
		return ClaimsHealthResult{}, err
	}
	result := ClaimsHealthResult{
		Pending:    counts[entities.ClaimStatusPending],
		Processing: counts[entities.ClaimStatusProcessing],
		Completed:  counts[entities.ClaimStatusCompleted],
		Failed:     counts[entities.ClaimStatusFailed],
	}

	oldest, found, err := u.Ledger.OldestProcessingLease(ctx)
	if err != nil {
		return ClaimsHealthResult{}, err
	}
	if found {
		now := time.Now().UTC()
		if u.Clock != nil {
			now = u.Clock.Now().UTC()
		}
		if lag := now.Sub(oldest); lag > 0 {
			result.ProcessingLag = lag
		}
	}

	usage, err := u.Caps.Usage(ctx)
	if err != nil {
		logger.Error("claims health cap usage failed",
			"event", "claims_health_cap_usage_failed",
			"module", "rewards-settlement/claim-settlement",
			"layer", "application",
			"error", err.Error(),
		)
		return ClaimsHealthResult{}, err
	}
	result.CapUsage = usage
	return result, nil
}
