package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	application "claimguard/contexts/rewards-settlement/tx-guard/application"
	"claimguard/contexts/rewards-settlement/tx-guard/domain/entities"
	domainerrors "claimguard/contexts/rewards-settlement/tx-guard/domain/errors"
	"claimguard/contexts/rewards-settlement/tx-guard/domain/services"
	"claimguard/contexts/rewards-settlement/tx-guard/ports"
)

type AcquireGuardCommand struct {
	Wallet    string
	Mode      string
	CountryID int64
	Amount    string
}

type AcquireGuardUseCase struct {
	Locks       ports.LockManager
	RateLimiter ports.RateLimiter
	Records     ports.RecordStore
	Clock       ports.Clock
	Metrics     ports.Metrics
	LockTTL     time.Duration
	Logger      *slog.Logger
}

func (u AcquireGuardUseCase) Execute(ctx context.Context, cmd AcquireGuardCommand) (GuardResult, error) {
	logger := application.ResolveLogger(u.Logger)
	metrics := application.ResolveMetrics(u.Metrics)

	intent, err := services.NewIntent(cmd.Wallet, cmd.Mode, cmd.CountryID, cmd.Amount)
	if err != nil {
		metrics.GuardDecision("acquire", "invalid")
		return GuardResult{}, err
	}

	if u.RateLimiter != nil {
		decision, err := u.RateLimiter.Allow(ctx, intent.Wallet)
		if err != nil {
			return GuardResult{}, err
		}
		if !decision.Allowed {
			metrics.GuardDecision("acquire", "rate_limited")
			logger.Warn("tx guard rate limited",
				"event", "tx_guard_rate_limited",
				"module", "rewards-settlement/tx-guard",
				"layer", "application",
				"wallet", intent.Wallet,
			)
			return GuardResult{}, domainerrors.RateLimitError{
				Reason:     domainerrors.ReasonRateLimit,
				RetryAfter: decision.RetryAfter,
			}
		}
	}

	result, err := hold(ctx, u.Locks, u.Records, entities.Record{
		ResourceKey: intent.ResourceKey(),
		Wallet:      intent.Wallet,
		Mode:        intent.Mode,
		CountryID:   intent.CountryID,
		AmountWei:   intent.AmountWei,
	}, u.lockTTL(), nowOrSystem(u.Clock), logger)
	if err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyLocked) {
			metrics.GuardDecision("acquire", "already_locked")
			logger.Info("tx guard already held",
				"event", "tx_guard_already_locked",
				"module", "rewards-settlement/tx-guard",
				"layer", "application",
				"resource_key", intent.ResourceKey(),
			)
			return GuardResult{}, err
		}
		logger.Error("tx guard acquire failed",
			"event", "tx_guard_acquire_failed",
			"module", "rewards-settlement/tx-guard",
			"layer", "application",
			"resource_key", intent.ResourceKey(),
			"error", err.Error(),
		)
		return GuardResult{}, err
	}

	metrics.GuardDecision("acquire", "held")
	logger.Info("tx guard held",
		"event", "tx_guard_held",
		"module", "rewards-settlement/tx-guard",
		"layer", "application",
		"wallet", intent.Wallet,
		"mode", intent.Mode,
		"country_id", intent.CountryID,
	)
	return result, nil
}

func (u AcquireGuardUseCase) lockTTL() time.Duration {
	if u.LockTTL <= 0 {
		return 60 * time.Second
	}
	return u.LockTTL
}
