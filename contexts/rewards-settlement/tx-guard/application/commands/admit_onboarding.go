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

type AdmitOnboardingCommand struct {
	Wallet string
	IP     string
}

// AdmitOnboardingUseCase layers a per-IP and a per-wallet limit in front of a
// per-wallet onboarding hold.
type AdmitOnboardingUseCase struct {
	Locks         ports.LockManager
	IPLimiter     ports.RateLimiter
	WalletLimiter ports.RateLimiter
	Records       ports.RecordStore
	Clock         ports.Clock
	Metrics       ports.Metrics
	LockTTL       time.Duration
	Logger        *slog.Logger
}

func (u AdmitOnboardingUseCase) Execute(ctx context.Context, cmd AdmitOnboardingCommand) (GuardResult, error) {
	logger := application.ResolveLogger(u.Logger)
	metrics := application.ResolveMetrics(u.Metrics)

	wallet, err := services.NormalizeWallet(cmd.Wallet)
	if err != nil {
		metrics.GuardDecision("onboarding", "invalid")
		return GuardResult{}, err
	}
	ip, err := services.NormalizeIP(cmd.IP)
	if err != nil {
		metrics.GuardDecision("onboarding", "invalid")
		return GuardResult{}, err
	}

	for _, check := range []struct {
		scope   string
		limiter ports.RateLimiter
		subject string
	}{
		{scope: "ip", limiter: u.IPLimiter, subject: ip},
		{scope: "wallet", limiter: u.WalletLimiter, subject: wallet},
	} {
		if check.limiter == nil {
			continue
		}
		decision, err := check.limiter.Allow(ctx, check.subject)
		if err != nil {
			return GuardResult{}, err
		}
		if !decision.Allowed {
			metrics.GuardDecision("onboarding", "rate_limited")
			logger.Warn("onboarding rate limited",
				"event", "tx_guard_onboarding_rate_limited",
				"module", "rewards-settlement/tx-guard",
				"layer", "application",
				"scope", check.scope,
				"wallet", wallet,
				"ip", ip,
			)
			return GuardResult{}, domainerrors.RateLimitError{
				Reason:     domainerrors.ReasonRateLimitExceeded,
				RetryAfter: decision.RetryAfter,
			}
		}
	}

	result, err := hold(ctx, u.Locks, u.Records, entities.Record{
		ResourceKey: services.OnboardingResourceKey(wallet),
		Wallet:      wallet,
		Mode:        entities.ModeOnboard,
		IP:          ip,
	}, u.lockTTL(), nowOrSystem(u.Clock), logger)
	if err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyLocked) {
			metrics.GuardDecision("onboarding", "already_locked")
		}
		return GuardResult{}, err
	}

	metrics.GuardDecision("onboarding", "held")
	logger.Info("onboarding admitted",
		"event", "tx_guard_onboarding_admitted",
		"module", "rewards-settlement/tx-guard",
		"layer", "application",
		"wallet", wallet,
		"ip", ip,
	)
	return result, nil
}

func (u AdmitOnboardingUseCase) lockTTL() time.Duration {
	if u.LockTTL <= 0 {
		return 120 * time.Second
	}
	return u.LockTTL
}
