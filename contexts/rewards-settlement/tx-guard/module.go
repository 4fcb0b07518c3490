package txguard

import (
	"log/slog"
	"time"

	coordinationadapter "claimguard/contexts/rewards-settlement/tx-guard/adapters/coordination"
	httpadapter "claimguard/contexts/rewards-settlement/tx-guard/adapters/http"
	"claimguard/contexts/rewards-settlement/tx-guard/application/commands"
	"claimguard/contexts/rewards-settlement/tx-guard/ports"
	"claimguard/internal/platform/coordination"
)

type Module struct {
	Handler httpadapter.Handler
}

type RateLimits struct {
	TxPerWallet         int64
	OnboardingPerIP     int64
	OnboardingPerWallet int64
	Window              time.Duration
}

// DefaultRateLimits are 10/min per wallet for trades and 10/min per IP plus
// 3/min per wallet for onboarding.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		TxPerWallet:         10,
		OnboardingPerIP:     10,
		OnboardingPerWallet: 3,
		Window:              time.Minute,
	}
}

type Dependencies struct {
	Store             coordination.Store
	Clock             ports.Clock
	Metrics           ports.Metrics
	Limits            RateLimits
	LockTTL           time.Duration
	OnboardingLockTTL time.Duration
	Logger            *slog.Logger
}

func NewModule(deps Dependencies) Module {
	limits := deps.Limits
	if limits.Window <= 0 {
		limits.Window = time.Minute
	}
	locks := coordination.NewLockManager(deps.Store)
	records := coordinationadapter.NewRecordStore(deps.Store)
	limiter := func(action string, limit int64) coordinationadapter.RateLimiter {
		return coordinationadapter.NewRateLimiter(
			coordination.NewFixedWindowLimiter(deps.Store, action, limit, limits.Window),
		)
	}

	return Module{
		Handler: httpadapter.Handler{
			Acquire: commands.AcquireGuardUseCase{
				Locks:       locks,
				RateLimiter: limiter("tx_guard", limits.TxPerWallet),
				Records:     records,
				Clock:       deps.Clock,
				Metrics:     deps.Metrics,
				LockTTL:     deps.LockTTL,
				Logger:      deps.Logger,
			},
			MarkSent: commands.MarkSentUseCase{
				Records: records,
				Metrics: deps.Metrics,
				Logger:  deps.Logger,
			},
			Release: commands.ReleaseGuardUseCase{
				Locks:   locks,
				Records: records,
				Metrics: deps.Metrics,
				Logger:  deps.Logger,
			},
			AdmitOnboarding: commands.AdmitOnboardingUseCase{
				Locks:         locks,
				IPLimiter:     limiter("onboarding_ip", limits.OnboardingPerIP),
				WalletLimiter: limiter("onboarding_wallet", limits.OnboardingPerWallet),
				Records:       records,
				Clock:         deps.Clock,
				Metrics:       deps.Metrics,
				LockTTL:       deps.OnboardingLockTTL,
				Logger:        deps.Logger,
			},
			Logger: deps.Logger,
		},
	}
}

// NewInMemoryModule wires the guard against a process-local coordination store.
func NewInMemoryModule(clock coordination.Clock, logger *slog.Logger) Module {
	return NewModule(Dependencies{
		Store:  coordination.NewMemoryStore(clock),
		Clock:  clock,
		Limits: DefaultRateLimits(),
		Logger: logger,
	})
}
