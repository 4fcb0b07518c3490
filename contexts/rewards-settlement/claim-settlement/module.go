package claimsettlement

import (
	"log/slog"
	"time"

	coordinationadapter "claimguard/contexts/rewards-settlement/claim-settlement/adapters/coordination"
	httpadapter "claimguard/contexts/rewards-settlement/claim-settlement/adapters/http"
	"claimguard/contexts/rewards-settlement/claim-settlement/adapters/memory"
	"claimguard/contexts/rewards-settlement/claim-settlement/application"
	"claimguard/contexts/rewards-settlement/claim-settlement/application/commands"
	"claimguard/contexts/rewards-settlement/claim-settlement/application/queries"
	"claimguard/contexts/rewards-settlement/claim-settlement/application/workers"
	"claimguard/contexts/rewards-settlement/claim-settlement/ports"
	"claimguard/internal/platform/coordination"

	"github.com/holiman/uint256"
)

// Module is the composition surface for claim settlement. The API process
// consumes Handler; worker processes run Worker, Sweeper and Relay.
type Module struct {
	Handler httpadapter.Handler
	Worker  workers.ClaimWorker
	Sweeper workers.LeaseSweeper
	Relay   workers.OutboxRelay
	Store   *memory.Store
}

type Dependencies struct {
	Ledger       ports.ClaimLedger
	Outbox       ports.OutboxRepository
	Locks        ports.LockManager
	RateLimiter  ports.RateLimiter
	Payouts      ports.PayoutExecutor
	Publisher    ports.EventPublisher
	Clock        ports.Clock
	IDGenerator  ports.IDGenerator
	Metrics      ports.Metrics
	DailyCaps    map[string]uint256.Int
	ClaimLockTTL time.Duration
	LeaseTimeout time.Duration
	BatchSize    int
	Concurrency  int
	MaxAttempts  int
	Logger       *slog.Logger
}

func NewModule(deps Dependencies) Module {
	caps := application.DailyCapAccountant{
		Ledger: deps.Ledger,
		Clock:  deps.Clock,
		Caps:   deps.DailyCaps,
	}
	submit := commands.SubmitClaimUseCase{
		Ledger:      deps.Ledger,
		Locks:       deps.Locks,
		RateLimiter: deps.RateLimiter,
		Caps:        caps,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		Metrics:     deps.Metrics,
		LockTTL:     deps.ClaimLockTTL,
		Logger:      deps.Logger,
	}
	getClaim := queries.GetClaimUseCase{
		Ledger: deps.Ledger,
		Logger: deps.Logger,
	}
	health := queries.ClaimsHealthUseCase{
		Ledger: deps.Ledger,
		Caps:   caps,
		Clock:  deps.Clock,
		Logger: deps.Logger,
	}

	return Module{
		Handler: httpadapter.Handler{
			SubmitClaim:  submit,
			GetClaim:     getClaim,
			ClaimsHealth: health,
			Logger:       deps.Logger,
		},
		Worker: workers.ClaimWorker{
			Ledger:       deps.Ledger,
			Locks:        deps.Locks,
			Caps:         caps,
			Payouts:      deps.Payouts,
			Clock:        deps.Clock,
			IDGenerator:  deps.IDGenerator,
			Metrics:      deps.Metrics,
			BatchSize:    deps.BatchSize,
			Concurrency:  deps.Concurrency,
			MaxAttempts:  deps.MaxAttempts,
			LeaseTimeout: deps.LeaseTimeout,
			Logger:       deps.Logger,
		},
		Sweeper: workers.LeaseSweeper{
			Ledger:       deps.Ledger,
			Clock:        deps.Clock,
			Metrics:      deps.Metrics,
			LeaseTimeout: deps.LeaseTimeout,
			Logger:       deps.Logger,
		},
		Relay: workers.OutboxRelay{
			Outbox:    deps.Outbox,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			Topic:     application.SettlementTopic,
			Logger:    deps.Logger,
		},
	}
}

// NewInMemoryModule wires claim settlement against in-memory ledger and
// coordination stores for local runtime and tests.
func NewInMemoryModule(
	payouts ports.PayoutExecutor,
	publisher ports.EventPublisher,
	dailyCaps map[string]uint256.Int,
	clock coordination.Clock,
	logger *slog.Logger,
) Module {
	store := memory.NewStore(clock, logger)
	coordinationStore := coordination.NewMemoryStore(clock)
	module := NewModule(Dependencies{
		Ledger:       store,
		Outbox:       store,
		Locks:        coordination.NewLockManager(coordinationStore),
		RateLimiter:  coordinationadapter.NewRateLimiter(coordination.NewFixedWindowLimiter(coordinationStore, "claim", 20, time.Minute)),
		Payouts:      payouts,
		Publisher:    publisher,
		Clock:        store,
		IDGenerator:  store,
		DailyCaps:    dailyCaps,
		LeaseTimeout: 10 * time.Minute,
		Logger:       logger,
	})
	module.Store = store
	return module
}
