package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	claimsettlement "claimguard/contexts/rewards-settlement/claim-settlement"
	coordinationadapter "claimguard/contexts/rewards-settlement/claim-settlement/adapters/coordination"
	"claimguard/contexts/rewards-settlement/claim-settlement/adapters/payout"
	postgresadapter "claimguard/contexts/rewards-settlement/claim-settlement/adapters/postgres"
	claimapp "claimguard/contexts/rewards-settlement/claim-settlement/application"
	txguard "claimguard/contexts/rewards-settlement/tx-guard"
	contractsv1 "claimguard/contracts/gen/events/v1"
	"claimguard/internal/platform/config"
	"claimguard/internal/platform/coordination"
	"claimguard/internal/platform/db"
	"claimguard/internal/platform/httpserver"
	"claimguard/internal/platform/messaging"
	"claimguard/internal/platform/metrics"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server  *httpserver.Server
	runtime *runtime
}

type WorkerApp struct {
	module        claimsettlement.Module
	pollInterval  time.Duration
	relayInterval time.Duration
	runtime       *runtime
}

type SweeperApp struct {
	module        claimsettlement.Module
	sweepInterval time.Duration
	runtime       *runtime
}

// runtime holds the shared infrastructure of one process.
type runtime struct {
	cfg          config.Config
	logger       *slog.Logger
	metrics      *metrics.Registry
	postgres     *db.Postgres
	ledger       *postgresadapter.Repository
	coordination coordination.Store
	redis        *redis.Client
}

func BuildAPI(ctx context.Context) (*APIApp, error) {
	rt, err := newRuntime(ctx, "api")
	if err != nil {
		return nil, err
	}

	claims := claimsettlement.NewModule(rt.claimDependencies(nil, nil))
	guard := txguard.NewModule(txguard.Dependencies{
		Store:   rt.coordination,
		Clock:   postgresadapter.SystemClock{},
		Metrics: rt.metrics,
		Limits: txguard.RateLimits{
			TxPerWallet:         rt.cfg.TxGuardRateLimit,
			OnboardingPerIP:     rt.cfg.OnboardingIPRateLimit,
			OnboardingPerWallet: rt.cfg.OnboardingWalletRateLimit,
			Window:              rt.cfg.RateLimitWindow,
		},
		LockTTL:           rt.cfg.TxGuardLockTTL,
		OnboardingLockTTL: rt.cfg.OnboardingLockTTL,
		Logger:            rt.logger,
	})

	server := httpserver.New(claims, guard, rt.metrics.Handler(), rt.logger, normalizeAddr(rt.cfg.HTTPPort))
	server.TrustProxies(rt.cfg.TrustedProxies)
	return &APIApp{server: server, runtime: rt}, nil
}

func BuildWorker(ctx context.Context) (*WorkerApp, error) {
	rt, err := newRuntime(ctx, "worker")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(rt.cfg.PayoutExecutorURL) == "" {
		_ = rt.Close()
		return nil, errors.New("PAYOUT_EXECUTOR_URL is required")
	}

	executor := payout.NewHTTPExecutor(rt.cfg.PayoutExecutorURL, &http.Client{
		Timeout:   payoutTimeout(rt.cfg),
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})

	bus := messaging.NewBus(256, rt.logger)
	bus.Subscribe(ctx, claimapp.SettlementTopic, "settlement-audit", func(_ context.Context, event contractsv1.Envelope) error {
		rt.logger.Info("settlement notification",
			"event", "settlement_notification",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"wallet", event.PartitionKey,
		)
		return nil
	})

	return &WorkerApp{
		module:        claimsettlement.NewModule(rt.claimDependencies(executor, bus)),
		pollInterval:  rt.cfg.PollInterval,
		relayInterval: rt.cfg.RelayInterval,
		runtime:       rt,
	}, nil
}

func BuildSweeper(ctx context.Context) (*SweeperApp, error) {
	rt, err := newRuntime(ctx, "sweeper")
	if err != nil {
		return nil, err
	}
	return &SweeperApp{
		module:        claimsettlement.NewModule(rt.claimDependencies(nil, nil)),
		sweepInterval: rt.cfg.SweepInterval,
		runtime:       rt,
	}, nil
}

func newRuntime(ctx context.Context, process string) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})).
		With("service", cfg.ServiceName, "process", process)
	slog.SetDefault(logger)

	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}
	pg, err := db.Connect(ctx, cfg.PostgresDSN, db.DefaultPoolOptions())
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics.New(),
		postgres: pg,
		ledger:   postgresadapter.NewRepository(pg.DB, logger),
	}
	if cfg.AutoMigrate {
		if err := rt.ledger.Migrate(ctx); err != nil {
			_ = rt.Close()
			return nil, err
		}
	}

	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		client, err := coordination.Connect(ctx, addr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.redis = client
		rt.coordination = coordination.NewRedisStore(client, cfg.RedisKeyPrefix)
	} else {
		logger.Warn("REDIS_ADDR not set, using process-local locks and counters",
			"event", "bootstrap_coordination_memory",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		rt.coordination = coordination.NewMemoryStore(nil)
	}
	return rt, nil
}

func (rt *runtime) claimDependencies(
	executor *payout.HTTPExecutor,
	publisher *messaging.Bus,
) claimsettlement.Dependencies {
	deps := claimsettlement.Dependencies{
		Ledger: rt.ledger,
		Outbox: rt.ledger,
		Locks:  coordination.NewLockManager(rt.coordination),
		RateLimiter: coordinationadapter.NewRateLimiter(coordination.NewFixedWindowLimiter(
			rt.coordination, "claim", rt.cfg.ClaimRateLimit, rt.cfg.RateLimitWindow,
		)),
		Clock:        postgresadapter.SystemClock{},
		IDGenerator:  postgresadapter.UUIDGenerator{},
		Metrics:      rt.metrics,
		DailyCaps:    rt.cfg.DailyCaps,
		ClaimLockTTL: rt.cfg.ClaimLockTTL,
		LeaseTimeout: rt.cfg.LeaseTimeout,
		BatchSize:    rt.cfg.WorkerBatchSize,
		Concurrency:  rt.cfg.WorkerConcurrency,
		MaxAttempts:  rt.cfg.MaxAttempts,
		Logger:       rt.logger,
	}
	if executor != nil {
		deps.Payouts = executor
	}
	if publisher != nil {
		deps.Publisher = publisher
	}
	return deps
}

func (rt *runtime) Close() error {
	var errs []error
	if rt.redis != nil {
		errs = append(errs, rt.redis.Close())
	}
	if rt.postgres != nil {
		errs = append(errs, rt.postgres.Close())
	}
	return errors.Join(errs...)
}

func (a *APIApp) Run(ctx context.Context) error {
	a.runtime.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)
	return a.server.Start(ctx)
}

func (a *APIApp) Close() error {
	return a.runtime.Close()
}

// Run drives the claim worker and the outbox relay on their own cadences
// until ctx is cancelled. A failed cycle is logged and retried next tick.
func (w *WorkerApp) Run(ctx context.Context) error {
	logger := w.runtime.logger
	logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"relay_interval", w.relayInterval.String(),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return runEvery(groupCtx, w.pollInterval, logger, "claim_worker", w.module.Worker.RunOnce)
	})
	group.Go(func() error {
		return runEvery(groupCtx, w.relayInterval, logger, "outbox_relay", w.module.Relay.RunOnce)
	})
	return group.Wait()
}

func (w *WorkerApp) Close() error {
	return w.runtime.Close()
}

func (s *SweeperApp) Run(ctx context.Context) error {
	s.runtime.logger.Info("sweeper app started",
		"event", "bootstrap_sweeper_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"sweep_interval", s.sweepInterval.String(),
	)
	return runEvery(ctx, s.sweepInterval, s.runtime.logger, "lease_sweeper", s.module.Sweeper.RunOnce)
}

func (s *SweeperApp) Close() error {
	return s.runtime.Close()
}

// runEvery calls task immediately and then on every tick. Task errors do not
// stop the loop; the ledger keeps the state needed for the next attempt.
func runEvery(
	ctx context.Context,
	interval time.Duration,
	logger *slog.Logger,
	name string,
	task func(context.Context) error,
) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := task(ctx); err != nil && ctx.Err() == nil {
			logger.Error("scheduled task failed",
				"event", "bootstrap_task_failed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"task", name,
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// payoutTimeout keeps a payout call inside its lease. A call that outlived
// the lease would race the sweeper's requeue of the same claim.
func payoutTimeout(cfg config.Config) time.Duration {
	if cfg.PayoutTimeout > 0 && cfg.PayoutTimeout < cfg.LeaseTimeout {
		return cfg.PayoutTimeout
	}
	return cfg.LeaseTimeout
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
