package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/pelletier/go-toml/v2"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	LogLevel    slog.Level
	// TrustedProxies are peers allowed to set X-Forwarded-For. Empty means
	// the connection address is the client.
	TrustedProxies []netip.Prefix

	PostgresDSN string
	AutoMigrate bool

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	PayoutExecutorURL string
	// PayoutTimeout bounds one payout call. Zero or anything beyond
	// LeaseTimeout means the lease timeout.
	PayoutTimeout time.Duration

	// DailyCaps maps canonical token ids to a per-UTC-day cap in minor units.
	// Tokens without an entry are uncapped.
	DailyCaps map[string]uint256.Int

	RateLimitWindow           time.Duration
	ClaimRateLimit            int64
	TxGuardRateLimit          int64
	OnboardingIPRateLimit     int64
	OnboardingWalletRateLimit int64

	ClaimLockTTL      time.Duration
	TxGuardLockTTL    time.Duration
	OnboardingLockTTL time.Duration

	LeaseTimeout      time.Duration
	SweepInterval     time.Duration
	PollInterval      time.Duration
	RelayInterval     time.Duration
	WorkerBatchSize   int
	WorkerConcurrency int
	MaxAttempts       int
}

// fileConfig is the optional TOML overlay named by CONFIG_FILE. Absent keys
// keep their defaults; environment variables win over the file.
type fileConfig struct {
	Service struct {
		Name     *string `toml:"name"`
		HTTPPort *string `toml:"http_port"`
		LogLevel *string `toml:"log_level"`

		TrustedProxies []string `toml:"trusted_proxies"`
	} `toml:"service"`
	DailyCaps  map[string]string `toml:"daily_caps"`
	RateLimits struct {
		Window           *string `toml:"window"`
		Claim            *int64  `toml:"claim"`
		TxGuard          *int64  `toml:"tx_guard"`
		OnboardingIP     *int64  `toml:"onboarding_ip"`
		OnboardingWallet *int64  `toml:"onboarding_wallet"`
	} `toml:"rate_limits"`
	Settlement struct {
		LeaseTimeout  *string `toml:"lease_timeout"`
		SweepInterval *string `toml:"sweep_interval"`
		PollInterval  *string `toml:"poll_interval"`
		BatchSize     *int    `toml:"batch_size"`
		Concurrency   *int    `toml:"concurrency"`
		MaxAttempts   *int    `toml:"max_attempts"`
	} `toml:"settlement"`
}

func Defaults() Config {
	return Config{
		ServiceName:               "claimguard",
		HTTPPort:                  "8080",
		LogLevel:                  slog.LevelInfo,
		RedisKeyPrefix:            "claimguard",
		DailyCaps:                 map[string]uint256.Int{},
		RateLimitWindow:           time.Minute,
		ClaimRateLimit:            20,
		TxGuardRateLimit:          10,
		OnboardingIPRateLimit:     10,
		OnboardingWalletRateLimit: 3,
		ClaimLockTTL:              30 * time.Second,
		TxGuardLockTTL:            60 * time.Second,
		OnboardingLockTTL:         120 * time.Second,
		LeaseTimeout:              10 * time.Minute,
		SweepInterval:             5 * time.Minute,
		PollInterval:              2 * time.Second,
		RelayInterval:             time.Second,
		WorkerBatchSize:           10,
		WorkerConcurrency:         4,
		MaxAttempts:               3,
	}
}

func Load() (Config, error) {
	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	cfg.ServiceName = envString("SERVICE_NAME", cfg.ServiceName)
	cfg.HTTPPort = envString("HTTP_PORT", cfg.HTTPPort)
	if raw := strings.TrimSpace(os.Getenv("LOG_LEVEL")); raw != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(raw)); err != nil {
			return Config{}, fmt.Errorf("parse LOG_LEVEL: %w", err)
		}
	}

	if raw := strings.TrimSpace(os.Getenv("TRUSTED_PROXIES")); raw != "" {
		prefixes, err := parsePrefixes(strings.Split(raw, ","))
		if err != nil {
			return Config{}, fmt.Errorf("parse TRUSTED_PROXIES: %w", err)
		}
		cfg.TrustedProxies = prefixes
	}

	cfg.PostgresDSN = envString("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.AutoMigrate = envBool("AUTO_MIGRATE", cfg.AutoMigrate)

	cfg.RedisAddr = envString("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = envString("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = envInt("REDIS_DB", cfg.RedisDB)
	cfg.RedisKeyPrefix = envString("REDIS_KEY_PREFIX", cfg.RedisKeyPrefix)

	cfg.PayoutExecutorURL = envString("PAYOUT_EXECUTOR_URL", cfg.PayoutExecutorURL)
	cfg.PayoutTimeout = envDuration("PAYOUT_TIMEOUT", cfg.PayoutTimeout)

	if raw := strings.TrimSpace(os.Getenv("DAILY_CAPS")); raw != "" {
		caps, err := parseCapList(raw)
		if err != nil {
			return Config{}, err
		}
		cfg.DailyCaps = caps
	}

	cfg.RateLimitWindow = envDuration("RATE_LIMIT_WINDOW", cfg.RateLimitWindow)
	cfg.ClaimRateLimit = int64(envInt("CLAIM_RATE_LIMIT", int(cfg.ClaimRateLimit)))
	cfg.TxGuardRateLimit = int64(envInt("TX_GUARD_RATE_LIMIT", int(cfg.TxGuardRateLimit)))
	cfg.OnboardingIPRateLimit = int64(envInt("ONBOARDING_IP_RATE_LIMIT", int(cfg.OnboardingIPRateLimit)))
	cfg.OnboardingWalletRateLimit = int64(envInt("ONBOARDING_WALLET_RATE_LIMIT", int(cfg.OnboardingWalletRateLimit)))

	cfg.ClaimLockTTL = envDuration("CLAIM_LOCK_TTL", cfg.ClaimLockTTL)
	cfg.TxGuardLockTTL = envDuration("TX_GUARD_LOCK_TTL", cfg.TxGuardLockTTL)
	cfg.OnboardingLockTTL = envDuration("ONBOARDING_LOCK_TTL", cfg.OnboardingLockTTL)

	cfg.LeaseTimeout = envDuration("LEASE_TIMEOUT", cfg.LeaseTimeout)
	cfg.SweepInterval = envDuration("SWEEP_INTERVAL", cfg.SweepInterval)
	cfg.PollInterval = envDuration("WORKER_POLL_INTERVAL", cfg.PollInterval)
	cfg.RelayInterval = envDuration("OUTBOX_RELAY_INTERVAL", cfg.RelayInterval)
	cfg.WorkerBatchSize = envInt("WORKER_BATCH_SIZE", cfg.WorkerBatchSize)
	cfg.WorkerConcurrency = envInt("WORKER_CONCURRENCY", cfg.WorkerConcurrency)
	cfg.MaxAttempts = envInt("MAX_ATTEMPTS", cfg.MaxAttempts)

	if cfg.LeaseTimeout <= 0 || cfg.SweepInterval <= 0 {
		return Config{}, errors.New("lease timeout and sweep interval must be positive")
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var file fileConfig
	if err := toml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	if file.Service.Name != nil {
		cfg.ServiceName = *file.Service.Name
	}
	if file.Service.HTTPPort != nil {
		cfg.HTTPPort = *file.Service.HTTPPort
	}
	if file.Service.LogLevel != nil {
		if err := cfg.LogLevel.UnmarshalText([]byte(*file.Service.LogLevel)); err != nil {
			return fmt.Errorf("parse service.log_level: %w", err)
		}
	}

	if len(file.Service.TrustedProxies) > 0 {
		prefixes, err := parsePrefixes(file.Service.TrustedProxies)
		if err != nil {
			return fmt.Errorf("parse service.trusted_proxies: %w", err)
		}
		cfg.TrustedProxies = prefixes
	}

	if len(file.DailyCaps) > 0 {
		caps := make(map[string]uint256.Int, len(file.DailyCaps))
		for token, value := range file.DailyCaps {
			amount, err := parseCap(token, value)
			if err != nil {
				return err
			}
			caps[strings.ToLower(strings.TrimSpace(token))] = amount
		}
		cfg.DailyCaps = caps
	}

	durations := []struct {
		raw    *string
		target *time.Duration
		name   string
	}{
		{file.RateLimits.Window, &cfg.RateLimitWindow, "rate_limits.window"},
		{file.Settlement.LeaseTimeout, &cfg.LeaseTimeout, "settlement.lease_timeout"},
		{file.Settlement.SweepInterval, &cfg.SweepInterval, "settlement.sweep_interval"},
		{file.Settlement.PollInterval, &cfg.PollInterval, "settlement.poll_interval"},
	}
	for _, item := range durations {
		if item.raw == nil {
			continue
		}
		value, err := time.ParseDuration(*item.raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", item.name, err)
		}
		*item.target = value
	}

	if file.RateLimits.Claim != nil {
		cfg.ClaimRateLimit = *file.RateLimits.Claim
	}
	if file.RateLimits.TxGuard != nil {
		cfg.TxGuardRateLimit = *file.RateLimits.TxGuard
	}
	if file.RateLimits.OnboardingIP != nil {
		cfg.OnboardingIPRateLimit = *file.RateLimits.OnboardingIP
	}
	if file.RateLimits.OnboardingWallet != nil {
		cfg.OnboardingWalletRateLimit = *file.RateLimits.OnboardingWallet
	}
	if file.Settlement.BatchSize != nil {
		cfg.WorkerBatchSize = *file.Settlement.BatchSize
	}
	if file.Settlement.Concurrency != nil {
		cfg.WorkerConcurrency = *file.Settlement.Concurrency
	}
	if file.Settlement.MaxAttempts != nil {
		cfg.MaxAttempts = *file.Settlement.MaxAttempts
	}
	return nil
}

// parseCapList reads "usdc=1000000,weth=5000000000000000000".
func parseCapList(raw string) (map[string]uint256.Int, error) {
	caps := make(map[string]uint256.Int)
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		token, value, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("DAILY_CAPS entry %q must be token=amount", item)
		}
		amount, err := parseCap(token, value)
		if err != nil {
			return nil, err
		}
		caps[strings.ToLower(strings.TrimSpace(token))] = amount
	}
	return caps, nil
}

func parseCap(token string, value string) (uint256.Int, error) {
	amount, err := uint256.FromDecimal(strings.TrimSpace(value))
	if err != nil {
		return uint256.Int{}, fmt.Errorf("daily cap for %s: %w", token, err)
	}
	return *amount, nil
}

// parsePrefixes accepts CIDR prefixes and bare addresses.
func parsePrefixes(items []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(items))
	for _, item := range items {
		value := strings.TrimSpace(item)
		if value == "" {
			continue
		}
		if strings.Contains(value, "/") {
			prefix, err := netip.ParsePrefix(value)
			if err != nil {
				return nil, err
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(value)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

func envString(name string, fallback string) string {
	if raw := strings.TrimSpace(os.Getenv(name)); raw != "" {
		return raw
	}
	return fallback
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}
