package application

import (
	"log/slog"

	"claimguard/contexts/rewards-settlement/tx-guard/ports"
)

func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func ResolveMetrics(metrics ports.Metrics) ports.Metrics {
	if metrics != nil {
		return metrics
	}
	return nopMetrics{}
}

type nopMetrics struct{}

func (nopMetrics) GuardDecision(string, string) {}
