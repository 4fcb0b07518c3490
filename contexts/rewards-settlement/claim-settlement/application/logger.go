package application

import (
	"log/slog"
	"time"

	"claimguard/contexts/rewards-settlement/claim-settlement/domain/entities"
	"claimguard/contexts/rewards-settlement/claim-settlement/ports"
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

func (nopMetrics) ClaimSubmitted(string)                  {}
func (nopMetrics) ClaimSettled(entities.ClaimStatus, int) {}
func (nopMetrics) ClaimRequeued(string)                   {}
func (nopMetrics) LeasesRecovered(int)                    {}
func (nopMetrics) PayoutObserved(string, time.Duration)   {}
