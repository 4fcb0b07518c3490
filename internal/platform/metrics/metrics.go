package metrics

import (
	"net/http"
	"time"

	"claimguard/contexts/rewards-settlement/claim-settlement/domain/entities"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns the process collectors. It implements the settlement and
// guard metrics ports.
type Registry struct {
	registry *prometheus.Registry

	claimsSubmitted *prometheus.CounterVec
	claimsSettled   *prometheus.CounterVec
	claimAttempts   prometheus.Histogram
	claimsRequeued  *prometheus.CounterVec
	leasesRecovered prometheus.Counter
	payoutDuration  *prometheus.HistogramVec
	guardDecisions  *prometheus.CounterVec
}

func New() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		claimsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "claimguard_claims_submitted_total",
			Help: "Claim submissions by outcome.",
		}, []string{"outcome"}),
		claimsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "claimguard_claims_settled_total",
			Help: "Claims reaching a terminal status.",
		}, []string{"status"}),
		claimAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "claimguard_claim_attempts",
			Help:    "Attempts recorded on a claim when it reached a terminal status.",
			Buckets: []float64{1, 2, 3, 5, 8},
		}),
		claimsRequeued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "claimguard_claims_requeued_total",
			Help: "Leased claims returned to pending by the worker.",
		}, []string{"reason"}),
		leasesRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "claimguard_leases_recovered_total",
			Help: "Stale leases reverted to pending by the sweeper.",
		}),
		payoutDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "claimguard_payout_duration_seconds",
			Help:    "Payout executor latency by outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "claimguard_tx_guard_decisions_total",
			Help: "Transaction guard decisions by action and outcome.",
		}, []string{"action", "outcome"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.claimsSubmitted,
		r.claimsSettled,
		r.claimAttempts,
		r.claimsRequeued,
		r.leasesRecovered,
		r.payoutDuration,
		r.guardDecisions,
	)
	return r
}

// Handler serves the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

func (r *Registry) ClaimSubmitted(outcome string) {
	r.claimsSubmitted.WithLabelValues(outcome).Inc()
}

func (r *Registry) ClaimSettled(status entities.ClaimStatus, attempts int) {
	r.claimsSettled.WithLabelValues(string(status)).Inc()
	r.claimAttempts.Observe(float64(attempts))
}

func (r *Registry) ClaimRequeued(reason string) {
	r.claimsRequeued.WithLabelValues(reason).Inc()
}

func (r *Registry) LeasesRecovered(count int) {
	if count <= 0 {
		return
	}
	r.leasesRecovered.Add(float64(count))
}

func (r *Registry) PayoutObserved(outcome string, elapsed time.Duration) {
	r.payoutDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (r *Registry) GuardDecision(action string, outcome string) {
	r.guardDecisions.WithLabelValues(action, outcome).Inc()
}
