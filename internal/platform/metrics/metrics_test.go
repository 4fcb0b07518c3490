package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"claimguard/contexts/rewards-settlement/claim-settlement/domain/entities"
)

func scrape(t *testing.T, registry *Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	registry.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	return rec.Body.String()
}

func TestRegistryCountsSettlementEvents(t *testing.T) {
	registry := New()
	registry.ClaimSubmitted("accepted")
	registry.ClaimSubmitted("accepted")
	registry.ClaimSubmitted("duplicate")
	registry.ClaimSettled(entities.ClaimStatusCompleted, 1)
	registry.ClaimSettled(entities.ClaimStatusFailed, 3)
	registry.ClaimRequeued("DAILY_CAP_EXCEEDED")
	registry.LeasesRecovered(3)
	registry.LeasesRecovered(0)
	registry.PayoutObserved("ok", 150*time.Millisecond)
	registry.GuardDecision("acquire", "already_locked")

	body := scrape(t, registry)
	for _, want := range []string{
		`claimguard_claims_submitted_total{outcome="accepted"} 2`,
		`claimguard_claims_submitted_total{outcome="duplicate"} 1`,
		`claimguard_claims_settled_total{status="failed"} 1`,
		`claimguard_claims_requeued_total{reason="DAILY_CAP_EXCEEDED"} 1`,
		`claimguard_leases_recovered_total 3`,
		`claimguard_payout_duration_seconds_count{outcome="ok"} 1`,
		`claimguard_tx_guard_decisions_total{action="acquire",outcome="already_locked"} 1`,
		`claimguard_claim_attempts_count 2`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected exposition to contain %q", want)
		}
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	first := New()
	second := New()
	first.ClaimRequeued("LOCK_CONFLICT")
	if strings.Contains(scrape(t, second), `reason="LOCK_CONFLICT"`) {
		t.Fatalf("expected separate registries")
	}
}
