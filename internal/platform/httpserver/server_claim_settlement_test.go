package httpserver

import (
	"net/http"
	"testing"
)

const claimBody = `{"wallet":"0x00000000000000000000000000000000000000A1","claimId":"milestone:first_referral","amount":"100000","token":"USDC"}`

func TestSubmitClaimThenDuplicate(t *testing.T) {
	server := newTestServer()

	rr := doJSON(t, server, http.MethodPost, "/claim", claimBody, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	first := decodeBody(t, rr)
	if first["ok"] != true || first["alreadyClaimed"] != nil {
		t.Fatalf("unexpected first response %v", first)
	}

	rr = doJSON(t, server, http.MethodPost, "/claim", claimBody, nil)
	second := decodeBody(t, rr)
	if rr.Code != http.StatusOK || second["alreadyClaimed"] != true {
		t.Fatalf("expected duplicate verdict, got %d %v", rr.Code, second)
	}

	rr = doJSON(t, server, http.MethodGet, "/claim/"+first["idempoKey"].(string), "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected claim lookup 200, got %d", rr.Code)
	}
	claim := decodeBody(t, rr)["claim"].(map[string]any)
	if claim["status"] != "pending" || claim["wallet"] != "0x00000000000000000000000000000000000000a1" {
		t.Fatalf("unexpected claim %v", claim)
	}
}

func TestSubmitClaimValidationReasons(t *testing.T) {
	server := newTestServer()
	cases := map[string]string{
		`{"wallet":"0x1","claimId":"quest:1","amount":"1","token":"usdc"}`:                                            "INVALID_WALLET",
		`{"wallet":"0x00000000000000000000000000000000000000a1","claimId":"quest:1","amount":"1e3","token":"usdc"}`:   "INVALID_AMOUNT",
		`{"wallet":"0x00000000000000000000000000000000000000a1","claimId":"free_attack","amount":"1","token":"usdc"}`: "INVALID_CLAIM_ID",
		`{"wallet":`: "INVALID_JSON",
	}
	for body, reason := range cases {
		rr := doJSON(t, server, http.MethodPost, "/claim", body, nil)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", body, rr.Code)
		}
		if got := decodeBody(t, rr)["reason"]; got != reason {
			t.Fatalf("expected %s, got %v", reason, got)
		}
	}
}

func TestGetUnknownClaimIsNotFound(t *testing.T) {
	server := newTestServer()
	rr := doJSON(t, server, http.MethodGet, "/claim/0xdeadbeef", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestClaimsHealth(t *testing.T) {
	server := newTestServer()
	doJSON(t, server, http.MethodPost, "/claim", claimBody, nil)

	rr := doJSON(t, server, http.MethodGet, "/health/claims", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	health := decodeBody(t, rr)
	if health["pending"] != float64(1) || health["processing"] != float64(0) {
		t.Fatalf("unexpected health %v", health)
	}
}
