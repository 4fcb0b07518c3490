package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	claimerrors "claimguard/contexts/rewards-settlement/claim-settlement/domain/errors"
	claimhttp "claimguard/contexts/rewards-settlement/claim-settlement/transport/http"
)

func (s *Server) handleSubmitClaim(w http.ResponseWriter, r *http.Request) {
	var req claimhttp.SubmitClaimRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeClaimError(w, http.StatusBadRequest, "INVALID_JSON", "request body must be valid JSON")
		return
	}
	resp, err := s.claims.Handler.SubmitClaimHandler(r.Context(), req)
	if err != nil {
		s.writeClaimDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	resp, err := s.claims.Handler.GetClaimHandler(r.Context(), r.PathValue("idempo_key"))
	if err != nil {
		s.writeClaimDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClaimsHealth(w http.ResponseWriter, r *http.Request) {
	resp, err := s.claims.Handler.ClaimsHealthHandler(r.Context())
	if err != nil {
		s.writeClaimDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeClaimDomainError(w http.ResponseWriter, err error) {
	var rateErr claimerrors.RateLimitError
	switch {
	case errors.As(err, &rateErr):
		seconds := retryAfterSeconds(rateErr.RetryAfter)
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		writeJSON(w, http.StatusTooManyRequests, claimhttp.ErrorResponse{
			Reason:            "RATE_LIMITED",
			Message:           claimerrors.ErrRateLimited.Error(),
			RetryAfterSeconds: seconds,
		})
	case errors.Is(err, claimerrors.ErrInvalidWallet):
		writeClaimError(w, http.StatusBadRequest, "INVALID_WALLET", err.Error())
	case errors.Is(err, claimerrors.ErrInvalidAmount):
		writeClaimError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
	case errors.Is(err, claimerrors.ErrInvalidToken):
		writeClaimError(w, http.StatusBadRequest, "INVALID_TOKEN", err.Error())
	case errors.Is(err, claimerrors.ErrInvalidClaimID):
		writeClaimError(w, http.StatusBadRequest, "INVALID_CLAIM_ID", err.Error())
	case errors.Is(err, claimerrors.ErrLockConflict):
		writeClaimError(w, http.StatusConflict, "ALREADY_IN_PROGRESS", err.Error())
	case errors.Is(err, claimerrors.ErrClaimNotFound):
		writeClaimError(w, http.StatusNotFound, "CLAIM_NOT_FOUND", err.Error())
	default:
		s.logger.Error("claim request failed",
			"event", "http_claim_request_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"error", err.Error(),
		)
		writeClaimError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}

func writeClaimError(w http.ResponseWriter, status int, reason string, message string) {
	writeJSON(w, status, claimhttp.ErrorResponse{
		Reason:  reason,
		Message: message,
	})
}
