package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	guarderrors "claimguard/contexts/rewards-settlement/tx-guard/domain/errors"
	guardhttp "claimguard/contexts/rewards-settlement/tx-guard/transport/http"
)

func (s *Server) handleAcquireGuard(w http.ResponseWriter, r *http.Request) {
	var req guardhttp.AcquireGuardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeGuardError(w, http.StatusBadRequest, "INVALID_JSON", "request body must be valid JSON")
		return
	}
	resp, err := s.guard.Handler.AcquireGuardHandler(r.Context(), req)
	if err != nil {
		s.writeGuardDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMarkGuardSent(w http.ResponseWriter, r *http.Request) {
	var req guardhttp.MarkSentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeGuardError(w, http.StatusBadRequest, "INVALID_JSON", "request body must be valid JSON")
		return
	}
	resp, err := s.guard.Handler.MarkSentHandler(r.Context(), req)
	if err != nil {
		s.writeGuardDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReleaseGuard(w http.ResponseWriter, r *http.Request) {
	var req guardhttp.ReleaseGuardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeGuardError(w, http.StatusBadRequest, "INVALID_JSON", "request body must be valid JSON")
		return
	}
	resp, err := s.guard.Handler.ReleaseGuardHandler(r.Context(), req)
	if err != nil {
		s.writeGuardDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAdmitOnboarding(w http.ResponseWriter, r *http.Request) {
	var req guardhttp.AdmitOnboardingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeGuardError(w, http.StatusBadRequest, "INVALID_JSON", "request body must be valid JSON")
		return
	}
	resp, err := s.guard.Handler.AdmitOnboardingHandler(r.Context(), req, s.resolveClientIP(r))
	if err != nil {
		s.writeGuardDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeGuardDomainError(w http.ResponseWriter, err error) {
	reason := guarderrors.Reason(err)
	var rateErr guarderrors.RateLimitError
	switch {
	case errors.As(err, &rateErr):
		seconds := retryAfterSeconds(rateErr.RetryAfter)
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		writeJSON(w, http.StatusTooManyRequests, guardhttp.ErrorResponse{
			Reason:            reason,
			Message:           err.Error(),
			RetryAfterSeconds: seconds,
		})
	case guarderrors.IsValidation(err):
		writeGuardError(w, http.StatusBadRequest, reason, err.Error())
	case errors.Is(err, guarderrors.ErrAlreadyLocked):
		writeGuardError(w, http.StatusConflict, reason, err.Error())
	case errors.Is(err, guarderrors.ErrGuardNotFound):
		writeGuardError(w, http.StatusNotFound, reason, err.Error())
	default:
		s.logger.Error("tx guard request failed",
			"event", "http_tx_guard_request_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"error", err.Error(),
		)
		writeGuardError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}

func writeGuardError(w http.ResponseWriter, status int, reason string, message string) {
	writeJSON(w, status, guardhttp.ErrorResponse{
		Reason:  reason,
		Message: message,
	})
}
