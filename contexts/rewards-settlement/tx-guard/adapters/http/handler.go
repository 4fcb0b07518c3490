package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "claimguard/contexts/rewards-settlement/tx-guard/application"
	"claimguard/contexts/rewards-settlement/tx-guard/application/commands"
	"claimguard/contexts/rewards-settlement/tx-guard/domain/entities"
	domainerrors "claimguard/contexts/rewards-settlement/tx-guard/domain/errors"
	httptransport "claimguard/contexts/rewards-settlement/tx-guard/transport/http"
)

type Handler struct {
	Acquire         commands.AcquireGuardUseCase
	MarkSent        commands.MarkSentUseCase
	Release         commands.ReleaseGuardUseCase
	AdmitOnboarding commands.AdmitOnboardingUseCase
	Logger          *slog.Logger
}

// AcquireGuardHandler godoc
// @Summary Acquire a transaction guard
// @Description Holds the (wallet, mode, countryId, amount) tuple so a repeated submission is refused until the guard is released or expires.
// @Tags tx-guard
// @Accept json
// @Produce json
// @Param request body httptransport.AcquireGuardRequest true "Write intent"
// @Success 200 {object} httptransport.GuardResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 429 {object} httptransport.ErrorResponse
// @Router /tx-guard [post]
func (h Handler) AcquireGuardHandler(ctx context.Context, req httptransport.AcquireGuardRequest) (httptransport.GuardResponse, error) {
	application.ResolveLogger(h.Logger).Info("tx guard acquire request received",
		"event", "http_tx_guard_acquire_received",
		"module", "rewards-settlement/tx-guard",
		"layer", "transport",
	)
	result, err := h.Acquire.Execute(ctx, commands.AcquireGuardCommand{
		Wallet:    req.Wallet,
		Mode:      req.Mode,
		CountryID: req.CountryID,
		Amount:    req.Amount,
	})
	if err != nil {
		return httptransport.GuardResponse{}, err
	}
	return heldResponse(result), nil
}

// MarkSentHandler godoc
// @Summary Mark a guard as sent
// @Description Records that the guarded transaction was broadcast. Repeating the call is safe.
// @Tags tx-guard
// @Accept json
// @Produce json
// @Param request body httptransport.MarkSentRequest true "Lock key"
// @Success 200 {object} httptransport.GuardResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /tx-guard [patch]
func (h Handler) MarkSentHandler(ctx context.Context, req httptransport.MarkSentRequest) (httptransport.GuardResponse, error) {
	if strings.ToLower(strings.TrimSpace(req.Status)) != string(entities.StatusSent) {
		return httptransport.GuardResponse{}, domainerrors.ErrInvalidStatus
	}
	record, err := h.MarkSent.Execute(ctx, req.LockKey)
	if err != nil {
		return httptransport.GuardResponse{}, err
	}
	return httptransport.GuardResponse{
		OK:        true,
		LockKey:   record.LockKey,
		Status:    string(record.Status),
		ExpiresAt: record.ExpiresAt.UTC().Format(time.RFC3339),
	}, nil
}

// ReleaseGuardHandler godoc
// @Summary Release a guard
// @Description Frees the guarded tuple early. Releasing an expired or unknown lock key succeeds.
// @Tags tx-guard
// @Accept json
// @Produce json
// @Param request body httptransport.ReleaseGuardRequest true "Lock key"
// @Success 200 {object} httptransport.ReleaseGuardResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Router /tx-guard [delete]
func (h Handler) ReleaseGuardHandler(ctx context.Context, req httptransport.ReleaseGuardRequest) (httptransport.ReleaseGuardResponse, error) {
	result, err := h.Release.Execute(ctx, req.LockKey)
	if err != nil {
		return httptransport.ReleaseGuardResponse{}, err
	}
	return httptransport.ReleaseGuardResponse{OK: true, Released: result.Released}, nil
}

// AdmitOnboardingHandler godoc
// @Summary Admit an onboarding request
// @Description Applies the per-IP and per-wallet onboarding limits and holds the wallet's onboarding slot.
// @Tags tx-guard
// @Accept json
// @Produce json
// @Param request body httptransport.AdmitOnboardingRequest true "Wallet"
// @Success 200 {object} httptransport.GuardResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 429 {object} httptransport.ErrorResponse
// @Router /tx-guard/onboarding [post]
func (h Handler) AdmitOnboardingHandler(
	ctx context.Context,
	req httptransport.AdmitOnboardingRequest,
	clientIP string,
) (httptransport.GuardResponse, error) {
	result, err := h.AdmitOnboarding.Execute(ctx, commands.AdmitOnboardingCommand{
		Wallet: req.Wallet,
		IP:     clientIP,
	})
	if err != nil {
		return httptransport.GuardResponse{}, err
	}
	return heldResponse(result), nil
}

func heldResponse(result commands.GuardResult) httptransport.GuardResponse {
	return httptransport.GuardResponse{
		OK:        true,
		LockKey:   result.LockKey,
		Status:    string(entities.StatusHeld),
		ExpiresAt: result.ExpiresAt.UTC().Format(time.RFC3339),
	}
}
