package httpadapter

import (
	"context"
	"log/slog"
	"time"

	application "claimguard/contexts/rewards-settlement/claim-settlement/application"
	"claimguard/contexts/rewards-settlement/claim-settlement/application/commands"
	"claimguard/contexts/rewards-settlement/claim-settlement/application/queries"
	"claimguard/contexts/rewards-settlement/claim-settlement/domain/entities"
	httptransport "claimguard/contexts/rewards-settlement/claim-settlement/transport/http"
)

type Handler struct {
	SubmitClaim  commands.SubmitClaimUseCase
	GetClaim     queries.GetClaimUseCase
	ClaimsHealth queries.ClaimsHealthUseCase
	Logger       *slog.Logger
}

// SubmitClaimHandler godoc
// @Summary Submit a reward claim
// @Description Queues a claim for settlement. Resubmitting the same wallet, amount, token and claimId returns alreadyClaimed.
// @Tags claim-settlement
// @Accept json
// @Produce json
// @Param request body httptransport.SubmitClaimRequest true "Claim payload"
// @Success 200 {object} httptransport.SubmitClaimResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 429 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /claim [post]
func (h Handler) SubmitClaimHandler(ctx context.Context, req httptransport.SubmitClaimRequest) (httptransport.SubmitClaimResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Info("submit claim request received",
		"event", "http_submit_claim_received",
		"module", "rewards-settlement/claim-settlement",
		"layer", "transport",
	)

	result, err := h.SubmitClaim.Execute(ctx, commands.SubmitClaimCommand{
		Wallet:  req.Wallet,
		Amount:  req.Amount,
		Token:   req.Token,
		ClaimID: req.ClaimID,
	})
	if err != nil {
		return httptransport.SubmitClaimResponse{}, err
	}
	return httptransport.SubmitClaimResponse{
		OK:             true,
		AlreadyClaimed: result.AlreadyClaimed,
		CapDeferred:    result.CapDeferred,
		IdempoKey:      result.Claim.IdempoKey,
		Status:         string(result.Claim.Status),
	}, nil
}

// GetClaimHandler godoc
// @Summary Get claim status
// @Description Returns the ledger row for an idempotency key.
// @Tags claim-settlement
// @Produce json
// @Param idempo_key path string true "Idempotency key"
// @Success 200 {object} httptransport.GetClaimResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /claim/{idempo_key} [get]
func (h Handler) GetClaimHandler(ctx context.Context, idempoKey string) (httptransport.GetClaimResponse, error) {
	result, err := h.GetClaim.Execute(ctx, queries.GetClaimQuery{IdempoKey: idempoKey})
	if err != nil {
		return httptransport.GetClaimResponse{}, err
	}
	return httptransport.GetClaimResponse{OK: true, Claim: mapClaim(result.Claim)}, nil
}

// ClaimsHealthHandler godoc
// @Summary Settlement health
// @Description Returns claim counts per status, the age of the oldest lease and today's cap usage per token.
// @Tags claim-settlement
// @Produce json
// @Success 200 {object} httptransport.ClaimsHealthResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /health/claims [get]
func (h Handler) ClaimsHealthHandler(ctx context.Context) (httptransport.ClaimsHealthResponse, error) {
	result, err := h.ClaimsHealth.Execute(ctx)
	if err != nil {
		return httptransport.ClaimsHealthResponse{}, err
	}

	usage := make(map[string]httptransport.CapUsageDTO, len(result.CapUsage))
	for _, item := range result.CapUsage {
		usage[item.Token] = httptransport.CapUsageDTO{
			Used:      item.Used.Dec(),
			Cap:       item.Cap.Dec(),
			Remaining: item.Remaining.Dec(),
		}
	}
	return httptransport.ClaimsHealthResponse{
		Pending:              result.Pending,
		Processing:           result.Processing,
		Completed:            result.Completed,
		Failed:               result.Failed,
		ProcessingLagSeconds: int64(result.ProcessingLag / time.Second),
		DailyCapUsage:        usage,
	}, nil
}

func mapClaim(claim entities.Claim) httptransport.ClaimDTO {
	dto := httptransport.ClaimDTO{
		ID:        claim.ID,
		Wallet:    claim.Wallet,
		Amount:    claim.AmountString(),
		Token:     claim.Token,
		ClaimID:   claim.ClaimID,
		IdempoKey: claim.IdempoKey,
		Status:    string(claim.Status),
		Attempts:  claim.Attempts,
		ClaimedAt: claim.ClaimedAt.UTC().Format(time.RFC3339),
		TxRef:     claim.TxRef,
		Error:     claim.Error,
	}
	if claim.LeaseAt != nil {
		dto.LeaseAt = claim.LeaseAt.UTC().Format(time.RFC3339)
	}
	if claim.ProcessedAt != nil {
		dto.ProcessedAt = claim.ProcessedAt.UTC().Format(time.RFC3339)
	}
	return dto
}
