package queries

import (
	"context"
	"log/slog"
	"strings"

	application "claimguard/contexts/rewards-settlement/claim-settlement/application"
	"claimguard/contexts/rewards-settlement/claim-settlement/domain/entities"
	domainerrors "claimguard/contexts/rewards-settlement/claim-settlement/domain/errors"
	"claimguard/contexts/rewards-settlement/claim-settlement/ports"
)

type GetClaimQuery struct {
	IdempoKey string
}

type GetClaimResult struct {
	Claim entities.Claim
}

type GetClaimUseCase struct {
	Ledger ports.ClaimLedger
	Logger *slog.Logger
}

func (u GetClaimUseCase) Execute(ctx context.Context, query GetClaimQuery) (GetClaimResult, error) {
	logger := application.ResolveLogger(u.Logger)
	key := strings.ToLower(strings.TrimSpace(query.IdempoKey))
	if key == "" {
		return GetClaimResult{}, domainerrors.ErrClaimNotFound
	}

	claim, found, err := u.Ledger.FindByIdempoKey(ctx, key)
	if err != nil {
		logger.Error("get claim failed",
			"event", "claim_get_failed",
			"module", "rewards-settlement/claim-settlement",
			"layer", "application",
			"idempo_key", key,
			"error", err.Error(),
		)
		return GetClaimResult{}, err
	}
	if !found {
		return GetClaimResult{}, domainerrors.ErrClaimNotFound
	}
	return GetClaimResult{Claim: claim}, nil
}
