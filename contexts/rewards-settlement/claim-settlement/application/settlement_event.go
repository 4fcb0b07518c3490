package application

import (
	"encoding/json"
	"time"

	"claimguard/contexts/rewards-settlement/claim-settlement/domain/entities"
	"claimguard/contexts/rewards-settlement/claim-settlement/ports"
	contractsv1 "claimguard/contracts/gen/events/v1"
)

const (
	EventTypeClaimCompleted = "claim.completed"
	EventTypeClaimFailed    = "claim.failed"
	SettlementTopic         = "settlement.claims"
)

// BuildSettlementEnvelope renders the outbox payload for a terminal claim.
// Ledger adapters call it inside the transition write.
func BuildSettlementEnvelope(eventID string, claim entities.Claim, occurredAt time.Time) (ports.EventEnvelope, error) {
	eventType := EventTypeClaimCompleted
	if claim.Status == entities.ClaimStatusFailed {
		eventType = EventTypeClaimFailed
	}
	data, err := json.Marshal(contractsv1.ClaimSettledData{
		ClaimRef:    claim.ID,
		IdempoKey:   claim.IdempoKey,
		Wallet:      claim.Wallet,
		Amount:      claim.AmountString(),
		Token:       claim.Token,
		ClaimID:     claim.ClaimID,
		Status:      string(claim.Status),
		Attempts:    claim.Attempts,
		TxRef:       claim.TxRef,
		Error:       claim.Error,
		ProcessedAt: occurredAt.UTC(),
	})
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "claim-settlement",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "wallet",
		PartitionKey:     claim.Wallet,
		Data:             data,
	}, nil
}
