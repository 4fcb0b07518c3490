package v1

import (
	"encoding/json"
	"time"
)

// Envelope is the versioned event envelope published on settlement topics.
// Consumers dedupe on EventID and partition on PartitionKey.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

// ClaimSettledData is the payload of claim.completed and claim.failed.
type ClaimSettledData struct {
	ClaimRef    string    `json:"claim_ref"`
	IdempoKey   string    `json:"idempo_key"`
	Wallet      string    `json:"wallet"`
	Amount      string    `json:"amount"`
	Token       string    `json:"token"`
	ClaimID     string    `json:"claim_id"`
	Status      string    `json:"status"`
	Attempts    int       `json:"attempts"`
	TxRef       string    `json:"tx_ref,omitempty"`
	Error       string    `json:"error,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}
