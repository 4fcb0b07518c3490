package entities

import (
	"time"

	"github.com/holiman/uint256"
)

type ClaimStatus string

const (
	ClaimStatusPending    ClaimStatus = "pending"
	ClaimStatusProcessing ClaimStatus = "processing"
	ClaimStatusCompleted  ClaimStatus = "completed"
	ClaimStatusFailed     ClaimStatus = "failed"
)

// Annotations written to Claim.Error by non-terminal transitions.
const (
	ReasonLeaseTimeoutRecovered = "LEASE_TIMEOUT_RECOVERED"
	ReasonLockConflict          = "LOCK_CONFLICT"
	ReasonLockUnavailable       = "LOCK_UNAVAILABLE"
	ReasonDailyCapExceeded      = "DAILY_CAP_EXCEEDED"
	ReasonCapCheckFailed        = "CAP_CHECK_FAILED"
)

var AllStatuses = []ClaimStatus{
	ClaimStatusPending,
	ClaimStatusProcessing,
	ClaimStatusCompleted,
	ClaimStatusFailed,
}

// Claim is one settlement request in the ledger. Amount is in the token's
// minor units.
type Claim struct {
	ID          string
	Wallet      string
	Amount      uint256.Int
	Token       string
	ClaimID     string
	IdempoKey   string
	Status      ClaimStatus
	Attempts    int
	ClaimedAt   time.Time
	LeaseAt     *time.Time
	ProcessedAt *time.Time
	TxRef       string
	Error       string
	UpdatedAt   time.Time
}

func NewPendingClaim(
	id string,
	wallet string,
	amount uint256.Int,
	token string,
	claimID string,
	idempoKey string,
	now time.Time,
) Claim {
	return Claim{
		ID:        id,
		Wallet:    wallet,
		Amount:    amount,
		Token:     token,
		ClaimID:   claimID,
		IdempoKey: idempoKey,
		Status:    ClaimStatusPending,
		ClaimedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

func (c Claim) AmountString() string {
	return c.Amount.Dec()
}

func (c Claim) IsTerminal() bool {
	return c.Status == ClaimStatusCompleted || c.Status == ClaimStatusFailed
}

// HoldsLease reports whether the claim is processing under exactly leaseAt.
func (c Claim) HoldsLease(leaseAt time.Time) bool {
	return c.Status == ClaimStatusProcessing && c.LeaseAt != nil && c.LeaseAt.Equal(leaseAt)
}

// CanTransition encodes the ledger state machine. processing->pending is
// reserved for lease recovery and worker requeue.
func CanTransition(from ClaimStatus, to ClaimStatus) bool {
	switch from {
	case ClaimStatusPending:
		return to == ClaimStatusProcessing
	case ClaimStatusProcessing:
		return to == ClaimStatusCompleted || to == ClaimStatusFailed || to == ClaimStatusPending
	default:
		return false
	}
}
