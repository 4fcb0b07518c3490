package entities

import (
	"time"

	"github.com/holiman/uint256"
)

type Mode string

const (
	ModeBuy     Mode = "buy"
	ModeSell    Mode = "sell"
	ModeOnboard Mode = "onboard"
)

type Status string

const (
	StatusHeld Status = "held"
	StatusSent Status = "sent"
)

// Record describes one held intent. LockKey is the opaque handle returned to
// the caller and is also the lock holder token for ResourceKey.
type Record struct {
	LockKey     string
	ResourceKey string
	Wallet      string
	Mode        Mode
	CountryID   int64
	AmountWei   uint256.Int
	IP          string
	Status      Status
	ExpiresAt   time.Time
}

func (r Record) IsSent() bool {
	return r.Status == StatusSent
}

// MarkSent returns the record in sent state. Sent is absorbing.
func (r Record) MarkSent() Record {
	r.Status = StatusSent
	return r
}
