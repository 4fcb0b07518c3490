package errors

import (
	"errors"
	"time"
)

var (
	ErrInvalidWallet  = errors.New("wallet must be a 20-byte hex address")
	ErrInvalidMode    = errors.New("mode must be buy or sell")
	ErrInvalidCountry = errors.New("countryId must be positive")
	ErrInvalidAmount  = errors.New("amount must be a positive integer in wei")
	ErrInvalidIP      = errors.New("client ip is required")
	ErrInvalidLockKey = errors.New("lockKey is required")
	ErrInvalidStatus  = errors.New("status must be sent")
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrAlreadyLocked  = errors.New("an identical intent is already in progress")
	ErrGuardNotFound  = errors.New("guard not found or expired")
)

const (
	ReasonRateLimit         = "RATE_LIMIT"
	ReasonRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ReasonAlreadyLocked     = "ALREADY_LOCKED"
	ReasonInvalidWallet     = "INVALID_WALLET"
	ReasonInvalidMode       = "INVALID_MODE"
	ReasonInvalidCountry    = "INVALID_COUNTRY"
	ReasonInvalidAmount     = "INVALID_AMOUNT"
	ReasonInvalidIP         = "INVALID_IP"
	ReasonInvalidLockKey    = "INVALID_LOCK_KEY"
	ReasonInvalidStatus     = "INVALID_STATUS"
	ReasonNotFound          = "LOCK_NOT_FOUND"
)

// RateLimitError carries the refusal code and the time until the window resets.
type RateLimitError struct {
	Reason     string
	RetryAfter time.Duration
}

func (e RateLimitError) Error() string {
	return ErrRateLimited.Error()
}

func (e RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// Reason returns the machine-readable refusal code for err, or "" when err
// is not a guard refusal.
func Reason(err error) string {
	var rateErr RateLimitError
	switch {
	case errors.As(err, &rateErr):
		if rateErr.Reason == "" {
			return ReasonRateLimit
		}
		return rateErr.Reason
	case errors.Is(err, ErrAlreadyLocked):
		return ReasonAlreadyLocked
	case errors.Is(err, ErrInvalidWallet):
		return ReasonInvalidWallet
	case errors.Is(err, ErrInvalidMode):
		return ReasonInvalidMode
	case errors.Is(err, ErrInvalidCountry):
		return ReasonInvalidCountry
	case errors.Is(err, ErrInvalidAmount):
		return ReasonInvalidAmount
	case errors.Is(err, ErrInvalidIP):
		return ReasonInvalidIP
	case errors.Is(err, ErrInvalidLockKey):
		return ReasonInvalidLockKey
	case errors.Is(err, ErrInvalidStatus):
		return ReasonInvalidStatus
	case errors.Is(err, ErrGuardNotFound):
		return ReasonNotFound
	default:
		return ""
	}
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidWallet) ||
		errors.Is(err, ErrInvalidMode) ||
		errors.Is(err, ErrInvalidCountry) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidIP) ||
		errors.Is(err, ErrInvalidLockKey) ||
		errors.Is(err, ErrInvalidStatus)
}
