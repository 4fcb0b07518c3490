package errors

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidWallet            = errors.New("invalid wallet address")
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrInvalidToken             = errors.New("invalid token")
	ErrInvalidClaimID           = errors.New("claim id must be <category>:<event-id>")
	ErrClaimNotFound            = errors.New("claim not found")
	ErrRateLimited              = errors.New("rate limit exceeded")
	ErrLockConflict             = errors.New("claim already in progress")
	ErrLeaseLost                = errors.New("claim lease lost")
	ErrInvalidTransition        = errors.New("invalid claim status transition")
	ErrPayoutRetryable          = errors.New("payout failed, retryable")
	ErrPayoutRejected           = errors.New("payout rejected")
	ErrRepositoryInvariantBroke = errors.New("repository invariant violated")
)

// RateLimitError carries the retry-after hint for a refused request.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited, e.RetryAfter)
}

func (e RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// IsValidation reports whether err was caused by caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidWallet) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrInvalidClaimID)
}
