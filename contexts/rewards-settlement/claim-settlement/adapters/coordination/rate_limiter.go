package coordinationadapter

import (
	"context"

	"claimguard/contexts/rewards-settlement/claim-settlement/ports"
	"claimguard/internal/platform/coordination"
)

// RateLimiter exposes a platform fixed-window limiter through the claim
// settlement port.
type RateLimiter struct {
	limiter *coordination.FixedWindowLimiter
}

func NewRateLimiter(limiter *coordination.FixedWindowLimiter) RateLimiter {
	return RateLimiter{limiter: limiter}
}

func (r RateLimiter) Allow(ctx context.Context, subject string) (ports.RateDecision, error) {
	decision, err := r.limiter.Allow(ctx, subject)
	if err != nil {
		return ports.RateDecision{}, err
	}
	return ports.RateDecision{
		Allowed:    decision.Allowed,
		RetryAfter: decision.RetryAfter,
	}, nil
}
