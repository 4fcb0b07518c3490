package coordination

import (
	"context"
	"errors"
	"strings"
	"time"
)

const rateLimitKeyPrefix = "ratelimit:"

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed    bool
	Count      int64
	Limit      int64
	RetryAfter time.Duration
}

// FixedWindowLimiter counts requests per (action, subject). The first hit in a
// window sets the counter expiry to the window length, so the window starts
// at the first request rather than at a wall-clock boundary.
type FixedWindowLimiter struct {
	store  Store
	action string
	limit  int64
	window time.Duration
}

func NewFixedWindowLimiter(store Store, action string, limit int64, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		store:  store,
		action: action,
		limit:  limit,
		window: window,
	}
}

func (l *FixedWindowLimiter) Action() string {
	return l.action
}

// Allow counts one request for subject. A non-positive limit disables the check.
func (l *FixedWindowLimiter) Allow(ctx context.Context, subject string) (Decision, error) {
	if l.limit <= 0 {
		return Decision{Allowed: true}, nil
	}
	subject = strings.ToLower(strings.TrimSpace(subject))
	if subject == "" {
		return Decision{}, errors.New("rate limit subject is required")
	}

	key := rateLimitKeyPrefix + l.action + ":" + subject
	count, err := l.store.Increment(ctx, key, l.window)
	if err != nil {
		return Decision{}, err
	}
	decision := Decision{
		Allowed: count <= l.limit,
		Count:   count,
		Limit:   l.limit,
	}
	if decision.Allowed {
		return decision, nil
	}

	ttl, err := l.store.TTL(ctx, key)
	switch {
	case errors.Is(err, ErrKeyNotFound):
		ttl = 0
	case err != nil:
		return Decision{}, err
	case ttl < 0:
		ttl = l.window
	}
	decision.RetryAfter = ttl
	return decision, nil
}
