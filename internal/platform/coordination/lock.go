package coordination

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const lockKeyPrefix = "lock:"

var ErrInvalidLockKey = errors.New("lock resource key is required")

// LockManager grants short-lived exclusive holds on resource keys. Refusal is
// immediate; callers decide whether to retry. Holds are best-effort: the
// store expiring a key or losing its data frees the resource.
type LockManager struct {
	store Store
}

func NewLockManager(store Store) *LockManager {
	return &LockManager{store: store}
}

// Acquire returns a fresh holder token when the resource was free.
func (m *LockManager) Acquire(ctx context.Context, resourceKey string, ttl time.Duration) (string, bool, error) {
	resourceKey = strings.TrimSpace(resourceKey)
	if resourceKey == "" {
		return "", false, ErrInvalidLockKey
	}
	token := uuid.NewString()
	ok, err := m.store.SetIfAbsent(ctx, lockKeyPrefix+resourceKey, token, ttl)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release deletes the hold only while holderToken still owns it. Releasing an
// expired or foreign hold is a no-op and reports false.
func (m *LockManager) Release(ctx context.Context, resourceKey string, holderToken string) (bool, error) {
	resourceKey = strings.TrimSpace(resourceKey)
	if resourceKey == "" || holderToken == "" {
		return false, nil
	}
	return m.store.CompareAndDelete(ctx, lockKeyPrefix+resourceKey, holderToken)
}

// Holder reports the current holder token for resourceKey, if any.
func (m *LockManager) Holder(ctx context.Context, resourceKey string) (string, bool, error) {
	return m.store.Get(ctx, lockKeyPrefix+strings.TrimSpace(resourceKey))
}
