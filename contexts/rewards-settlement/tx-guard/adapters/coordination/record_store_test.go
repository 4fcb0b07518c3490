package coordinationadapter

import (
	"context"
	"testing"
	"time"

	"claimguard/contexts/rewards-settlement/tx-guard/domain/entities"
	"claimguard/internal/platform/coordination"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time {
	return c.now
}

func TestRecordStoreRoundTripAndMarkSentKeepsTTL(t *testing.T) {
	clock := &stepClock{now: time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)}
	backend := coordination.NewMemoryStore(clock)
	store := NewRecordStore(backend)
	ctx := context.Background()

	amount, err := uint256.FromDecimal("1000000000000000000")
	require.NoError(t, err)
	record := entities.Record{
		LockKey:     "tok-1",
		ResourceKey: "txguard:0xab:buy:90:1000000000000000000",
		Wallet:      "0xab",
		Mode:        entities.ModeBuy,
		CountryID:   90,
		AmountWei:   *amount,
		Status:      entities.StatusHeld,
		ExpiresAt:   clock.now.Add(time.Minute),
	}
	require.NoError(t, store.Save(ctx, record, time.Minute))
	require.Error(t, store.Save(ctx, record, time.Minute))

	loaded, ok, err := store.Load(ctx, "tok-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, record.ResourceKey, loaded.ResourceKey)
	require.Equal(t, "1000000000000000000", loaded.AmountWei.Dec())
	require.Equal(t, entities.StatusHeld, loaded.Status)

	clock.now = clock.now.Add(20 * time.Second)
	sent, ok, err := store.MarkSent(ctx, "tok-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, entities.StatusSent, sent.Status)

	again, ok, err := store.MarkSent(ctx, "tok-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, again.IsSent())

	ttl, err := backend.TTL(ctx, "txguard:rec:tok-1")
	require.NoError(t, err)
	require.Equal(t, 40*time.Second, ttl)

	clock.now = clock.now.Add(40 * time.Second)
	_, ok, err = store.MarkSent(ctx, "tok-1")
	require.NoError(t, err)
	require.False(t, ok)
}
