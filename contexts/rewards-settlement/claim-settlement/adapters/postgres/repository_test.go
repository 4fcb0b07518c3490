package postgresadapter

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"claimguard/contexts/rewards-settlement/claim-settlement/domain/entities"
	domainerrors "claimguard/contexts/rewards-settlement/claim-settlement/domain/errors"
	"claimguard/contexts/rewards-settlement/claim-settlement/ports"
	"claimguard/internal/platform/db"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// newIntegrationRepository migrates into a throwaway schema so runs never see
// each other's rows.
func newIntegrationRepository(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	ctx := context.Background()
	schema := fmt.Sprintf("claimguard_test_%d", time.Now().UnixNano())

	admin, err := db.Connect(ctx, dsn, db.PoolOptions{MaxOpenConns: 1})
	require.NoError(t, err)
	require.NoError(t, admin.DB.Exec("CREATE SCHEMA "+schema).Error)
	t.Cleanup(func() {
		_ = admin.DB.Exec("DROP SCHEMA " + schema + " CASCADE").Error
		_ = admin.Close()
	})

	pg, err := db.Connect(ctx, withSearchPath(dsn, schema), db.DefaultPoolOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Close() })

	repo := NewRepository(pg.DB, nil)
	require.NoError(t, repo.Migrate(ctx))
	return repo
}

func withSearchPath(dsn string, schema string) string {
	if strings.Contains(dsn, "://") {
		separator := "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
		return dsn + separator + "search_path=" + schema
	}
	return dsn + " search_path=" + schema
}

func integrationClaim(i int, amount uint64, claimedAt time.Time) entities.Claim {
	return entities.NewPendingClaim(
		fmt.Sprintf("clm-%04d", i),
		"0x00000000000000000000000000000000000000cc",
		*uint256.NewInt(amount),
		"usdc",
		fmt.Sprintf("quest:%d", i),
		fmt.Sprintf("0x%064x", i),
		claimedAt,
	)
}

func TestRepositoryInsertPendingCollapsesOnIdempoKey(t *testing.T) {
	repo := newIntegrationRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	first, created, err := repo.InsertPending(ctx, integrationClaim(1, 10, now))
	require.NoError(t, err)
	require.True(t, created)

	replay := integrationClaim(1, 10, now)
	replay.ID = "clm-replay"
	existing, created, err := repo.InsertPending(ctx, replay)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, existing.ID)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), counts[entities.ClaimStatusPending])
}

func TestRepositoryConcurrentLeasesNeverOverlap(t *testing.T) {
	repo := newIntegrationRepository(t)
	ctx := context.Background()
	start := time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)

	const total = 40
	for i := 0; i < total; i++ {
		_, created, err := repo.InsertPending(ctx, integrationClaim(i, 1, start.Add(time.Duration(i)*time.Millisecond)))
		require.NoError(t, err)
		require.True(t, created)
	}

	var (
		mu     sync.Mutex
		seen   = make(map[string]int)
		wg     sync.WaitGroup
		errsCh = make(chan error, 4)
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				leased, err := repo.LeaseNext(ctx, 5, time.Now().UTC().Truncate(time.Microsecond))
				if err != nil {
					errsCh <- err
					return
				}
				if len(leased) == 0 {
					return
				}
				mu.Lock()
				for _, claim := range leased {
					seen[claim.ID]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(errsCh)
	for err := range errsCh {
		require.NoError(t, err)
	}

	require.Len(t, seen, total)
	for id, count := range seen {
		require.Equalf(t, 1, count, "claim %s leased %d times", id, count)
	}
}

func TestRepositoryLeaseFencing(t *testing.T) {
	repo := newIntegrationRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	_, _, err := repo.InsertPending(ctx, integrationClaim(1, 10, now))
	require.NoError(t, err)
	leaseAt := now.Add(time.Second)
	leased, err := repo.LeaseNext(ctx, 1, leaseAt)
	require.NoError(t, err)
	require.Len(t, leased, 1)
	require.True(t, leased[0].LeaseAt.Equal(leaseAt))

	stale := ports.TerminalMark{ClaimID: "clm-0001", LeaseAt: leaseAt.Add(-time.Microsecond), TxRef: "0x1", At: leaseAt, EventID: "evt-stale"}
	_, err = repo.MarkCompleted(ctx, stale)
	require.ErrorIs(t, err, domainerrors.ErrLeaseLost)

	recovered, err := repo.RecoverLease(ctx, "clm-0001", leaseAt.Add(time.Microsecond), entities.ReasonLeaseTimeoutRecovered, leaseAt)
	require.NoError(t, err)
	require.False(t, recovered)

	completed, err := repo.MarkCompleted(ctx, ports.TerminalMark{ClaimID: "clm-0001", LeaseAt: leaseAt, TxRef: "0x1", At: leaseAt, EventID: "evt-1"})
	require.NoError(t, err)
	require.Equal(t, entities.ClaimStatusCompleted, completed.Status)
	require.Equal(t, 1, completed.Attempts)

	recovered, err = repo.RecoverLease(ctx, "clm-0001", leaseAt, entities.ReasonLeaseTimeoutRecovered, leaseAt)
	require.NoError(t, err)
	require.False(t, recovered, "terminal rows are never recovered")

	outbox, err := repo.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, outbox, 1)
	require.Equal(t, "evt-1", outbox[0].OutboxID)
}

func TestRepositorySumReservedOrdersLeases(t *testing.T) {
	repo := newIntegrationRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	for i := 1; i <= 3; i++ {
		_, _, err := repo.InsertPending(ctx, integrationClaim(i, uint64(i)*100, now))
		require.NoError(t, err)
	}
	leaseAt := now
	leased, err := repo.LeaseNext(ctx, 3, leaseAt)
	require.NoError(t, err)
	require.Len(t, leased, 3)

	all, err := repo.SumReserved(ctx, "usdc", from, to, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(600), all.Uint64())

	ahead, err := repo.SumReserved(ctx, "usdc", from, to, &ports.ReservationCursor{LeaseAt: leaseAt, ClaimID: "clm-0002"})
	require.NoError(t, err)
	require.Equal(t, uint64(100), ahead.Uint64())

	_, err = repo.MarkCompleted(ctx, ports.TerminalMark{ClaimID: "clm-0003", LeaseAt: leaseAt, TxRef: "0x3", At: leaseAt, EventID: "evt-3"})
	require.NoError(t, err)
	first, err := repo.SumReserved(ctx, "usdc", from, to, &ports.ReservationCursor{LeaseAt: leaseAt, ClaimID: "clm-0001"})
	require.NoError(t, err)
	require.Equal(t, uint64(300), first.Uint64())
}
