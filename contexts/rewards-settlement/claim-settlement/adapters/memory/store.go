package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	application "claimguard/contexts/rewards-settlement/claim-settlement/application"
	"claimguard/contexts/rewards-settlement/claim-settlement/domain/entities"
	domainerrors "claimguard/contexts/rewards-settlement/claim-settlement/domain/errors"
	"claimguard/contexts/rewards-settlement/claim-settlement/ports"

	"github.com/holiman/uint256"
)

// Store is an in-memory ledger for local runtime and tests. One mutex makes
// every method a single atomic step, matching the conditional updates the
// Postgres adapter relies on.
type Store struct {
	mu          sync.Mutex
	claims      map[string]entities.Claim
	byIdempoKey map[string]string
	outbox      map[string]ports.OutboxMessage
	outboxOrder []string
	outboxSent  map[string]time.Time
	sequence    uint64
	clock       ports.Clock
	logger      *slog.Logger
}

func NewStore(clock ports.Clock, logger *slog.Logger) *Store {
	return &Store{
		claims:      make(map[string]entities.Claim),
		byIdempoKey: make(map[string]string),
		outbox:      make(map[string]ports.OutboxMessage),
		outboxOrder: make([]string, 0),
		outboxSent:  make(map[string]time.Time),
		clock:       clock,
		logger:      application.ResolveLogger(logger),
	}
}

func (s *Store) InsertPending(_ context.Context, claim entities.Claim) (entities.Claim, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byIdempoKey[claim.IdempoKey]; ok {
		return cloneClaim(s.claims[id]), false, nil
	}
	if _, ok := s.claims[claim.ID]; ok {
		return entities.Claim{}, false, domainerrors.ErrRepositoryInvariantBroke
	}
	claim.Status = entities.ClaimStatusPending
	claim.LeaseAt = nil
	claim.ProcessedAt = nil
	s.claims[claim.ID] = cloneClaim(claim)
	s.byIdempoKey[claim.IdempoKey] = claim.ID
	return cloneClaim(claim), true, nil
}

func (s *Store) LeaseNext(_ context.Context, limit int, now time.Time) ([]entities.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		return nil, nil
	}
	pending := make([]entities.Claim, 0)
	for _, claim := range s.claims {
		if claim.Status == entities.ClaimStatusPending {
			pending = append(pending, claim)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].ClaimedAt.Equal(pending[j].ClaimedAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].ClaimedAt.Before(pending[j].ClaimedAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}

	leaseAt := now.UTC()
	leased := make([]entities.Claim, 0, len(pending))
	for _, claim := range pending {
		claim.Status = entities.ClaimStatusProcessing
		claim.LeaseAt = &leaseAt
		claim.UpdatedAt = leaseAt
		s.claims[claim.ID] = cloneClaim(claim)
		leased = append(leased, cloneClaim(claim))
	}
	return leased, nil
}

func (s *Store) MarkCompleted(_ context.Context, mark ports.TerminalMark) (entities.Claim, error) {
	return s.finalize(mark, entities.ClaimStatusCompleted)
}

func (s *Store) MarkFailed(_ context.Context, mark ports.TerminalMark) (entities.Claim, error) {
	return s.finalize(mark, entities.ClaimStatusFailed)
}

func (s *Store) finalize(mark ports.TerminalMark, status entities.ClaimStatus) (entities.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claim, ok := s.claims[mark.ClaimID]
	if !ok {
		return entities.Claim{}, domainerrors.ErrClaimNotFound
	}
	if !claim.HoldsLease(mark.LeaseAt) {
		return entities.Claim{}, domainerrors.ErrLeaseLost
	}

	at := mark.At.UTC()
	claim.Status = status
	claim.Attempts++
	claim.ProcessedAt = &at
	claim.UpdatedAt = at
	claim.TxRef = mark.TxRef
	claim.Error = mark.Error

	envelope, err := application.BuildSettlementEnvelope(mark.EventID, claim, at)
	if err != nil {
		return entities.Claim{}, err
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return entities.Claim{}, err
	}
	if _, exists := s.outbox[mark.EventID]; exists {
		return entities.Claim{}, domainerrors.ErrRepositoryInvariantBroke
	}

	s.claims[claim.ID] = cloneClaim(claim)
	s.outbox[mark.EventID] = ports.OutboxMessage{
		OutboxID:     mark.EventID,
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      payload,
		CreatedAt:    at,
	}
	s.outboxOrder = append(s.outboxOrder, mark.EventID)
	return cloneClaim(claim), nil
}

func (s *Store) Requeue(
	_ context.Context,
	claimID string,
	leaseAt time.Time,
	reason string,
	countAttempt bool,
	at time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	claim, ok := s.claims[claimID]
	if !ok {
		return domainerrors.ErrClaimNotFound
	}
	if !claim.HoldsLease(leaseAt) {
		return domainerrors.ErrLeaseLost
	}
	claim.Status = entities.ClaimStatusPending
	claim.LeaseAt = nil
	claim.Error = reason
	claim.UpdatedAt = at.UTC()
	if countAttempt {
		claim.Attempts++
	}
	s.claims[claimID] = cloneClaim(claim)
	return nil
}

func (s *Store) ListStaleLeases(_ context.Context, leasedBefore time.Time, limit int) ([]entities.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]entities.Claim, 0)
	for _, claim := range s.claims {
		if claim.Status != entities.ClaimStatusProcessing || claim.ProcessedAt != nil || claim.LeaseAt == nil {
			continue
		}
		if claim.LeaseAt.Before(leasedBefore) {
			items = append(items, cloneClaim(claim))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].LeaseAt.Before(*items[j].LeaseAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) RecoverLease(_ context.Context, claimID string, leaseAt time.Time, annotation string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claim, ok := s.claims[claimID]
	if !ok || !claim.HoldsLease(leaseAt) || claim.ProcessedAt != nil {
		return false, nil
	}
	claim.Status = entities.ClaimStatusPending
	claim.LeaseAt = nil
	claim.Error = annotation
	claim.UpdatedAt = at.UTC()
	s.claims[claimID] = cloneClaim(claim)
	return true, nil
}

func (s *Store) FindByIdempoKey(_ context.Context, idempoKey string) (entities.Claim, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byIdempoKey[idempoKey]
	if !ok {
		return entities.Claim{}, false, nil
	}
	return cloneClaim(s.claims[id]), true, nil
}

func (s *Store) GetClaim(_ context.Context, claimID string) (entities.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claim, ok := s.claims[claimID]
	if !ok {
		return entities.Claim{}, domainerrors.ErrClaimNotFound
	}
	return cloneClaim(claim), nil
}

func (s *Store) SumReserved(_ context.Context, token string, from time.Time, to time.Time, ahead *ports.ReservationCursor) (uint256.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total uint256.Int
	for id, claim := range s.claims {
		if claim.Token != token || claim.LeaseAt == nil {
			continue
		}
		if claim.Status != entities.ClaimStatusProcessing && claim.Status != entities.ClaimStatusCompleted {
			continue
		}
		if claim.LeaseAt.Before(from) || !claim.LeaseAt.Before(to) {
			continue
		}
		if ahead != nil {
			if id == ahead.ClaimID {
				continue
			}
			if claim.Status == entities.ClaimStatusProcessing && !ahead.Ahead(*claim.LeaseAt, id) {
				continue
			}
		}
		if _, overflow := total.AddOverflow(&total, &claim.Amount); overflow {
			return uint256.Int{}, fmt.Errorf("reserved sum overflow for %s", token)
		}
	}
	return total, nil
}

func (s *Store) CountByStatus(_ context.Context) (map[entities.ClaimStatus]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[entities.ClaimStatus]int64, len(entities.AllStatuses))
	for _, status := range entities.AllStatuses {
		counts[status] = 0
	}
	for _, claim := range s.claims {
		counts[claim.Status]++
	}
	return counts, nil
}

func (s *Store) OldestProcessingLease(_ context.Context) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest time.Time
	found := false
	for _, claim := range s.claims {
		if claim.Status != entities.ClaimStatusProcessing || claim.LeaseAt == nil {
			continue
		}
		if !found || claim.LeaseAt.Before(oldest) {
			oldest = *claim.LeaseAt
			found = true
		}
	}
	return oldest, found, nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, limit)
	for _, id := range s.outboxOrder {
		if _, sent := s.outboxSent[id]; sent {
			continue
		}
		message := s.outbox[id]
		message.Payload = append([]byte(nil), message.Payload...)
		items = append(items, message)
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

func (s *Store) MarkOutboxSent(_ context.Context, outboxID string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.outbox[outboxID]; !ok {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	s.outboxSent[outboxID] = sentAt.UTC()
	return nil
}

func (s *Store) NewID(_ context.Context) (string, error) {
	n := atomic.AddUint64(&s.sequence, 1)
	return fmt.Sprintf("clm-%06d", n), nil
}

func (s *Store) Now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now().UTC()
}

// Claims returns every stored claim ordered by claimedAt.
func (s *Store) Claims() []entities.Claim {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]entities.Claim, 0, len(s.claims))
	for _, claim := range s.claims {
		items = append(items, cloneClaim(claim))
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ClaimedAt.Before(items[j].ClaimedAt)
	})
	return items
}

func cloneClaim(claim entities.Claim) entities.Claim {
	if claim.LeaseAt != nil {
		leaseAt := *claim.LeaseAt
		claim.LeaseAt = &leaseAt
	}
	if claim.ProcessedAt != nil {
		processedAt := *claim.ProcessedAt
		claim.ProcessedAt = &processedAt
	}
	return claim
}
