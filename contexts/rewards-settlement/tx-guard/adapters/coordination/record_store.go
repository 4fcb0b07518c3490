package coordinationadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"claimguard/contexts/rewards-settlement/tx-guard/domain/entities"
	"claimguard/contexts/rewards-settlement/tx-guard/ports"
	"claimguard/internal/platform/coordination"

	"github.com/holiman/uint256"
)

const (
	recordKeyPrefix  = "txguard:rec:"
	markSentAttempts = 3
)

var errRecordExists = errors.New("guard record already exists")

type recordDocument struct {
	LockKey     string    `json:"lock_key"`
	ResourceKey string    `json:"resource_key"`
	Wallet      string    `json:"wallet"`
	Mode        string    `json:"mode"`
	CountryID   int64     `json:"country_id,omitempty"`
	AmountWei   string    `json:"amount_wei,omitempty"`
	IP          string    `json:"ip,omitempty"`
	Status      string    `json:"status"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// RecordStore keeps guard records as JSON documents in the coordination
// store next to the locks they describe.
type RecordStore struct {
	store coordination.Store
}

func NewRecordStore(store coordination.Store) RecordStore {
	return RecordStore{store: store}
}

func (s RecordStore) Save(ctx context.Context, record entities.Record, ttl time.Duration) error {
	encoded, err := encodeRecord(record)
	if err != nil {
		return err
	}
	ok, err := s.store.SetIfAbsent(ctx, recordKeyPrefix+record.LockKey, encoded, ttl)
	if err != nil {
		return err
	}
	if !ok {
		return errRecordExists
	}
	return nil
}

func (s RecordStore) Load(ctx context.Context, lockKey string) (entities.Record, bool, error) {
	raw, ok, err := s.store.Get(ctx, recordKeyPrefix+lockKey)
	if err != nil || !ok {
		return entities.Record{}, false, err
	}
	record, err := decodeRecord(raw)
	if err != nil {
		return entities.Record{}, false, err
	}
	return record, true, nil
}

// MarkSent swaps the stored document only if it is unchanged since it was
// read, retrying a few times under contention.
func (s RecordStore) MarkSent(ctx context.Context, lockKey string) (entities.Record, bool, error) {
	key := recordKeyPrefix + lockKey
	for i := 0; i < markSentAttempts; i++ {
		raw, ok, err := s.store.Get(ctx, key)
		if err != nil || !ok {
			return entities.Record{}, false, err
		}
		record, err := decodeRecord(raw)
		if err != nil {
			return entities.Record{}, false, err
		}
		if record.IsSent() {
			return record, true, nil
		}

		sent := record.MarkSent()
		encoded, err := encodeRecord(sent)
		if err != nil {
			return entities.Record{}, false, err
		}
		swapped, err := s.store.CompareAndSwap(ctx, key, raw, encoded)
		if err != nil {
			return entities.Record{}, false, err
		}
		if swapped {
			return sent, true, nil
		}
	}
	return entities.Record{}, false, fmt.Errorf("mark sent %s: record changed concurrently", lockKey)
}

func (s RecordStore) Delete(ctx context.Context, lockKey string) error {
	return s.store.Delete(ctx, recordKeyPrefix+lockKey)
}

func encodeRecord(record entities.Record) (string, error) {
	doc := recordDocument{
		LockKey:     record.LockKey,
		ResourceKey: record.ResourceKey,
		Wallet:      record.Wallet,
		Mode:        string(record.Mode),
		CountryID:   record.CountryID,
		IP:          record.IP,
		Status:      string(record.Status),
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	if !record.AmountWei.IsZero() {
		doc.AmountWei = record.AmountWei.Dec()
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func decodeRecord(raw string) (entities.Record, error) {
	var doc recordDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return entities.Record{}, fmt.Errorf("decode guard record: %w", err)
	}
	record := entities.Record{
		LockKey:     doc.LockKey,
		ResourceKey: doc.ResourceKey,
		Wallet:      doc.Wallet,
		Mode:        entities.Mode(doc.Mode),
		CountryID:   doc.CountryID,
		IP:          doc.IP,
		Status:      entities.Status(doc.Status),
		ExpiresAt:   doc.ExpiresAt,
	}
	if doc.AmountWei != "" {
		amount, err := uint256.FromDecimal(doc.AmountWei)
		if err != nil {
			return entities.Record{}, fmt.Errorf("decode guard amount: %w", err)
		}
		record.AmountWei = *amount
	}
	return record, nil
}

var _ ports.RecordStore = RecordStore{}
