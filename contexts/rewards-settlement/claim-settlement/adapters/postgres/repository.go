package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	application "claimguard/contexts/rewards-settlement/claim-settlement/application"
	"claimguard/contexts/rewards-settlement/claim-settlement/domain/entities"
	domainerrors "claimguard/contexts/rewards-settlement/claim-settlement/domain/errors"
	"claimguard/contexts/rewards-settlement/claim-settlement/ports"

	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates settlement_claims and settlement_outbox with their indexes.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&claimModel{}, &outboxModel{})
}

func (r *Repository) InsertPending(ctx context.Context, claim entities.Claim) (entities.Claim, bool, error) {
	row := claimModelFromEntity(claim)
	row.Status = string(entities.ClaimStatusPending)
	row.LeaseAt = nil
	row.ProcessedAt = nil

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "idempo_key"}},
			DoNothing: true,
		}).
		Create(&row)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return entities.Claim{}, false, domainerrors.ErrRepositoryInvariantBroke
		}
		return entities.Claim{}, false, result.Error
	}
	if result.RowsAffected > 0 {
		created, err := row.toEntity()
		if err != nil {
			return entities.Claim{}, false, err
		}
		return created, true, nil
	}

	existing, found, err := r.FindByIdempoKey(ctx, claim.IdempoKey)
	if err != nil {
		return entities.Claim{}, false, err
	}
	if !found {
		return entities.Claim{}, false, domainerrors.ErrRepositoryInvariantBroke
	}
	return existing, false, nil
}

func (r *Repository) LeaseNext(ctx context.Context, limit int, now time.Time) ([]entities.Claim, error) {
	if limit <= 0 {
		return nil, nil
	}
	leaseAt := now.UTC()
	leased := make([]entities.Claim, 0, limit)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []claimModel
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", string(entities.ClaimStatusPending)).
			Order("claimed_at ASC").
			Order("id ASC").
			Limit(limit).
			Find(&rows).
			Error; err != nil {
			return err
		}

		for _, row := range rows {
			result := tx.
				Model(&claimModel{}).
				Where("id = ? AND status = ?", row.ID, string(entities.ClaimStatusPending)).
				Updates(map[string]any{
					"status":     string(entities.ClaimStatusProcessing),
					"lease_at":   leaseAt,
					"updated_at": leaseAt,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				continue
			}
			row.Status = string(entities.ClaimStatusProcessing)
			row.LeaseAt = &leaseAt
			row.UpdatedAt = leaseAt
			claim, err := row.toEntity()
			if err != nil {
				return err
			}
			leased = append(leased, claim)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return leased, nil
}

func (r *Repository) MarkCompleted(ctx context.Context, mark ports.TerminalMark) (entities.Claim, error) {
	return r.finalize(ctx, mark, entities.ClaimStatusCompleted)
}

func (r *Repository) MarkFailed(ctx context.Context, mark ports.TerminalMark) (entities.Claim, error) {
	return r.finalize(ctx, mark, entities.ClaimStatusFailed)
}

func (r *Repository) finalize(ctx context.Context, mark ports.TerminalMark, status entities.ClaimStatus) (entities.Claim, error) {
	at := mark.At.UTC()
	var updated entities.Claim

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Model(&claimModel{}).
			Where("id = ? AND status = ? AND lease_at = ?", mark.ClaimID, string(entities.ClaimStatusProcessing), mark.LeaseAt.UTC()).
			Updates(map[string]any{
				"status":       string(status),
				"attempts":     gorm.Expr("attempts + 1"),
				"processed_at": at,
				"tx_ref":       mark.TxRef,
				"error":        mark.Error,
				"updated_at":   at,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return r.missOrLeaseLost(tx, mark.ClaimID)
		}

		var row claimModel
		if err := tx.Where("id = ?", mark.ClaimID).First(&row).Error; err != nil {
			return err
		}
		claim, err := row.toEntity()
		if err != nil {
			return err
		}

		envelope, err := application.BuildSettlementEnvelope(mark.EventID, claim, at)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(envelope)
		if err != nil {
			return err
		}
		outboxRow := outboxModel{
			OutboxID:     mark.EventID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      payload,
			Status:       outboxStatusPending,
			CreatedAt:    at,
		}
		if err := tx.Create(&outboxRow).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrRepositoryInvariantBroke
			}
			return err
		}
		updated = claim
		return nil
	})
	if err != nil {
		return entities.Claim{}, err
	}
	return updated, nil
}

func (r *Repository) Requeue(
	ctx context.Context,
	claimID string,
	leaseAt time.Time,
	reason string,
	countAttempt bool,
	at time.Time,
) error {
	updates := map[string]any{
		"status":     string(entities.ClaimStatusPending),
		"lease_at":   nil,
		"error":      reason,
		"updated_at": at.UTC(),
	}
	if countAttempt {
		updates["attempts"] = gorm.Expr("attempts + 1")
	}
	result := r.db.WithContext(ctx).
		Model(&claimModel{}).
		Where("id = ? AND status = ? AND lease_at = ?", claimID, string(entities.ClaimStatusProcessing), leaseAt.UTC()).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.missOrLeaseLost(r.db.WithContext(ctx), claimID)
	}
	return nil
}

func (r *Repository) ListStaleLeases(ctx context.Context, leasedBefore time.Time, limit int) ([]entities.Claim, error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []claimModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND lease_at < ? AND processed_at IS NULL", string(entities.ClaimStatusProcessing), leasedBefore.UTC()).
		Order("lease_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	return toEntities(rows)
}

func (r *Repository) RecoverLease(ctx context.Context, claimID string, leaseAt time.Time, annotation string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&claimModel{}).
		Where("id = ? AND status = ? AND lease_at = ? AND processed_at IS NULL",
			claimID, string(entities.ClaimStatusProcessing), leaseAt.UTC()).
		Updates(map[string]any{
			"status":     string(entities.ClaimStatusPending),
			"lease_at":   nil,
			"error":      annotation,
			"updated_at": at.UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) FindByIdempoKey(ctx context.Context, idempoKey string) (entities.Claim, bool, error) {
	var row claimModel
	err := r.db.WithContext(ctx).
		Where("idempo_key = ?", idempoKey).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Claim{}, false, nil
		}
		return entities.Claim{}, false, err
	}
	claim, err := row.toEntity()
	if err != nil {
		return entities.Claim{}, false, err
	}
	return claim, true, nil
}

func (r *Repository) GetClaim(ctx context.Context, claimID string) (entities.Claim, error) {
	var row claimModel
	err := r.db.WithContext(ctx).
		Where("id = ?", claimID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Claim{}, domainerrors.ErrClaimNotFound
		}
		return entities.Claim{}, err
	}
	claim, err := row.toEntity()
	return claim, err
}

func (r *Repository) SumReserved(ctx context.Context, token string, from time.Time, to time.Time, ahead *ports.ReservationCursor) (uint256.Int, error) {
	var total string
	tx := r.db.WithContext(ctx).
		Model(&claimModel{}).
		Select("COALESCE(SUM(amount), 0)::text").
		Where("token = ? AND status IN ? AND lease_at >= ? AND lease_at < ?",
			token,
			[]string{string(entities.ClaimStatusProcessing), string(entities.ClaimStatusCompleted)},
			from.UTC(),
			to.UTC(),
		)
	if ahead != nil {
		leaseAt := ahead.LeaseAt.UTC()
		tx = tx.
			Where("id <> ?", ahead.ClaimID).
			Where(`(status = ? OR lease_at < ? OR (lease_at = ? AND id COLLATE "C" < ?))`,
				string(entities.ClaimStatusCompleted),
				leaseAt,
				leaseAt,
				ahead.ClaimID,
			)
	}
	if err := tx.Scan(&total).Error; err != nil {
		return uint256.Int{}, err
	}
	value, err := uint256.FromDecimal(total)
	if err != nil {
		return uint256.Int{}, fmt.Errorf("parse reserved sum %q: %w", total, err)
	}
	return *value, nil
}

func (r *Repository) CountByStatus(ctx context.Context) (map[entities.ClaimStatus]int64, error) {
	type statusCount struct {
		Status string
		Total  int64
	}
	var rows []statusCount
	if err := r.db.WithContext(ctx).
		Model(&claimModel{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).
		Error; err != nil {
		return nil, err
	}

	counts := make(map[entities.ClaimStatus]int64, len(entities.AllStatuses))
	for _, status := range entities.AllStatuses {
		counts[status] = 0
	}
	for _, row := range rows {
		counts[entities.ClaimStatus(row.Status)] = row.Total
	}
	return counts, nil
}

func (r *Repository) OldestProcessingLease(ctx context.Context) (time.Time, bool, error) {
	var row claimModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND lease_at IS NOT NULL", string(entities.ClaimStatusProcessing)).
		Order("lease_at ASC").
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return row.LeaseAt.UTC(), true, nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toPort())
	}
	return items, nil
}

func (r *Repository) MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"status":  outboxStatusSent,
			"sent_at": sentAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	return nil
}

func (r *Repository) missOrLeaseLost(tx *gorm.DB, claimID string) error {
	var count int64
	if err := tx.Model(&claimModel{}).Where("id = ?", claimID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domainerrors.ErrClaimNotFound
	}
	return domainerrors.ErrLeaseLost
}

type claimModel struct {
	ID          string     `gorm:"column:id;primaryKey"`
	Wallet      string     `gorm:"column:wallet;not null;index:settlement_claims_wallet"`
	Amount      string     `gorm:"column:amount;type:numeric(78,0);not null"`
	Token       string     `gorm:"column:token;not null;index:settlement_claims_token_lease,priority:1"`
	ClaimID     string     `gorm:"column:claim_id;not null"`
	IdempoKey   string     `gorm:"column:idempo_key;not null;uniqueIndex:settlement_claims_idempo_key"`
	Status      string     `gorm:"column:status;not null;index:settlement_claims_status_claimed,priority:1;index:settlement_claims_status_lease,priority:1"`
	Attempts    int        `gorm:"column:attempts;not null;default:0"`
	ClaimedAt   time.Time  `gorm:"column:claimed_at;not null;index:settlement_claims_status_claimed,priority:2"`
	LeaseAt     *time.Time `gorm:"column:lease_at;index:settlement_claims_status_lease,priority:2;index:settlement_claims_token_lease,priority:2"`
	ProcessedAt *time.Time `gorm:"column:processed_at"`
	TxRef       string     `gorm:"column:tx_ref"`
	Error       string     `gorm:"column:error"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
}

func (claimModel) TableName() string {
	return "settlement_claims"
}

func claimModelFromEntity(claim entities.Claim) claimModel {
	row := claimModel{
		ID:        claim.ID,
		Wallet:    claim.Wallet,
		Amount:    claim.AmountString(),
		Token:     claim.Token,
		ClaimID:   claim.ClaimID,
		IdempoKey: claim.IdempoKey,
		Status:    string(claim.Status),
		Attempts:  claim.Attempts,
		ClaimedAt: claim.ClaimedAt.UTC(),
		TxRef:     claim.TxRef,
		Error:     claim.Error,
		UpdatedAt: claim.UpdatedAt.UTC(),
	}
	if claim.LeaseAt != nil {
		leaseAt := claim.LeaseAt.UTC()
		row.LeaseAt = &leaseAt
	}
	if claim.ProcessedAt != nil {
		processedAt := claim.ProcessedAt.UTC()
		row.ProcessedAt = &processedAt
	}
	return row
}

func (m claimModel) toEntity() (entities.Claim, error) {
	amount, err := uint256.FromDecimal(m.Amount)
	if err != nil {
		return entities.Claim{}, fmt.Errorf("parse amount of claim %s: %w", m.ID, err)
	}
	claim := entities.Claim{
		ID:        m.ID,
		Wallet:    m.Wallet,
		Amount:    *amount,
		Token:     m.Token,
		ClaimID:   m.ClaimID,
		IdempoKey: m.IdempoKey,
		Status:    entities.ClaimStatus(m.Status),
		Attempts:  m.Attempts,
		ClaimedAt: m.ClaimedAt.UTC(),
		TxRef:     m.TxRef,
		Error:     m.Error,
		UpdatedAt: m.UpdatedAt.UTC(),
	}
	if m.LeaseAt != nil {
		leaseAt := m.LeaseAt.UTC()
		claim.LeaseAt = &leaseAt
	}
	if m.ProcessedAt != nil {
		processedAt := m.ProcessedAt.UTC()
		claim.ProcessedAt = &processedAt
	}
	return claim, nil
}

func toEntities(rows []claimModel) ([]entities.Claim, error) {
	items := make([]entities.Claim, 0, len(rows))
	for _, row := range rows {
		claim, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, claim)
	}
	return items, nil
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type;not null"`
	PartitionKey string     `gorm:"column:partition_key;not null"`
	Payload      []byte     `gorm:"column:payload;type:jsonb;not null"`
	Status       string     `gorm:"column:status;not null;index:settlement_outbox_status_created,priority:1"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null;index:settlement_outbox_status_created,priority:2"`
	SentAt       *time.Time `gorm:"column:sent_at"`
}

func (outboxModel) TableName() string {
	return "settlement_outbox"
}

func (m outboxModel) toPort() ports.OutboxMessage {
	return ports.OutboxMessage{
		OutboxID:     m.OutboxID,
		EventType:    m.EventType,
		PartitionKey: m.PartitionKey,
		Payload:      append([]byte(nil), m.Payload...),
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
