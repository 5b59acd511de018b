package event

import (
	"context"
	"time"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOutboxRepository stores outbox entries in the outbox_entries table
type GormOutboxRepository struct {
	db *gorm.DB
}

func NewGormOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db}
}

func (r *GormOutboxRepository) rows(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.OutboxEntryModel{})
}

// due matches entries never attempted plus failed ones whose backoff elapsed.
// Pending entries carry no next_retry_at.
func due(now time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("status IN ? AND (next_retry_at IS NULL OR next_retry_at <= ?)",
			[]shared.OutboxStatus{shared.OutboxStatusPending, shared.OutboxStatusFailed}, now)
	}
}

func (r *GormOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	out := make([]*models.OutboxEntryModel, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.OutboxEntryModelFromDomain(e))
	}
	return r.db.WithContext(ctx).Create(out).Error
}

// ClaimBatch reads due entries oldest first with FOR UPDATE SKIP LOCKED and
// flips them to PROCESSING in the same transaction. A relay that loses the
// race sees none of the rows another relay holds.
func (r *GormOutboxRepository) ClaimBatch(ctx context.Context, now time.Time, limit int) ([]*shared.OutboxEntry, error) {
	var found []models.OutboxEntryModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Scopes(due(now)).
			Order("created_at").
			Limit(limit).
			Find(&found).Error
		if err != nil || len(found) == 0 {
			return err
		}

		ids := make([]uuid.UUID, 0, len(found))
		for _, m := range found {
			ids = append(ids, m.ID)
		}
		return tx.Model(&models.OutboxEntryModel{}).
			Where("id IN ?", ids).
			Updates(map[string]any{"status": shared.OutboxStatusProcessing, "updated_at": now}).Error
	})
	if err != nil {
		return nil, err
	}

	claimed := make([]*shared.OutboxEntry, 0, len(found))
	for i := range found {
		e := found[i].ToDomain()
		e.Status, e.UpdatedAt = shared.OutboxStatusProcessing, now
		claimed = append(claimed, e)
	}
	return claimed, nil
}

// Update writes back the delivery fields; identity and payload never change
func (r *GormOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	return r.rows(ctx).Where("id = ?", entry.ID).Updates(map[string]any{
		"status":        entry.Status,
		"retry_count":   entry.RetryCount,
		"last_error":    entry.LastError,
		"next_retry_at": entry.NextRetryAt,
		"processed_at":  entry.ProcessedAt,
		"updated_at":    entry.UpdatedAt,
	}).Error
}

func (r *GormOutboxRepository) DeleteSentBefore(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", shared.OutboxStatusSent, before).
		Delete(&models.OutboxEntryModel{})
	return res.RowsAffected, res.Error
}

func (r *GormOutboxRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) (*shared.OutboxEntry, error) {
	var m models.OutboxEntryModel
	if err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&m).Error; err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

// CountByStatus feeds the outbox backlog gauge
func (r *GormOutboxRepository) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	var groups []struct {
		Status shared.OutboxStatus
		N      int64
	}
	if err := r.rows(ctx).Select("status, count(*) AS n").Group("status").Scan(&groups).Error; err != nil {
		return nil, err
	}
	counts := make(map[shared.OutboxStatus]int64, len(groups))
	for _, g := range groups {
		counts[g.Status] = g.N
	}
	return counts, nil
}

var _ shared.OutboxRepository = (*GormOutboxRepository)(nil)
