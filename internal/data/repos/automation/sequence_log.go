package automation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/fluentora/fluentora-backend/internal/domain"
	"github.com/fluentora/fluentora-backend/internal/logger"
)

type SequenceLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, logs []*types.SequenceLog) ([]*types.SequenceLog, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, logIDs []uuid.UUID) ([]*types.SequenceLog, error)
	ListBySequence(ctx context.Context, tx *gorm.DB, sequenceID uuid.UUID) ([]*types.SequenceLog, error)
	StatusCounts(ctx context.Context, tx *gorm.DB, sequenceID uuid.UUID) (map[string]int64, error)
	MarkOpened(ctx context.Context, tx *gorm.DB, logID uuid.UUID, at time.Time) (bool, error)
	MarkClicked(ctx context.Context, tx *gorm.DB, logID uuid.UUID, at time.Time) (bool, error)
	MarkBounced(ctx context.Context, tx *gorm.DB, logID uuid.UUID, at time.Time) (bool, error)
}

type sequenceLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSequenceLogRepo(db *gorm.DB, baseLog *logger.Logger) SequenceLogRepo {
	repoLog := baseLog.With("repo", "SequenceLogRepo")
	return &sequenceLogRepo{db: db, log: repoLog}
}

func (lr *sequenceLogRepo) Create(ctx context.Context, tx *gorm.DB, logs []*types.SequenceLog) ([]*types.SequenceLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = lr.db
	}
	if len(logs) == 0 {
		return []*types.SequenceLog{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (lr *sequenceLogRepo) GetByIDs(ctx context.Context, tx *gorm.DB, logIDs []uuid.UUID) ([]*types.SequenceLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = lr.db
	}

	var results []*types.SequenceLog
	if len(logIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", logIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (lr *sequenceLogRepo) ListBySequence(ctx context.Context, tx *gorm.DB, sequenceID uuid.UUID) ([]*types.SequenceLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = lr.db
	}

	var results []*types.SequenceLog
	if err := transaction.WithContext(ctx).
		Where("sequence_id = ?", sequenceID).
		Order("sent_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

type statusCountRow struct {
	Status string `gorm:"column:status"`
	Count  int64  `gorm:"column:count"`
}

func (lr *sequenceLogRepo) StatusCounts(ctx context.Context, tx *gorm.DB, sequenceID uuid.UUID) (map[string]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = lr.db
	}

	var rows []statusCountRow
	if err := transaction.WithContext(ctx).
		Model(&types.SequenceLog{}).
		Select("status, COUNT(*) AS count").
		Where("sequence_id = ?", sequenceID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// MarkOpened transitions sent -> opened only; opens reported after a click
// are no-ops.
func (lr *sequenceLogRepo) MarkOpened(ctx context.Context, tx *gorm.DB, logID uuid.UUID, at time.Time) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = lr.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.SequenceLog{}).
		Where("id = ? AND status = ?", logID, types.LogStatusSent).
		Updates(map[string]any{
			"status":    types.LogStatusOpened,
			"opened_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (lr *sequenceLogRepo) MarkClicked(ctx context.Context, tx *gorm.DB, logID uuid.UUID, at time.Time) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = lr.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.SequenceLog{}).
		Where("id = ? AND status IN ?", logID,
			[]string{types.LogStatusSent, types.LogStatusOpened}).
		Updates(map[string]any{
			"status":     types.LogStatusClicked,
			"clicked_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (lr *sequenceLogRepo) MarkBounced(ctx context.Context, tx *gorm.DB, logID uuid.UUID, at time.Time) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = lr.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.SequenceLog{}).
		Where("id = ? AND status = ?", logID, types.LogStatusSent).
		Updates(map[string]any{
			"status":     types.LogStatusBounced,
			"bounced_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
