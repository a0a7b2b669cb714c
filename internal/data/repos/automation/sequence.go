package automation

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/fluentora/fluentora-backend/internal/domain"
	"github.com/fluentora/fluentora-backend/internal/logger"
)

var ErrSequenceNotFound = errors.New("sequence not found")

type SequenceRepo interface {
	Create(ctx context.Context, tx *gorm.DB, sequence *types.Sequence) (*types.Sequence, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, sequenceIDs []uuid.UUID) ([]*types.Sequence, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.Sequence, error)
	ListActiveByTrigger(ctx context.Context, tx *gorm.DB, trigger string) ([]*types.Sequence, error)
	Update(ctx context.Context, tx *gorm.DB, sequenceID uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, tx *gorm.DB, sequenceID uuid.UUID) error
	IncrementEnrollmentCount(ctx context.Context, tx *gorm.DB, sequenceID uuid.UUID) error
	IncrementCompletionCount(ctx context.Context, tx *gorm.DB, sequenceID uuid.UUID) error
}

type sequenceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSequenceRepo(db *gorm.DB, baseLog *logger.Logger) SequenceRepo {
	repoLog := baseLog.With("repo", "SequenceRepo")
	return &sequenceRepo{db: db, log: repoLog}
}

func (sr *sequenceRepo) Create(ctx context.Context, tx *gorm.DB, sequence *types.Sequence) (*types.Sequence, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	if err := transaction.WithContext(ctx).Create(sequence).Error; err != nil {
		return nil, err
	}
	return sequence, nil
}

func (sr *sequenceRepo) GetByIDs(ctx context.Context, tx *gorm.DB, sequenceIDs []uuid.UUID) ([]*types.Sequence, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	var results []*types.Sequence
	if len(sequenceIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", sequenceIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (sr *sequenceRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Sequence, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	var results []*types.Sequence
	if err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (sr *sequenceRepo) ListActiveByTrigger(ctx context.Context, tx *gorm.DB, trigger string) ([]*types.Sequence, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	var results []*types.Sequence
	if err := transaction.WithContext(ctx).
		Where("trigger = ? AND status = ?", trigger, types.SequenceStatusActive).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (sr *sequenceRepo) Update(ctx context.Context, tx *gorm.DB, sequenceID uuid.UUID, updates map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Sequence{}).
		Where("id = ?", sequenceID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSequenceNotFound
	}
	return nil
}

func (sr *sequenceRepo) Delete(ctx context.Context, tx *gorm.DB, sequenceID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	res := transaction.WithContext(ctx).Delete(&types.Sequence{}, "id = ?", sequenceID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSequenceNotFound
	}
	return nil
}

func (sr *sequenceRepo) IncrementEnrollmentCount(ctx context.Context, tx *gorm.DB, sequenceID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Sequence{}).
		Where("id = ?", sequenceID).
		Update("enrollment_count", gorm.Expr("enrollment_count + 1")).Error
}

func (sr *sequenceRepo) IncrementCompletionCount(ctx context.Context, tx *gorm.DB, sequenceID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Sequence{}).
		Where("id = ?", sequenceID).
		Update("completion_count", gorm.Expr("completion_count + 1")).Error
}
