package audience

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/fluentora/fluentora-backend/internal/domain"
	"github.com/fluentora/fluentora-backend/internal/logger"
)

var ErrSegmentNotFound = errors.New("segment not found")

type SegmentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, segment *types.Segment) (*types.Segment, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, segmentIDs []uuid.UUID) ([]*types.Segment, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.Segment, error)
	UpdateMemberCount(ctx context.Context, tx *gorm.DB, segmentID uuid.UUID, memberCount int64, refreshedAt time.Time) error
	Delete(ctx context.Context, tx *gorm.DB, segmentID uuid.UUID) error
}

type segmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSegmentRepo(db *gorm.DB, baseLog *logger.Logger) SegmentRepo {
	repoLog := baseLog.With("repo", "SegmentRepo")
	return &segmentRepo{db: db, log: repoLog}
}

func (sr *segmentRepo) Create(ctx context.Context, tx *gorm.DB, segment *types.Segment) (*types.Segment, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	if err := transaction.WithContext(ctx).Create(segment).Error; err != nil {
		return nil, err
	}
	return segment, nil
}

func (sr *segmentRepo) GetByIDs(ctx context.Context, tx *gorm.DB, segmentIDs []uuid.UUID) ([]*types.Segment, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	var results []*types.Segment
	if len(segmentIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", segmentIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (sr *segmentRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Segment, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	var results []*types.Segment
	if err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (sr *segmentRepo) UpdateMemberCount(ctx context.Context, tx *gorm.DB, segmentID uuid.UUID, memberCount int64, refreshedAt time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Segment{}).
		Where("id = ?", segmentID).
		Updates(map[string]any{
			"member_count": memberCount,
			"refreshed_at": refreshedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSegmentNotFound
	}
	return nil
}

func (sr *segmentRepo) Delete(ctx context.Context, tx *gorm.DB, segmentID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	res := transaction.WithContext(ctx).Delete(&types.Segment{}, "id = ?", segmentID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSegmentNotFound
	}
	return nil
}
