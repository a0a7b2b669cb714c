package flags

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/fluentora/fluentora-backend/internal/domain"
	"github.com/fluentora/fluentora-backend/internal/logger"
)

var ErrFlagNotFound = errors.New("feature flag not found")

type FlagRepo interface {
	Create(ctx context.Context, tx *gorm.DB, flag *types.FeatureFlag) (*types.FeatureFlag, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, flagIDs []uuid.UUID) ([]*types.FeatureFlag, error)
	GetByKeys(ctx context.Context, tx *gorm.DB, keys []string) ([]*types.FeatureFlag, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.FeatureFlag, error)
	Update(ctx context.Context, tx *gorm.DB, flagID uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, tx *gorm.DB, flagID uuid.UUID) error
}

type flagRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFlagRepo(db *gorm.DB, baseLog *logger.Logger) FlagRepo {
	repoLog := baseLog.With("repo", "FlagRepo")
	return &flagRepo{db: db, log: repoLog}
}

func (fr *flagRepo) Create(ctx context.Context, tx *gorm.DB, flag *types.FeatureFlag) (*types.FeatureFlag, error) {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}
	if err := transaction.WithContext(ctx).Create(flag).Error; err != nil {
		return nil, err
	}
	return flag, nil
}

func (fr *flagRepo) GetByIDs(ctx context.Context, tx *gorm.DB, flagIDs []uuid.UUID) ([]*types.FeatureFlag, error) {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}

	var results []*types.FeatureFlag
	if len(flagIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", flagIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (fr *flagRepo) GetByKeys(ctx context.Context, tx *gorm.DB, keys []string) ([]*types.FeatureFlag, error) {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}

	var results []*types.FeatureFlag
	if len(keys) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("key IN ?", keys).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (fr *flagRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.FeatureFlag, error) {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}

	var results []*types.FeatureFlag
	if err := transaction.WithContext(ctx).
		Order("key ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (fr *flagRepo) Update(ctx context.Context, tx *gorm.DB, flagID uuid.UUID, updates map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.FeatureFlag{}).
		Where("id = ?", flagID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrFlagNotFound
	}
	return nil
}

func (fr *flagRepo) Delete(ctx context.Context, tx *gorm.DB, flagID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}
	res := transaction.WithContext(ctx).Delete(&types.FeatureFlag{}, "id = ?", flagID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrFlagNotFound
	}
	return nil
}
