package flags

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/fluentora/fluentora-backend/internal/domain"
	"github.com/fluentora/fluentora-backend/internal/logger"
)

type FlagHistoryRepo interface {
	Create(ctx context.Context, tx *gorm.DB, entries []*types.FlagHistoryEntry) ([]*types.FlagHistoryEntry, error)
	ListByFlag(ctx context.Context, tx *gorm.DB, flagID uuid.UUID) ([]*types.FlagHistoryEntry, error)
}

type flagHistoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFlagHistoryRepo(db *gorm.DB, baseLog *logger.Logger) FlagHistoryRepo {
	repoLog := baseLog.With("repo", "FlagHistoryRepo")
	return &flagHistoryRepo{db: db, log: repoLog}
}

func (hr *flagHistoryRepo) Create(ctx context.Context, tx *gorm.DB, entries []*types.FlagHistoryEntry) ([]*types.FlagHistoryEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = hr.db
	}
	if len(entries) == 0 {
		return []*types.FlagHistoryEntry{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (hr *flagHistoryRepo) ListByFlag(ctx context.Context, tx *gorm.DB, flagID uuid.UUID) ([]*types.FlagHistoryEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = hr.db
	}

	var results []*types.FlagHistoryEntry
	if err := transaction.WithContext(ctx).
		Where("flag_id = ?", flagID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
