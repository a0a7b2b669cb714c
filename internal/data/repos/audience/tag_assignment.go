package audience

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/fluentora/fluentora-backend/internal/domain"
	"github.com/fluentora/fluentora-backend/internal/logger"
)

type TagAssignmentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, assignments []*types.TagAssignment) ([]*types.TagAssignment, error)
	Delete(ctx context.Context, tx *gorm.DB, tagID, userID uuid.UUID) error
	TagNamesByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) (map[uuid.UUID][]string, error)
}

type tagAssignmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTagAssignmentRepo(db *gorm.DB, baseLog *logger.Logger) TagAssignmentRepo {
	repoLog := baseLog.With("repo", "TagAssignmentRepo")
	return &tagAssignmentRepo{db: db, log: repoLog}
}

func (ar *tagAssignmentRepo) Create(ctx context.Context, tx *gorm.DB, assignments []*types.TagAssignment) ([]*types.TagAssignment, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	if len(assignments) == 0 {
		return []*types.TagAssignment{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}

func (ar *tagAssignmentRepo) Delete(ctx context.Context, tx *gorm.DB, tagID, userID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	return transaction.WithContext(ctx).
		Where("tag_id = ? AND user_id = ?", tagID, userID).
		Delete(&types.TagAssignment{}).Error
}

type tagNameRow struct {
	UserID uuid.UUID `gorm:"column:user_id"`
	Name   string    `gorm:"column:name"`
}

func (ar *tagAssignmentRepo) TagNamesByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) (map[uuid.UUID][]string, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}

	result := make(map[uuid.UUID][]string, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	var rows []tagNameRow
	if err := transaction.WithContext(ctx).
		Table("tag_assignment").
		Select("tag_assignment.user_id, tag.name").
		Joins("JOIN tag ON tag.id = tag_assignment.tag_id").
		Where("tag_assignment.user_id IN ?", userIDs).
		Order("tag.name ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.UserID] = append(result[row.UserID], row.Name)
	}
	return result, nil
}
