package automation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	types "github.com/fluentora/fluentora-backend/internal/domain"
	"github.com/fluentora/fluentora-backend/internal/logger"
)

var ErrEnrollmentNotFound = errors.New("enrollment not found")

// IsUniqueViolation reports whether err is a postgres unique-constraint
// violation, e.g. the partial index guarding one live enrollment per
// (sequence_id, user_id).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type EnrollmentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, enrollment *types.Enrollment) (*types.Enrollment, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, enrollmentIDs []uuid.UUID) ([]*types.Enrollment, error)
	ListBySequence(ctx context.Context, tx *gorm.DB, sequenceID uuid.UUID) ([]*types.Enrollment, error)
	ListActive(ctx context.Context, tx *gorm.DB) ([]*types.Enrollment, error)
	HasLive(ctx context.Context, tx *gorm.DB, sequenceID, userID uuid.UUID) (bool, error)
	Claim(ctx context.Context, tx *gorm.DB, enrollmentID uuid.UUID) (bool, error)
	Release(ctx context.Context, tx *gorm.DB, enrollmentID uuid.UUID, currentStep int, lastStepAt *time.Time) error
	Complete(ctx context.Context, tx *gorm.DB, enrollmentID uuid.UUID, completedAt time.Time) (bool, error)
	Cancel(ctx context.Context, tx *gorm.DB, enrollmentID uuid.UUID) error
}

type enrollmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEnrollmentRepo(db *gorm.DB, baseLog *logger.Logger) EnrollmentRepo {
	repoLog := baseLog.With("repo", "EnrollmentRepo")
	return &enrollmentRepo{db: db, log: repoLog}
}

func (er *enrollmentRepo) Create(ctx context.Context, tx *gorm.DB, enrollment *types.Enrollment) (*types.Enrollment, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	if err := transaction.WithContext(ctx).Create(enrollment).Error; err != nil {
		return nil, err
	}
	return enrollment, nil
}

func (er *enrollmentRepo) GetByIDs(ctx context.Context, tx *gorm.DB, enrollmentIDs []uuid.UUID) ([]*types.Enrollment, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}

	var results []*types.Enrollment
	if len(enrollmentIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", enrollmentIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (er *enrollmentRepo) ListBySequence(ctx context.Context, tx *gorm.DB, sequenceID uuid.UUID) ([]*types.Enrollment, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}

	var results []*types.Enrollment
	if err := transaction.WithContext(ctx).
		Where("sequence_id = ?", sequenceID).
		Order("enrolled_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (er *enrollmentRepo) ListActive(ctx context.Context, tx *gorm.DB) ([]*types.Enrollment, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}

	var results []*types.Enrollment
	if err := transaction.WithContext(ctx).
		Where("status = ?", types.EnrollmentStatusActive).
		Order("enrolled_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (er *enrollmentRepo) HasLive(ctx context.Context, tx *gorm.DB, sequenceID, userID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Enrollment{}).
		Where("sequence_id = ? AND user_id = ? AND status IN ?",
			sequenceID, userID,
			[]string{types.EnrollmentStatusActive, types.EnrollmentStatusProcessing}).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Claim atomically moves an active enrollment to processing. A false return
// means another worker holds it (or it reached a terminal state) and the
// caller must not touch it this pass.
func (er *enrollmentRepo) Claim(ctx context.Context, tx *gorm.DB, enrollmentID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Enrollment{}).
		Where("id = ? AND status = ?", enrollmentID, types.EnrollmentStatusActive).
		Update("status", types.EnrollmentStatusProcessing)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (er *enrollmentRepo) Release(ctx context.Context, tx *gorm.DB, enrollmentID uuid.UUID, currentStep int, lastStepAt *time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	updates := map[string]any{
		"status":       types.EnrollmentStatusActive,
		"current_step": currentStep,
	}
	if lastStepAt != nil {
		updates["last_step_at"] = *lastStepAt
	}
	res := transaction.WithContext(ctx).
		Model(&types.Enrollment{}).
		Where("id = ? AND status = ?", enrollmentID, types.EnrollmentStatusProcessing).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrEnrollmentNotFound
	}
	return nil
}

// Complete finishes a claimed enrollment. The status guard means completion
// fires at most once per enrollment even under overlapping queue runs.
func (er *enrollmentRepo) Complete(ctx context.Context, tx *gorm.DB, enrollmentID uuid.UUID, completedAt time.Time) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Enrollment{}).
		Where("id = ? AND status = ?", enrollmentID, types.EnrollmentStatusProcessing).
		Updates(map[string]any{
			"status":       types.EnrollmentStatusCompleted,
			"completed_at": completedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (er *enrollmentRepo) Cancel(ctx context.Context, tx *gorm.DB, enrollmentID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Enrollment{}).
		Where("id = ?", enrollmentID).
		Update("status", types.EnrollmentStatusCancelled).Error
}
