package audience

import (
	"context"

	"gorm.io/gorm"

	types "github.com/fluentora/fluentora-backend/internal/domain"
	"github.com/fluentora/fluentora-backend/internal/logger"
)

// Condition is one compiled, parameterized predicate against the user table.
// Expr only ever contains trusted SQL assembled by the segment compiler from
// an allow-listed column map; every user-supplied value rides in Args.
type Condition struct {
	Expr string
	Args []any
}

// LearnerQuery is a fully compiled segment query: predicates, combinator,
// validated sort column/direction, and clamped pagination.
type LearnerQuery struct {
	Conditions []Condition
	Logic      string
	SortBy     string
	SortOrder  string
	Limit      int
	Offset     int
}

type LearnerQueryRepo interface {
	Query(ctx context.Context, tx *gorm.DB, q LearnerQuery) ([]*types.User, int64, error)
	ListFallback(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.User, int64, error)
}

type learnerQueryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLearnerQueryRepo(db *gorm.DB, baseLog *logger.Logger) LearnerQueryRepo {
	repoLog := baseLog.With("repo", "LearnerQueryRepo")
	return &learnerQueryRepo{db: db, log: repoLog}
}

func (lr *learnerQueryRepo) Query(ctx context.Context, tx *gorm.DB, q LearnerQuery) ([]*types.User, int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = lr.db
	}

	base := transaction.WithContext(ctx).Model(&types.User{})
	if len(q.Conditions) > 0 {
		if q.Logic == types.LogicOr {
			grouped := transaction.Where(q.Conditions[0].Expr, q.Conditions[0].Args...)
			for _, c := range q.Conditions[1:] {
				grouped = grouped.Or(c.Expr, c.Args...)
			}
			base = base.Where(grouped)
		} else {
			for _, c := range q.Conditions {
				base = base.Where(c.Expr, c.Args...)
			}
		}
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []*types.User
	if err := base.
		Order(q.SortBy + " " + q.SortOrder).
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (lr *learnerQueryRepo) ListFallback(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.User, int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = lr.db
	}

	var total int64
	if err := transaction.WithContext(ctx).Model(&types.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []*types.User
	if err := transaction.WithContext(ctx).
		Model(&types.User{}).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}
