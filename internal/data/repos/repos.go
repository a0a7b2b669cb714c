package repos

import (
	"gorm.io/gorm"

	"github.com/fluentora/fluentora-backend/internal/data/repos/audience"
	"github.com/fluentora/fluentora-backend/internal/data/repos/automation"
	"github.com/fluentora/fluentora-backend/internal/data/repos/flags"
	"github.com/fluentora/fluentora-backend/internal/data/repos/user"
	"github.com/fluentora/fluentora-backend/internal/logger"
)

type UserRepo = user.UserRepo

type FlagRepo = flags.FlagRepo
type FlagHistoryRepo = flags.FlagHistoryRepo

type TagRepo = audience.TagRepo
type TagAssignmentRepo = audience.TagAssignmentRepo
type SegmentRepo = audience.SegmentRepo
type LearnerQueryRepo = audience.LearnerQueryRepo
type LearnerQuery = audience.LearnerQuery
type Condition = audience.Condition

type SequenceRepo = automation.SequenceRepo
type EnrollmentRepo = automation.EnrollmentRepo
type SequenceLogRepo = automation.SequenceLogRepo

var ErrFlagNotFound = flags.ErrFlagNotFound
var ErrSegmentNotFound = audience.ErrSegmentNotFound
var ErrSequenceNotFound = automation.ErrSequenceNotFound
var ErrEnrollmentNotFound = automation.ErrEnrollmentNotFound

func IsUniqueViolation(err error) bool { return automation.IsUniqueViolation(err) }

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo { return user.NewUserRepo(db, baseLog) }

func NewFlagRepo(db *gorm.DB, baseLog *logger.Logger) FlagRepo {
	return flags.NewFlagRepo(db, baseLog)
}
func NewFlagHistoryRepo(db *gorm.DB, baseLog *logger.Logger) FlagHistoryRepo {
	return flags.NewFlagHistoryRepo(db, baseLog)
}

func NewTagRepo(db *gorm.DB, baseLog *logger.Logger) TagRepo {
	return audience.NewTagRepo(db, baseLog)
}
func NewTagAssignmentRepo(db *gorm.DB, baseLog *logger.Logger) TagAssignmentRepo {
	return audience.NewTagAssignmentRepo(db, baseLog)
}
func NewSegmentRepo(db *gorm.DB, baseLog *logger.Logger) SegmentRepo {
	return audience.NewSegmentRepo(db, baseLog)
}
func NewLearnerQueryRepo(db *gorm.DB, baseLog *logger.Logger) LearnerQueryRepo {
	return audience.NewLearnerQueryRepo(db, baseLog)
}

func NewSequenceRepo(db *gorm.DB, baseLog *logger.Logger) SequenceRepo {
	return automation.NewSequenceRepo(db, baseLog)
}
func NewEnrollmentRepo(db *gorm.DB, baseLog *logger.Logger) EnrollmentRepo {
	return automation.NewEnrollmentRepo(db, baseLog)
}
func NewSequenceLogRepo(db *gorm.DB, baseLog *logger.Logger) SequenceLogRepo {
	return automation.NewSequenceLogRepo(db, baseLog)
}
