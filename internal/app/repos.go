package app

import (
	"gorm.io/gorm"

	"github.com/fluentora/fluentora-backend/internal/data/repos"
	"github.com/fluentora/fluentora-backend/internal/logger"
)

type Repos struct {
	User          repos.UserRepo
	Flag          repos.FlagRepo
	FlagHistory   repos.FlagHistoryRepo
	Tag           repos.TagRepo
	TagAssignment repos.TagAssignmentRepo
	Segment       repos.SegmentRepo
	LearnerQuery  repos.LearnerQueryRepo
	Sequence      repos.SequenceRepo
	Enrollment    repos.EnrollmentRepo
	SequenceLog   repos.SequenceLogRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:          repos.NewUserRepo(db, log),
		Flag:          repos.NewFlagRepo(db, log),
		FlagHistory:   repos.NewFlagHistoryRepo(db, log),
		Tag:           repos.NewTagRepo(db, log),
		TagAssignment: repos.NewTagAssignmentRepo(db, log),
		Segment:       repos.NewSegmentRepo(db, log),
		LearnerQuery:  repos.NewLearnerQueryRepo(db, log),
		Sequence:      repos.NewSequenceRepo(db, log),
		Enrollment:    repos.NewEnrollmentRepo(db, log),
		SequenceLog:   repos.NewSequenceLogRepo(db, log),
	}
}
