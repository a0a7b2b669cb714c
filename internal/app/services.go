package app

import (
	"gorm.io/gorm"

	"github.com/fluentora/fluentora-backend/internal/jobs"
	"github.com/fluentora/fluentora-backend/internal/logger"
	"github.com/fluentora/fluentora-backend/internal/services"
)

type Services struct {
	Flag        services.FlagService
	Segment     services.SegmentService
	Export      services.ExportService
	Automation  services.AutomationService
	QueueWorker *jobs.QueueWorker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, clients Clients) Services {
	log.Info("Wiring services...")

	flagService := services.NewFlagService(db, log, reposet.Flag, reposet.FlagHistory, clients.FlagCache, cfg.Environment)
	segmentService := services.NewSegmentService(db, log, reposet.LearnerQuery, reposet.Segment)
	exportService := services.NewExportService(db, log, segmentService, reposet.TagAssignment)
	automationService := services.NewAutomationService(
		db,
		log,
		reposet.Sequence,
		reposet.Enrollment,
		reposet.SequenceLog,
		reposet.User,
		flagService,
		clients.Mailer,
	)

	var queueWorker *jobs.QueueWorker
	if cfg.QueueWorkerOn {
		queueWorker = jobs.NewQueueWorker(log, automationService, cfg.QueueInterval)
	}

	return Services{
		Flag:        flagService,
		Segment:     segmentService,
		Export:      exportService,
		Automation:  automationService,
		QueueWorker: queueWorker,
	}
}
