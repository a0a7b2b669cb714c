package app

import (
	"github.com/fluentora/fluentora-backend/internal/handlers"
	"github.com/fluentora/fluentora-backend/internal/logger"
)

type Handlers struct {
	Flags      *handlers.FlagsHandler
	Segments   *handlers.SegmentsHandler
	Sequences  *handlers.SequencesHandler
	Automation *handlers.AutomationHandler
	Track      *handlers.TrackHandler
}

func wireHandlers(log *logger.Logger, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Flags:      handlers.NewFlagsHandler(serviceset.Flag),
		Segments:   handlers.NewSegmentsHandler(serviceset.Segment, serviceset.Export),
		Sequences:  handlers.NewSequencesHandler(serviceset.Automation),
		Automation: handlers.NewAutomationHandler(serviceset.Automation),
		Track:      handlers.NewTrackHandler(serviceset.Automation),
	}
}
