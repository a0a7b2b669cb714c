package app

import (
	"github.com/gin-gonic/gin"

	"github.com/fluentora/fluentora-backend/internal/observability"
	"github.com/fluentora/fluentora-backend/internal/server"
)

func wireRouter(handlerset Handlers, middlewareset Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		AuthMiddleware:    middlewareset.Auth,
		FlagsHandler:      handlerset.Flags,
		SegmentsHandler:   handlerset.Segments,
		SequencesHandler:  handlerset.Sequences,
		AutomationHandler: handlerset.Automation,
		TrackHandler:      handlerset.Track,
		TracingEnabled:    observability.Enabled(),
		ServiceName:       "fluentora-backend",
	})
}
