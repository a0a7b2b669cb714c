package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/fluentora/fluentora-backend/internal/handlers"
	"github.com/fluentora/fluentora-backend/internal/middleware"
)

type RouterConfig struct {
	AuthMiddleware    *middleware.AuthMiddleware
	FlagsHandler      *handlers.FlagsHandler
	SegmentsHandler   *handlers.SegmentsHandler
	SequencesHandler  *handlers.SequencesHandler
	AutomationHandler *handlers.AutomationHandler
	TrackHandler      *handlers.TrackHandler
	TracingEnabled    bool
	ServiceName       string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	if cfg.TracingEnabled {
		router.Use(otelgin.Middleware(cfg.ServiceName))
	}

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/track/open/:logId", cfg.TrackHandler.TrackOpen)
	router.POST("/track/click/:logId", cfg.TrackHandler.TrackClick)

	// ===============
	// || Protected ||
	// ===============
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())
	api.GET("/flags/me", cfg.FlagsHandler.GetMyFlags)
	api.GET("/flags/check/:key", cfg.FlagsHandler.CheckFlag)

	// ===============
	// || Admin     ||
	// ===============
	admin := api.Group("/admin")
	admin.Use(cfg.AuthMiddleware.RequireRole("admin"))
	// Flags
	admin.GET("/flags", cfg.FlagsHandler.ListFlags)
	admin.POST("/flags", cfg.FlagsHandler.CreateFlag)
	admin.PATCH("/flags/:id", cfg.FlagsHandler.UpdateFlag)
	admin.POST("/flags/:id/toggle", cfg.FlagsHandler.ToggleFlag)
	admin.DELETE("/flags/:id", cfg.FlagsHandler.DeleteFlag)
	admin.GET("/flags/:id/history", cfg.FlagsHandler.FlagHistory)
	// Segments
	admin.POST("/segments/query", cfg.SegmentsHandler.Query)
	admin.GET("/segments", cfg.SegmentsHandler.ListSegments)
	admin.POST("/segments", cfg.SegmentsHandler.SaveSegment)
	admin.POST("/segments/:id/refresh", cfg.SegmentsHandler.RefreshSegment)
	admin.DELETE("/segments/:id", cfg.SegmentsHandler.DeleteSegment)
	// Exports
	admin.POST("/exports/csv", cfg.SegmentsHandler.ExportCSV)
	admin.POST("/exports/excel", cfg.SegmentsHandler.ExportExcel)
	admin.POST("/exports/json", cfg.SegmentsHandler.ExportJSON)
	// Sequences
	admin.GET("/sequences", cfg.SequencesHandler.ListSequences)
	admin.POST("/sequences", cfg.SequencesHandler.CreateSequence)
	admin.GET("/sequences/:id", cfg.SequencesHandler.GetSequence)
	admin.PATCH("/sequences/:id", cfg.SequencesHandler.UpdateSequence)
	admin.DELETE("/sequences/:id", cfg.SequencesHandler.DeleteSequence)
	admin.GET("/sequences/:id/enrollments", cfg.SequencesHandler.ListEnrollments)
	admin.GET("/sequences/:id/analytics", cfg.SequencesHandler.SequenceAnalytics)
	// Automation
	admin.POST("/automation/trigger", cfg.AutomationHandler.Trigger)
	admin.POST("/automation/process", cfg.AutomationHandler.Process)

	return router
}
