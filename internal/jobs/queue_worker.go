package jobs

import (
	"context"
	"time"

	"github.com/fluentora/fluentora-backend/internal/logger"
	"github.com/fluentora/fluentora-backend/internal/services"
)

// QueueWorker drives the automation queue on a fixed interval. It stands in
// for an external scheduler; ProcessQueue itself is safe to run from several
// workers at once, so overlap with a manual kick is harmless.
type QueueWorker struct {
	log        *logger.Logger
	automation services.AutomationService
	interval   time.Duration
}

func NewQueueWorker(baseLog *logger.Logger, automation services.AutomationService, interval time.Duration) *QueueWorker {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &QueueWorker{
		log:        baseLog.With("component", "QueueWorker"),
		automation: automation,
		interval:   interval,
	}
}

func (w *QueueWorker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				func() {
					defer func() {
						if r := recover(); r != nil {
							w.log.Error("Queue pass panic", "panic", r)
						}
					}()
					processed, errored := w.automation.ProcessQueue(ctx)
					if processed > 0 || errored > 0 {
						w.log.Info("Queue pass finished", "processed", processed, "errors", errored)
					}
				}()
			}
		}
	}()
}
