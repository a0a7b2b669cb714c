package app

import (
	"github.com/fluentora/fluentora-backend/internal/clients/redis"
	"github.com/fluentora/fluentora-backend/internal/clients/sendgrid"
	"github.com/fluentora/fluentora-backend/internal/logger"
	"github.com/fluentora/fluentora-backend/internal/services"
)

type Clients struct {
	FlagCache services.FlagCache
	Mailer    services.Mailer
}

// wireClients degrades gracefully: a missing redis or sendgrid configuration
// falls back to the local cache and the nop mailer instead of failing boot.
func wireClients(log *logger.Logger, cfg Config) Clients {
	log.Info("Wiring clients...")

	var flagCache services.FlagCache
	if cfg.FlagCacheBackend == "redis" {
		cache, err := redis.NewFlagCache(log, cfg.FlagCacheTTL)
		if err != nil {
			log.Warn("Redis flag cache init failed, using local cache", "error", err)
		} else {
			flagCache = cache
		}
	}
	if flagCache == nil {
		flagCache = services.NewLocalFlagCache(cfg.FlagCacheTTL)
	}

	var mailer services.Mailer = services.NopMailer{}
	if cfg.MailProvider == "sendgrid" {
		client, err := sendgrid.NewFromEnv(log)
		if err != nil {
			log.Warn("SendGrid init failed, sequence mail will be dropped", "error", err)
		} else {
			mailer = client
		}
	}

	return Clients{FlagCache: flagCache, Mailer: mailer}
}
