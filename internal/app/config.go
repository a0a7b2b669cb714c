package app

import (
	"time"

	"github.com/fluentora/fluentora-backend/internal/logger"
	"github.com/fluentora/fluentora-backend/internal/utils"
)

type Config struct {
	Environment      string
	JWTSecretKey     string
	FlagCacheTTL     time.Duration
	FlagCacheBackend string
	QueueInterval    time.Duration
	QueueWorkerOn    bool
	MailProvider     string
}

func LoadConfig(log *logger.Logger) Config {
	environment := utils.GetEnv("APP_ENV", "development", log)
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	flagCacheTTLSeconds := utils.GetEnvAsInt("FLAG_CACHE_TTL", 300, log)
	flagCacheBackend := utils.GetEnv("FLAG_CACHE_BACKEND", "local", log)
	queueIntervalSeconds := utils.GetEnvAsInt("AUTOMATION_QUEUE_INTERVAL", 60, log)
	queueWorkerOn := utils.GetEnv("AUTOMATION_QUEUE_WORKER", "on", log) != "off"
	mailProvider := utils.GetEnv("MAIL_PROVIDER", "none", log)
	return Config{
		Environment:      environment,
		JWTSecretKey:     jwtSecretKey,
		FlagCacheTTL:     time.Duration(flagCacheTTLSeconds) * time.Second,
		FlagCacheBackend: flagCacheBackend,
		QueueInterval:    time.Duration(queueIntervalSeconds) * time.Second,
		QueueWorkerOn:    queueWorkerOn,
		MailProvider:     mailProvider,
	}
}
