package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/context-rot-monitor/internal/config"
	"github.com/wolfman30/context-rot-monitor/internal/monitor"
	"github.com/wolfman30/context-rot-monitor/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildAlertJournal returns the Redis journal when a client is available and
// the no-op journal otherwise.
func BuildAlertJournal(client *redis.Client, cfg *appconfig.Config, logger *logging.Logger) monitor.AlertJournal {
	if logger == nil {
		logger = logging.Default()
	}
	if client == nil || cfg == nil {
		logger.Info("drift alert journal disabled")
		return monitor.NoopAlertJournal{}
	}
	logger.Info("drift alert journal enabled", "ttl", cfg.AlertTTL.String(), "max", cfg.AlertMax)
	return monitor.NewRedisAlertJournal(client, cfg.AlertTTL, int64(cfg.AlertMax), nil)
}
