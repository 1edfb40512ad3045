package config

import (
	"context"
	"time"

	"github.com/HSouheill/partner_marketplace/logger"
	"github.com/go-redis/redis/v8"
)

// ConnectRedis establishes connection to Redis. It returns nil when Redis is
// unreachable; booking locks then fall back to in-process mutexes.
func ConnectRedis(cfg App) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	})

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logger.Log.WithError(err).Warn("Redis connection failed")
		logger.Log.Warn("Booking locks will be process-local")
		_ = client.Close()
		return nil
	}

	logger.Log.Info("Connected to Redis")
	return client
}
