package config

import (
	"context"
	"os"
	"time"

	"github.com/bsm/redislock"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	rdb    *redis.Client
	locker *redislock.Client
)

func GetRedisDB() *redis.Client {
	return rdb
}

// GetRedisLock returns nil until ConnectRedisWithRetry succeeds; callers treat
// a nil locker as "run without the distributed lock".
func GetRedisLock() *redislock.Client {
	return locker
}

func init() {
	godotenv.Load()
}

// ConnectRedisWithRetry connects and sets the global Redis client + lock client.
// It gives up after REDIS_CONNECT_ATTEMPTS (default 0 = forever).
func ConnectRedisWithRetry(ctx context.Context) {
	redisAddr := os.Getenv("REDIS_ADDRESS")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
		GetLogger().WithFields(logrus.Fields{"addr": redisAddr}).Warn("REDIS_ADDRESS not set; using default")
	}
	maxAttempts := intFromEnv("REDIS_CONNECT_ATTEMPTS", 0)

	var attempt int
	for {
		attempt++
		client := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
			PoolSize: intFromEnv("REDIS_POOL_SIZE", 20),
		})
		err := client.Ping(ctx).Err()
		if err == nil {
			rdb = client
			locker = redislock.New(rdb)
			GetLogger().WithFields(logrus.Fields{"attempt": attempt, "addr": redisAddr}).Info("connected to redis")
			return
		}
		_ = client.Close()

		if maxAttempts > 0 && attempt >= maxAttempts {
			GetLogger().WithFields(logrus.Fields{"attempt": attempt, "addr": redisAddr}).WithError(err).Error("giving up on redis")
			return
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		GetLogger().WithFields(logrus.Fields{"attempt": attempt, "addr": redisAddr, "retry_in": sleep.String()}).WithError(err).Warn("failed to connect redis")
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}
