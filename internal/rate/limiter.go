package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds refresh throttle tuning parameters.
type Config struct {
	Enabled bool
	// MaxRefreshes is the number of refreshes a session may perform per window.
	MaxRefreshes int
	Window       time.Duration
}

// Limiter enforces a per-session refresh budget using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckRefresh counts one refresh for sessionID and returns ErrRateLimited
// once the window budget is exceeded.
func (l *Limiter) CheckRefresh(ctx context.Context, sessionID string) error {
	if l == nil || !l.config.Enabled {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, refreshKey(sessionID), l.config.Window)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRefreshes) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the counter for sessionID.
func (l *Limiter) Reset(ctx context.Context, sessionID string) error {
	if l == nil {
		return nil
	}
	if err := l.redis.Del(ctx, refreshKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: TTL is set on the first hit only.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func refreshKey(sessionID string) string {
	return "ar:" + sessionID
}
