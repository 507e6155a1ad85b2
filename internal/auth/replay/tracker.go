package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AlibekovAA/videotube/backend/internal/auth/domain"
	"github.com/AlibekovAA/videotube/backend/internal/common/constants"
)

var ErrTrackerUnavailable = errors.New("replay tracker unavailable")

// Tracker counts rejected refresh tokens per identity within a window.
type Tracker interface {
	Record(ctx context.Context, id domain.ID) (int64, error)
}

type RedisTracker struct {
	redis  redis.UniversalClient
	window time.Duration
}

// NewRedisTracker creates a tracker whose counters expire window after the
// first rejection. A non-positive window falls back to the default.
func NewRedisTracker(client redis.UniversalClient, window time.Duration) *RedisTracker {
	if window <= 0 {
		window = constants.DefaultReplayWindow
	}
	return &RedisTracker{redis: client, window: window}
}

func NewRedisTrackerFromURL(url string, window time.Duration) (*RedisTracker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return NewRedisTracker(redis.NewClient(opts), window), nil
}

func (t *RedisTracker) key(id domain.ID) string {
	return "replay:" + string(id)
}

func (t *RedisTracker) Record(ctx context.Context, id domain.ID) (int64, error) {
	count, err := t.redis.Incr(ctx, t.key(id)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTrackerUnavailable, err)
	}
	if count == 1 {
		if err := t.redis.Expire(ctx, t.key(id), t.window).Err(); err != nil {
			return count, fmt.Errorf("%w: %v", ErrTrackerUnavailable, err)
		}
	}
	return count, nil
}

func (t *RedisTracker) Ping(ctx context.Context) error {
	return t.redis.Ping(ctx).Err()
}

func (t *RedisTracker) Close() error {
	return t.redis.Close()
}

// NoopTracker is used when no Redis is configured.
type NoopTracker struct{}

func (NoopTracker) Record(context.Context, domain.ID) (int64, error) {
	return 0, nil
}
