package watermark

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "trs:watermark:"

// Redis stores watermarks as RFC3339 strings under trs:watermark:<job>.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (s *Redis) LastRun(ctx context.Context, job string) (time.Time, bool, error) {
	raw, err := s.client.Get(ctx, keyPrefix+job).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read watermark %s: %w", job, err)
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse watermark %s value %q: %w", job, raw, err)
	}
	return t, true, nil
}

func (s *Redis) SetLastRun(ctx context.Context, job string, t time.Time) error {
	if err := s.client.Set(ctx, keyPrefix+job, t.Format(time.RFC3339Nano), 0).Err(); err != nil {
		return fmt.Errorf("write watermark %s: %w", job, err)
	}
	return nil
}

var _ Store = (*Redis)(nil)
