package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	DefaultExpiration = 5 * time.Minute

	violationCountKey = "guard:violations:%s"
)

// Tracker counts confirmed guardrail violations per client so repeat
// offenders can be surfaced to the host's rate limiting or blocking layers.
//
//go:generate mockery --name=Tracker --dir=. --output=./mocks --filename=tracker_mock.go --case=underscore --with-expecter
type Tracker interface {
	RecordViolation(ctx context.Context, clientID string, ttl time.Duration) error
	ViolationCount(ctx context.Context, clientID string) (int64, error)
}

type redisTracker struct {
	client *redis.Client
}

func NewRedisTracker(client *redis.Client) Tracker {
	return &redisTracker{client: client}
}

func (t *redisTracker) RecordViolation(ctx context.Context, clientID string, ttl time.Duration) error {
	if clientID == "" {
		return errors.New("client id is required")
	}
	if ttl <= 0 {
		ttl = DefaultExpiration
	}
	key := fmt.Sprintf(violationCountKey, clientID)

	pipe := t.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record violation: %w", err)
	}
	return nil
}

func (t *redisTracker) ViolationCount(ctx context.Context, clientID string) (int64, error) {
	key := fmt.Sprintf(violationCountKey, clientID)
	count, err := t.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read violation count: %w", err)
	}
	return count, nil
}
