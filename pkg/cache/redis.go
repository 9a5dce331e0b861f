package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/frankenergie/frankenergie/pkg/types"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "frankenergie:snapshot:"

// Redis stores snapshots as JSON with a TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Snapshots = (*Redis)(nil)

// NewRedis returns a Redis that owns client.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{
		client: client,
		ttl:    ttl,
	}
}

func snapshotKey(entryID string) string {
	return keyPrefix + entryID
}

func (r *Redis) Get(ctx context.Context, entryID string) (*types.RefreshResult, error) {
	data, err := r.client.Get(ctx, snapshotKey(entryID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get snapshot from redis: %w", err)
	}

	var result types.RefreshResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	result.Electricity = result.Electricity.Normalize()
	result.Gas = result.Gas.Normalize()
	return &result, nil
}

func (r *Redis) Set(ctx context.Context, entryID string, result *types.RefreshResult) error {
	if result == nil {
		return r.Delete(ctx, entryID)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := r.client.Set(ctx, snapshotKey(entryID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot in redis: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, entryID string) error {
	if err := r.client.Del(ctx, snapshotKey(entryID)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot from redis: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
