package options

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"autoblog/pkg/host"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix is prepended to every option key.
const DefaultRedisPrefix = "autoblog:option:"

// Redis stores each option as a JSON string.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

var _ host.OptionStore = (*Redis)(nil)

// NewRedis creates a store on client. An empty prefix uses DefaultRedisPrefix.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, key string) (map[string]any, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get option %s: %w", key, err)
	}

	value := map[string]any{}
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, false, fmt.Errorf("failed to decode option %s: %w", key, err)
	}
	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value map[string]any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode option %s: %w", key, err)
	}
	if err := r.client.Set(ctx, r.prefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set option %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete option %s: %w", key, err)
	}
	return nil
}
