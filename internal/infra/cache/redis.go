package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

const tenantKeyPrefix = "authz:tenant:"

type CachedTenant struct {
	TenantID string `json:"tenant_id"`
	Name     string `json:"name,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Status   string `json:"status,omitempty"`
}

type TenantCache interface {
	Get(ctx context.Context, tenantKey string) (*CachedTenant, error)
	Set(ctx context.Context, tenantKey string, value *CachedTenant, ttl time.Duration) error
}

type redisCache struct {
	client *redis.Client
}

func NewRedisClient(url string, poolSize int) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	if poolSize > 0 {
		opt.PoolSize = poolSize
	}

	client := redis.NewClient(opt)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

func NewTenantCache(client *redis.Client) TenantCache {
	return &redisCache{client: client}
}

func (r *redisCache) Get(ctx context.Context, tenantKey string) (*CachedTenant, error) {
	val, err := r.client.Get(ctx, tenantKeyPrefix+tenantKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var tenant CachedTenant
	if err := json.Unmarshal([]byte(val), &tenant); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached tenant: %w", err)
	}

	return &tenant, nil
}

func (r *redisCache) Set(ctx context.Context, tenantKey string, value *CachedTenant, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cached tenant: %w", err)
	}

	if err := r.client.Set(ctx, tenantKeyPrefix+tenantKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set redis cache: %w", err)
	}

	return nil
}
