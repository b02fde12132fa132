package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Domenick1991/tourbooking/config"
	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client     *redis.Client
	catalogTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, catalogTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:     redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		catalogTTL: catalogTTL,
	}
}

// GetApprovedPackages returns nil, nil on a cache miss.
func (c *RedisCache) GetApprovedPackages(ctx context.Context) ([]domain.Package, error) {
	data, err := c.client.Get(ctx, approvedPackagesKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var packages []domain.Package
	if err := json.Unmarshal(data, &packages); err != nil {
		return nil, err
	}
	return packages, nil
}

func (c *RedisCache) SetApprovedPackages(ctx context.Context, packages []domain.Package) error {
	if packages == nil {
		packages = []domain.Package{}
	}
	payload, err := json.Marshal(packages)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, approvedPackagesKey(), payload, c.catalogTTL).Err()
}

func (c *RedisCache) InvalidateApprovedPackages(ctx context.Context) error {
	return c.client.Del(ctx, approvedPackagesKey()).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func approvedPackagesKey() string {
	return "cache:packages:approved"
}
