package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisDriver stores each key as a plain string value under a prefix.
type RedisDriver struct {
	client *redis.Client
	prefix string
}

// NewRedisDriver connects using a redis:// URL and verifies the connection.
func NewRedisDriver(ctx context.Context, url, prefix string) (*RedisDriver, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisDriver{client: client, prefix: prefix}, nil
}

func (d *RedisDriver) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := d.client.Get(ctx, d.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (d *RedisDriver) Set(ctx context.Context, key string, value []byte) error {
	return d.client.Set(ctx, d.prefix+key, value, 0).Err()
}

func (d *RedisDriver) Ping(ctx context.Context) error { return d.client.Ping(ctx).Err() }

func (d *RedisDriver) Close() error { return d.client.Close() }
