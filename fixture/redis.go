package fixture

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis reads fixtures from string keys "<prefix><name>" in a Redis server
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis creates a Redis store using an existing client
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
	}
}

// DialRedis creates a Redis store connected to addr
func DialRedis(addr, password string, db int, prefix string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedis(client, prefix)
}

// Key returns the Redis key holding a fixture
func (r *Redis) Key(name string) string {
	return r.prefix + name
}

// Fetch implements Provider
func (r *Redis) Fetch(ctx context.Context, name string) (string, error) {
	text, err := r.client.Get(ctx, r.Key(name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", &NotFoundError{Name: name, Source: "redis"}
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch fixture %q from redis: %w", name, err)
	}
	return text, nil
}

// Store writes a fixture, mainly for seeding test data
func (r *Redis) Store(ctx context.Context, name, text string) error {
	return r.client.Set(ctx, r.Key(name), text, 0).Err()
}

// Ping checks connectivity to the Redis server
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client
func (r *Redis) Close() error {
	return r.client.Close()
}
