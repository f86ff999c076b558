// Package redis stores the queue in Redis so several processes on one host
// (or a supervisor restart) share it.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Config selects the Redis server.
type Config struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every key, e.g. "fieldsync:".
	Prefix string
}

// NewClient creates a go-redis client from cfg.
func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Persistence implements ports.LocalPersistence on Redis strings.
// SET replaces a value atomically, so readers never see a partial queue.
type Persistence struct {
	client redis.Cmdable
	prefix string
}

// NewPersistence wraps client. Keys are stored under prefix+key.
func NewPersistence(client redis.Cmdable, prefix string) *Persistence {
	return &Persistence{client: client, prefix: prefix}
}

// Get returns the stored value; a missing key yields ok == false.
func (p *Persistence) Get(ctx context.Context, key string) (string, bool, error) {
	if p.client == nil {
		return "", false, fmt.Errorf("redis client is nil")
	}
	val, err := p.client.Get(ctx, p.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores value without expiry.
func (p *Persistence) Set(ctx context.Context, key, value string) error {
	if p.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := p.client.Set(ctx, p.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (p *Persistence) Remove(ctx context.Context, key string) error {
	if p.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := p.client.Del(ctx, p.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
