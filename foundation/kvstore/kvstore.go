// Package kvstore provides support for access the key value store holding
// perishable real-time feed blobs.
package kvstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config is the required properties to use the key value store.
type Config struct {
	Host     string
	Password string
	DB       int
	PoolSize int
}

// Open creates a client for the key value store based on the configuration
// and verifies the connection with a ping.
func Open(cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Host,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging key value store at %s: %w", cfg.Host, err)
	}
	return client, nil
}
