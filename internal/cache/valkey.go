package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"queuedesk/internal/auth"
	"queuedesk/internal/models"

	"github.com/redis/go-redis/v9"
)

// Config describes the Valkey (Redis protocol) connection.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// ValkeyClient caches validated identities so the remote auth service is
// consulted once per token per TTL.
type ValkeyClient struct {
	client *redis.Client
	prefix string
}

func NewValkeyClient(cfg Config) (*ValkeyClient, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "queuedesk:identity:"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return &ValkeyClient{client: rdb, prefix: cfg.KeyPrefix}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, prefix string) *ValkeyClient {
	return &ValkeyClient{client: client, prefix: prefix}
}

func (v *ValkeyClient) GetIdentity(ctx context.Context, key string) (*models.Identity, error) {
	raw, err := v.client.Get(ctx, v.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, auth.ErrCacheMiss
		}
		return nil, fmt.Errorf("cache lookup error: %w", err)
	}

	var identity models.Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return nil, fmt.Errorf("invalid identity in cache: %w", err)
	}
	return &identity, nil
}

func (v *ValkeyClient) SetIdentity(ctx context.Context, key string, identity *models.Identity, ttl time.Duration) error {
	raw, err := json.Marshal(identity)
	if err != nil {
		return err
	}
	if err := v.client.Set(ctx, v.prefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache write error: %w", err)
	}
	return nil
}

func (v *ValkeyClient) Ping(ctx context.Context) error {
	return v.client.Ping(ctx).Err()
}

func (v *ValkeyClient) Close() error {
	return v.client.Close()
}
