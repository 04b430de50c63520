// Package redis implements Redis-backed durable storage for the dashboard
// client and the server-side session store. The client uses it as its
// key-value persistence surface: store state survives app restarts and is
// rehydrated on startup.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	// Host is the Redis server hostname.
	Host string

	// Port is the Redis server port.
	Port int

	// Password is the Redis authentication password (empty if no auth).
	Password string

	// DB is the Redis database number (0-15).
	DB int

	// PoolSize is the maximum number of socket connections.
	PoolSize int

	// MinIdleConns is the minimum number of idle connections.
	MinIdleConns int

	// DialTimeout is the timeout for establishing new connections.
	DialTimeout time.Duration

	// ReadTimeout is the timeout for socket reads.
	ReadTimeout time.Duration

	// WriteTimeout is the timeout for socket writes.
	WriteTimeout time.Duration

	// KeyPrefix namespaces all keys written by this process.
	KeyPrefix string
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		KeyPrefix:    "wellnest:",
	}
}

// Addr returns the Redis address in "host:port" format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrConnection is returned when the Redis connection fails.
	ErrConnection = errors.New("storage: connection failed")

	// ErrKeyEmpty is returned when an empty key is provided.
	ErrKeyEmpty = errors.New("storage: key cannot be empty")
)

// ══════════════════════════════════════════════════════════════════════════════
// DURABLE STORAGE
// ══════════════════════════════════════════════════════════════════════════════

// Storage is Redis-backed durable key-value storage. Values are opaque JSON
// blobs; the persistence adapter owns serialization.
type Storage struct {
	client *redis.Client
	config Config
}

// NewStorage creates a new Storage and verifies the connection.
func NewStorage(cfg Config) (*Storage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	return &Storage{client: client, config: cfg}, nil
}

// Client returns the underlying Redis client for advanced operations.
func (s *Storage) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection.
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get retrieves the raw value for a key. Returns shared.ErrNotFound when the
// key does not exist.
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrKeyEmpty
	}

	data, err := s.client.Get(ctx, s.config.KeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	return data, nil
}

// Set stores the raw value for a key with no expiry; durable storage outlives
// any single session and is cleared explicitly by the invalidation cascade.
func (s *Storage) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrKeyEmpty
	}

	return s.client.Set(ctx, s.config.KeyPrefix+key, value, 0).Err()
}

// Remove deletes a key. Removing a missing key is a no-op.
func (s *Storage) Remove(ctx context.Context, key string) error {
	if key == "" {
		return ErrKeyEmpty
	}

	return s.client.Del(ctx, s.config.KeyPrefix+key).Err()
}

// RemoveAll deletes every key under this process's prefix. Used by tests and
// administrative resets; the cascade removes keys individually so the order
// stays observable.
func (s *Storage) RemoveAll(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.config.KeyPrefix+"*", 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 100 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if len(keys) > 0 {
		return s.client.Del(ctx, keys...).Err()
	}

	return nil
}
