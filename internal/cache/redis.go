package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/freekieb7/go-duedate/internal/errors"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// Service stores JSON values in Redis under a key prefix.
type Service struct {
	client clientInterface
	logger *slog.Logger
	prefix string
}

// clientInterface abstracts Redis operations we actually use
type clientInterface interface {
	set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	get(ctx context.Context, key string) ([]byte, error)
	del(ctx context.Context, key string) error
	ping(ctx context.Context) error
	close() error
}

// Config holds Redis cache configuration
type Config struct {
	Addr         string        // Redis server address
	Password     string        // Redis password
	DB           int           // Redis database number
	PoolSize     int           // Connection pool size
	MinIdleConns int           // Minimum idle connections
	MaxRetries   int           // Maximum number of retries
	DialTimeout  time.Duration // Connection timeout
	ReadTimeout  time.Duration // Read timeout
	WriteTimeout time.Duration // Write timeout
	Prefix       string        // Key prefix for namespacing
	Enabled      bool          // Whether Redis is used at all
}

// DefaultConfig returns default Redis configuration
func DefaultConfig() *Config {
	return &Config{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 3,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		Prefix:       "duedate:",
		Enabled:      true,
	}
}

// NewService connects to Redis. A disabled config yields a service that never
// stores anything.
func NewService(config *Config, logger *slog.Logger) (*Service, error) {
	if !config.Enabled {
		return &Service{
			client: &noOpClient{},
			logger: logger,
			prefix: config.Prefix,
		}, nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", "error", err, "addr", config.Addr)
		redisClient.Close()
		return nil, apperrors.CacheUnavailableError("failed to connect to Redis", err)
	}

	logger.Info("Connected to Redis", "addr", config.Addr, "db", config.DB)

	return NewServiceFromClient(redisClient, config.Prefix, logger), nil
}

// NewServiceFromClient wraps an existing Redis client.
func NewServiceFromClient(client *redis.Client, prefix string, logger *slog.Logger) *Service {
	return &Service{
		client: &redisClientWrapper{client: client},
		logger: logger,
		prefix: prefix,
	}
}

func (s *Service) buildKey(key string) string {
	return s.prefix + key
}

// Set stores a value in cache with expiration
func (s *Service) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	if err := s.client.set(ctx, s.buildKey(key), data, ttl); err != nil {
		s.logger.WarnContext(ctx, "Cache set failed", "key", key, "error", err)
		return apperrors.CacheError("cache set failed", err)
	}

	s.logger.DebugContext(ctx, "Cache set", "key", key, "ttl", ttl)
	return nil
}

// Get retrieves a value from cache, returning ErrCacheMiss when absent.
func (s *Service) Get(ctx context.Context, key string, dest any) error {
	val, err := s.client.get(ctx, s.buildKey(key))
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return ErrCacheMiss
		}
		s.logger.WarnContext(ctx, "Cache get failed", "key", key, "error", err)
		return apperrors.CacheError("cache get failed", err)
	}

	if err := json.Unmarshal(val, dest); err != nil {
		s.logger.WarnContext(ctx, "Cache unmarshal failed", "key", key, "error", err)
		return fmt.Errorf("failed to unmarshal cache value: %w", err)
	}

	return nil
}

// Delete removes a value from cache
func (s *Service) Delete(ctx context.Context, key string) error {
	if err := s.client.del(ctx, s.buildKey(key)); err != nil {
		s.logger.WarnContext(ctx, "Cache delete failed", "key", key, "error", err)
		return apperrors.CacheError("cache delete failed", err)
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	if err := s.client.ping(ctx); err != nil {
		return apperrors.CacheUnavailableError("redis ping failed", err)
	}
	return nil
}

func (s *Service) Close() error {
	return s.client.close()
}

type redisClientWrapper struct {
	client *redis.Client
}

func (r *redisClientWrapper) set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisClientWrapper) get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	return val, nil
}

func (r *redisClientWrapper) del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *redisClientWrapper) ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisClientWrapper) close() error {
	return r.client.Close()
}

// noOpClient is a simplified no-op implementation
type noOpClient struct{}

func (n *noOpClient) set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (n *noOpClient) get(ctx context.Context, key string) ([]byte, error) {
	return nil, ErrCacheMiss
}

func (n *noOpClient) del(ctx context.Context, key string) error {
	return nil
}

func (n *noOpClient) ping(ctx context.Context) error {
	return nil
}

func (n *noOpClient) close() error {
	return nil
}
