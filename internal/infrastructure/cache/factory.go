package cache

import (
	"context"
	"fmt"

	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Backend is the key-value backend chosen at startup. Client is nil when
// the in-memory fallback is used.
type Backend struct {
	Client      *redis.Client
	Idempotency shared.IdempotencyStore
}

// Close releases the store and the Redis connection
func (b *Backend) Close() error {
	if err := b.Idempotency.Close(); err != nil {
		return err
	}
	if b.Client != nil {
		return b.Client.Close()
	}
	return nil
}

// Option configures Open
type Option func(*options)

type options struct {
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// WithLogger sets the logger used to report the chosen backend
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to
// process memory instead of failing. Default true.
func WithInMemoryFallback(allow bool) Option {
	return func(o *options) {
		o.allowInMemoryFallback = allow
	}
}

// Open connects to Redis when enabled, otherwise (or when Redis is down and
// fallback is allowed) it returns the in-memory store
func Open(ctx context.Context, cfg config.RedisConfig, opts ...Option) (*Backend, error) {
	o := options{logger: zap.NewNop(), allowInMemoryFallback: true}
	for _, opt := range opts {
		opt(&o)
	}

	if !cfg.Enabled {
		o.logger.Info("Redis disabled, using in-memory idempotency store")
		return &Backend{Idempotency: NewInMemoryIdempotencyStore()}, nil
	}

	client, err := NewRedisClient(ctx, cfg)
	if err != nil {
		if !o.allowInMemoryFallback {
			return nil, fmt.Errorf("redis required but unavailable: %w", err)
		}
		o.logger.Warn("Redis unavailable, falling back to in-memory stores; "+
			"idempotency and logout are not shared between instances",
			zap.Error(err),
		)
		return &Backend{Idempotency: NewInMemoryIdempotencyStore()}, nil
	}

	o.logger.Info("Using Redis", zap.String("addr", cfg.Addr()), zap.Int("db", cfg.DB))
	return &Backend{
		Client:      client,
		Idempotency: NewRedisIdempotencyStore(client, ""),
	}, nil
}
