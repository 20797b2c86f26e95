package cache

import (
	"context"
	"testing"

	"github.com/mdfe/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestOpen_Disabled(t *testing.T) {
	backend, err := Open(context.Background(), config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	defer backend.Close()

	assert.Nil(t, backend.Client)
	assert.IsType(t, &InMemoryIdempotencyStore{}, backend.Idempotency)
}

func TestOpen_FallbackWhenUnreachable(t *testing.T) {
	core, recorded := observer.New(zapcore.WarnLevel)
	cfg := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}

	backend, err := Open(context.Background(), cfg, WithLogger(zap.New(core)))
	require.NoError(t, err)
	defer backend.Close()

	assert.Nil(t, backend.Client)
	assert.Equal(t, 1, recorded.Len())
}

func TestOpen_NoFallback(t *testing.T) {
	cfg := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}
	_, err := Open(context.Background(), cfg, WithInMemoryFallback(false))
	assert.Error(t, err)
}
