package db

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/chainbot/internal/config"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		s, err := New(ctx, config.StoreRedis, "redis://"+mr.Addr())
		require.NoError(t, err)
		assert.NoError(t, s.Ping(ctx))
		assert.NoError(t, s.Close())
	})

	t.Run("badger", func(t *testing.T) {
		s, err := New(ctx, config.StoreBadger, t.TempDir())
		require.NoError(t, err)
		assert.NoError(t, s.Ping(ctx))
		assert.NoError(t, s.Close())
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := New(ctx, "etcd", "localhost:2379")
		assert.Error(t, err)
	})
}
