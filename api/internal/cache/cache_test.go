package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waste-bot/api/internal/config"
)

type item struct {
	Name  string
	Score float64
}

func TestMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("roundtrip and miss", func(t *testing.T) {
		c := NewMemory(4)

		var got item
		assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrMiss)

		require.NoError(t, c.Set(ctx, "k", item{"can", 0.93}, 0))
		require.NoError(t, c.Get(ctx, "k", &got))
		assert.Equal(t, item{"can", 0.93}, got)
	})

	t.Run("entries expire", func(t *testing.T) {
		c := NewMemory(4)
		now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		c.now = func() time.Time { return now }

		require.NoError(t, c.Set(ctx, "k", item{Name: "glass"}, time.Minute))
		now = now.Add(2 * time.Minute)

		var got item
		assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrMiss)
	})

	t.Run("size is bounded", func(t *testing.T) {
		c := NewMemory(2)
		for _, k := range []string{"a", "b", "c"} {
			require.NoError(t, c.Set(ctx, k, item{Name: k}, 0))
		}

		assert.Len(t, c.m, 2)
		var got item
		assert.NoError(t, c.Get(ctx, "c", &got))
	})
}

func TestNewRedisClientRequiresAddr(t *testing.T) {
	_, err := NewRedisClient(context.Background(), &config.RedisConfig{})
	assert.Error(t, err)
}
