package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T) (*SoldCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSoldCache(client, 45*24*time.Hour), mr
}

func TestMembersMissingProjection(t *testing.T) {
	cache, _ := setupCache(t)

	digits, found, err := cache.Members(context.Background(), "2025-04-15")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, digits)
}

func TestMarkSoldAndMembersSorted(t *testing.T) {
	cache, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.MarkSold(ctx, "2025-04-15", []string{"512", "007", "123"}))
	require.NoError(t, cache.MarkSold(ctx, "2025-04-15", []string{"007"})) // idempotente

	digits, found, err := cache.Members(ctx, "2025-04-15")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"007", "123", "512"}, digits)

	// TTL aplicado junto com o SADD
	assert.Greater(t, mr.TTL(key("2025-04-15")), time.Duration(0))
}

func TestRebuildReplacesProjection(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.MarkSold(ctx, "2025-04-15", []string{"007", "123"}))
	// visão atual do banco: "007" segue vendido por outro pedido, "123" saiu
	require.NoError(t, cache.Rebuild(ctx, "2025-04-15", []string{"007"}))

	digits, found, err := cache.Members(ctx, "2025-04-15")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"007"}, digits)
}

func TestRebuildEmptyDropsKey(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.MarkSold(ctx, "2025-04-15", []string{"007"}))
	require.NoError(t, cache.Rebuild(ctx, "2025-04-15", nil))

	// sem chave a disponibilidade cai no Postgres
	_, found, err := cache.Members(ctx, "2025-04-15")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDrawsAreIsolated(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.MarkSold(ctx, "2025-04-15", []string{"007"}))
	require.NoError(t, cache.MarkSold(ctx, "2025-04-30", []string{"123"}))

	digits, found, err := cache.Members(ctx, "2025-04-15")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []string{"007"}, digits)
}
