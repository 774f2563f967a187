package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astro-web3/runtime-authz/internal/infra/cache"
)

func newTestCache(t *testing.T) (cache.TenantCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := cache.NewRedisClient("redis://"+mr.Addr(), 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return cache.NewTenantCache(client), mr
}

func TestTenantCache_Miss(t *testing.T) {
	c, _ := newTestCache(t)

	got, err := c.Get(context.Background(), "T1")
	require.ErrorIs(t, err, cache.ErrCacheMiss)
	assert.Nil(t, got)
}

func TestTenantCache_SetGet(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	want := &cache.CachedTenant{TenantID: "T1", Name: "Acme", Status: "active"}
	require.NoError(t, c.Set(ctx, "acme", want, time.Minute))

	assert.True(t, mr.Exists("authz:tenant:acme"))

	got, err := c.Get(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTenantCache_Expiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "T1", &cache.CachedTenant{TenantID: "T1"}, time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := c.Get(ctx, "T1")
	require.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestTenantCache_CorruptValue(t *testing.T) {
	c, mr := newTestCache(t)

	require.NoError(t, mr.Set("authz:tenant:T1", "{not json"))

	_, err := c.Get(context.Background(), "T1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, cache.ErrCacheMiss)
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := cache.NewRedisClient("://nope", 1)
	require.Error(t, err)
}
