package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Total float64 `json:"total"`
}

func newTestCache(t *testing.T) (*JSONCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewJSONCache(client, "totals", time.Minute), mr
}

func TestFetchJSONReadThrough(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return payload{Total: 1471.48}, nil
	}

	key, err := c.Key(ctx, "INVOICE", "abc")
	require.NoError(t, err)
	require.Equal(t, "totals:INVOICE:abc:v1", key)

	var got payload
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	require.Equal(t, 1471.48, got.Total)
	require.Equal(t, 1, calls)
	require.True(t, mr.Exists(key))
	require.Equal(t, time.Minute, mr.TTL(key))

	require.NoError(t, c.Invalidate(ctx, "INVOICE", "abc"))
	require.False(t, mr.Exists(key))
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	require.Equal(t, 2, calls)
}

func TestBumpChangesKeys(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	before, err := c.Key(ctx, "QUOTE", "q1")
	require.NoError(t, err)
	require.NoError(t, c.Bump(ctx))
	after, err := c.Key(ctx, "QUOTE", "q1")
	require.NoError(t, err)
	require.NotEqual(t, before, after)
	require.Equal(t, "totals:QUOTE:q1:v2", after)
}

func TestFetchJSONLoaderError(t *testing.T) {
	c, mr := newTestCache(t)
	boom := errors.New("boom")
	var got payload
	err := c.FetchJSON(context.Background(), "totals:x:v1", &got, func(context.Context) (any, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("totals:x:v1"))
}

func TestNilCacheLoadsDirectly(t *testing.T) {
	var c *JSONCache
	var got payload
	require.NoError(t, c.FetchJSON(context.Background(), "k", &got, func(context.Context) (any, error) {
		return payload{Total: 3}, nil
	}))
	require.Equal(t, 3.0, got.Total)
	require.NoError(t, c.Bump(context.Background()))
}
