package provider

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*PresenceCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewPresenceCache(rdb, time.Minute), mr
}

func TestPresenceCacheRecordAndKnown(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	_, found := cache.Known(ctx, "job-1", "deadbeef")
	require.False(t, found)

	require.NoError(t, cache.Record(ctx, "job-1", "deadbeef"))

	present, found := cache.Known(ctx, "job-1", "deadbeef")
	require.True(t, found)
	require.True(t, present)
}

func TestPresenceCacheForget(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Record(ctx, "job-1", "cafebabe"))
	require.NoError(t, cache.Forget(ctx, "job-1", "cafebabe"))

	_, found := cache.Known(ctx, "job-1", "cafebabe")
	require.False(t, found)
}

func TestPresenceCacheIsolatesByJob(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Record(ctx, "job-1", "abc123"))

	_, found := cache.Known(ctx, "job-2", "abc123")
	require.False(t, found)
}

type fakeProvider struct {
	containsFn   func(ctx context.Context, key string) (bool, error)
	containsCall int
}

func (f *fakeProvider) Kind() string { return "fake" }
func (f *fakeProvider) Upload(ctx context.Context, key string, src io.Reader, size int64) error {
	return nil
}
func (f *fakeProvider) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, nil
}
func (f *fakeProvider) Delete(ctx context.Context, key string) error { return nil }
func (f *fakeProvider) Contains(ctx context.Context, key string) (bool, error) {
	f.containsCall++
	return f.containsFn(ctx, key)
}
func (f *fakeProvider) ListAll(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	return nil, nil
}

func TestContainsFallsBackToProviderOnCacheMiss(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	p := &fakeProvider{containsFn: func(ctx context.Context, key string) (bool, error) {
		return true, nil
	}}

	present, err := Contains(ctx, p, cache, "job-1", "aaaa")
	require.NoError(t, err)
	require.True(t, present)
	require.Equal(t, 1, p.containsCall)

	// Second call should be served from cache, not hit the provider again.
	present, err = Contains(ctx, p, cache, "job-1", "aaaa")
	require.NoError(t, err)
	require.True(t, present)
	require.Equal(t, 1, p.containsCall)
}

func TestContainsSkipsCacheOnNegativeResult(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	p := &fakeProvider{containsFn: func(ctx context.Context, key string) (bool, error) {
		return false, nil
	}}

	present, err := Contains(ctx, p, cache, "job-1", "bbbb")
	require.NoError(t, err)
	require.False(t, present)

	present, err = Contains(ctx, p, cache, "job-1", "bbbb")
	require.NoError(t, err)
	require.False(t, present)
	require.Equal(t, 2, p.containsCall, "negative results are not cached, so the provider is asked again")
}
