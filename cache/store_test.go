package cache

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/always-cache/httpsim/rfc9111"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, provider CacheProvider) (*Store, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2024, 3, 9, 10, 11, 12, 0, time.UTC)}
	logger := zerolog.Nop()
	return New(Config{
		Provider: provider,
		Logger:   &logger,
		Clock:    clock.Now,
	}), clock
}

func okResponse(body any) Response {
	return Response{StatusCode: http.StatusOK, Headers: Header{}, Body: body}
}

func TestRetrieveNotFound(t *testing.T) {
	store, _ := newTestStore(t, nil)
	res := store.Retrieve("https://a.test/x", "GET", nil)
	assert.False(t, res.Hit)
	assert.Equal(t, MissNotFound, res.Reason)
}

func TestStoreThenExpire(t *testing.T) {
	store, clock := newTestStore(t, nil)
	store.Store("https://a.test/x", "GET", okResponse(map[string]any{"v": 1}), "max-age=1")

	res := store.Retrieve("https://a.test/x", "GET", nil)
	require.True(t, res.Hit)
	assert.True(t, res.Cached)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, map[string]any{"v": 1}, res.Body)
	assert.Equal(t, "HIT", res.Headers.Get("X-Cache"))
	assert.Equal(t, "0", res.Headers.Get("Age"))
	assert.Equal(t, int64(1000), res.RemainingTime)

	clock.Advance(1001 * time.Millisecond)
	res = store.Retrieve("https://a.test/x", "GET", nil)
	assert.False(t, res.Hit)
	assert.Equal(t, MissExpired, res.Reason)
	require.NotNil(t, res.ExpiredAt)

	// the expired entry was evicted
	res = store.Retrieve("https://a.test/x", "GET", nil)
	assert.Equal(t, MissNotFound, res.Reason)
}

func TestStillFreshAtExpiry(t *testing.T) {
	store, clock := newTestStore(t, nil)
	store.Store("https://a.test/x", "GET", okResponse("body"), "max-age=1")
	clock.Advance(time.Second)
	assert.True(t, store.Retrieve("https://a.test/x", "GET", nil).Hit)
}

func TestMaxAgeZero(t *testing.T) {
	store, clock := newTestStore(t, nil)
	store.Store("https://a.test/x", "GET", okResponse("body"), "max-age=0")
	assert.True(t, store.Retrieve("https://a.test/x", "GET", nil).Hit)
	clock.Advance(time.Millisecond)
	assert.Equal(t, MissExpired, store.Retrieve("https://a.test/x", "GET", nil).Reason)
}

func TestHugeMaxAgeIsCapped(t *testing.T) {
	store, clock := newTestStore(t, nil)
	store.Store("https://a.test/x", "GET", okResponse("body"), "max-age=10000000000")
	clock.Advance(time.Millisecond)
	res := store.Retrieve("https://a.test/x", "GET", nil)
	require.True(t, res.Hit, "reason: %s", res.Reason)
	assert.Equal(t, int64(2147483648*1000-1), res.RemainingTime)
}

func TestHitJSONCarriesZeroAges(t *testing.T) {
	store, _ := newTestStore(t, nil)
	store.Store("https://a.test/x", "GET", okResponse("body"), "max-age=0")

	b, err := json.Marshal(store.Retrieve("https://a.test/x", "GET", nil))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"cacheAge":0`)
	assert.Contains(t, string(b), `"remainingTime":0`)

	b, err = json.Marshal(store.Retrieve("https://a.test/y", "GET", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"hit":false,"reason":"not-found"}`, string(b))
}

func TestInvalidMaxAgeUsesDefaultTTL(t *testing.T) {
	store, clock := newTestStore(t, nil)
	store.Store("https://a.test/x", "GET", okResponse("body"), "no-cache, max-age=soon")
	stats := store.Stats()
	require.Len(t, stats.Entries, 1)
	assert.Equal(t, int64(3600), stats.Entries[0].RemainingTime)

	clock.Advance(time.Hour)
	assert.True(t, store.Retrieve("https://a.test/x", "GET", nil).Hit)
	clock.Advance(time.Millisecond)
	assert.False(t, store.Retrieve("https://a.test/x", "GET", nil).Hit)
}

func TestETagRoundTrip(t *testing.T) {
	store, _ := newTestStore(t, nil)
	etag := store.Store("https://a.test/x", "GET", okResponse(map[string]any{"v": 1}), "max-age=60")
	require.NotEmpty(t, etag)

	res := store.Retrieve("https://a.test/x", "GET", Header{"if-none-match": etag})
	require.True(t, res.Hit)
	assert.True(t, res.NotModified)
	assert.Equal(t, http.StatusNotModified, res.StatusCode)
	assert.Nil(t, res.Body)
	assert.Equal(t, etag, res.Headers.Get("ETag"))
	assert.Equal(t, "max-age=60", res.Headers.Get("Cache-Control"))
	assert.NotEmpty(t, res.Headers.Get("Last-Modified"))
	assert.Equal(t, "0", res.Headers.Get("Age"))
}

func TestOriginETagIsKept(t *testing.T) {
	store, _ := newTestStore(t, nil)
	res := okResponse("body")
	res.Headers.Set("etag", `"v1"`)
	assert.Equal(t, `"v1"`, store.Store("https://a.test/x", "GET", res, ""))
	assert.False(t, store.Retrieve("https://a.test/x", "GET", Header{"If-None-Match": "v1"}).NotModified)
}

func TestGeneratedETagIsStable(t *testing.T) {
	store, _ := newTestStore(t, nil)
	first := store.Store("https://a.test/x", "GET", okResponse(map[string]any{"v": 1}), "")
	second := store.Store("https://a.test/y", "GET", okResponse(map[string]any{"v": 1}), "")
	assert.Equal(t, first, second)

	full := store.Retrieve("https://a.test/x", "GET", nil)
	assert.Equal(t, first, full.Headers.Get("ETag"))
}

func TestLastModifiedValidation(t *testing.T) {
	store, clock := newTestStore(t, nil)
	store.Store("https://a.test/x", "GET", okResponse("body"), "max-age=60")
	lastModified := rfc9111.ToHttpDate(clock.Now())

	res := store.Retrieve("https://a.test/x", "GET", Header{"If-Modified-Since": lastModified})
	assert.Equal(t, http.StatusNotModified, res.StatusCode)
	assert.Empty(t, res.Headers.Get("ETag"))
	assert.Equal(t, lastModified, res.Headers.Get("Last-Modified"))

	earlier := rfc9111.ToHttpDate(clock.Now().Add(-time.Second))
	res = store.Retrieve("https://a.test/x", "GET", Header{"If-Modified-Since": earlier})
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "body", res.Body)
}

func TestOriginLastModified(t *testing.T) {
	store, _ := newTestStore(t, nil)
	res := okResponse("body")
	res.Headers.Set("Last-Modified", "Mon, 01 Jan 2024 00:00:00 GMT")
	store.Store("https://a.test/x", "GET", res, "")

	hit := store.Retrieve("https://a.test/x", "GET", Header{"If-Modified-Since": "Tue, 02 Jan 2024 00:00:00 GMT"})
	assert.True(t, hit.NotModified)
}

func TestInvalidIfModifiedSinceIsFullHit(t *testing.T) {
	store, _ := newTestStore(t, nil)
	store.Store("https://a.test/x", "GET", okResponse("body"), "")
	res := store.Retrieve("https://a.test/x", "GET", Header{"If-Modified-Since": "last tuesday"})
	assert.True(t, res.Hit)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestCacheControlFallbackOn304(t *testing.T) {
	store, _ := newTestStore(t, nil)
	etag := store.Store("https://a.test/x", "GET", okResponse("body"), "")
	res := store.Retrieve("https://a.test/x", "GET", Header{"If-None-Match": etag})
	assert.Equal(t, "max-age=3600", res.Headers.Get("Cache-Control"))
}

func TestOverwrite(t *testing.T) {
	store, _ := newTestStore(t, nil)
	oldETag := store.Store("https://a.test/x", "GET", okResponse("old"), "max-age=60")
	newETag := store.Store("https://a.test/x", "GET", okResponse("new"), "max-age=60")
	assert.NotEqual(t, oldETag, newETag)

	res := store.Retrieve("https://a.test/x", "GET", Header{"If-None-Match": oldETag})
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "new", res.Body)
	assert.Equal(t, 1, store.Stats().TotalEntries)
}

func TestMethodIsPartOfKey(t *testing.T) {
	store, _ := newTestStore(t, nil)
	store.Store("https://a.test/x", "", okResponse("get"), "")
	assert.True(t, store.Retrieve("https://a.test/x", "get", nil).Hit)
	assert.False(t, store.Retrieve("https://a.test/x", "POST", nil).Hit)
}

func TestAccessStats(t *testing.T) {
	store, clock := newTestStore(t, nil)
	store.Store("https://a.test/x", "GET", okResponse("body"), "")
	store.Retrieve("https://a.test/x", "GET", nil)
	clock.Advance(2 * time.Second)
	store.Retrieve("https://a.test/x", "GET", nil)

	stats := store.Stats()
	require.Len(t, stats.Entries, 1)
	e := stats.Entries[0]
	assert.Equal(t, 2, e.AccessCount)
	assert.Equal(t, int64(2), e.Age)
	assert.Equal(t, "2024-03-09T10:11:14.000Z", e.LastAccessed)
	assert.Equal(t, "GET:https://a.test/x", e.Key)
	assert.Equal(t, 4, e.Size)
}

func TestShouldRevalidate(t *testing.T) {
	store, clock := newTestStore(t, nil)
	assert.False(t, store.ShouldRevalidate("https://a.test/x", "GET"))
	store.Store("https://a.test/x", "GET", okResponse("body"), "max-age=10")
	clock.Advance(8 * time.Second)
	assert.False(t, store.ShouldRevalidate("https://a.test/x", "GET"))
	clock.Advance(time.Millisecond)
	assert.True(t, store.ShouldRevalidate("https://a.test/x", "GET"))
}

func TestInvalidate(t *testing.T) {
	store, _ := newTestStore(t, nil)
	store.Store("https://a.test/x", "GET", okResponse("body"), "")
	assert.True(t, store.Invalidate("https://a.test/x", "GET"))
	assert.False(t, store.Invalidate("https://a.test/x", "GET"))
	assert.False(t, store.Retrieve("https://a.test/x", "GET", nil).Hit)
}

func TestClear(t *testing.T) {
	store, _ := newTestStore(t, nil)
	for _, u := range []string{"https://a.test/1", "https://a.test/2", "https://a.test/3"} {
		store.Store(u, "GET", okResponse(u), "")
	}
	assert.Equal(t, 3, store.Clear())
	assert.Equal(t, 0, store.Stats().TotalEntries)
}

func TestCleanup(t *testing.T) {
	store, clock := newTestStore(t, nil)
	store.Store("https://a.test/short", "GET", okResponse("a"), "max-age=1")
	store.Store("https://a.test/long", "GET", okResponse("b"), "max-age=100")
	clock.Advance(2 * time.Second)

	stats := store.Stats()
	assert.Equal(t, 2, stats.TotalEntries)
	assert.Equal(t, int64(0), stats.Entries[1].RemainingTime)

	assert.Equal(t, 1, store.Cleanup())
	assert.Equal(t, 0, store.Cleanup())
	assert.Equal(t, 1, store.Stats().TotalEntries)
}

func TestSQLiteProvider(t *testing.T) {
	provider, err := NewSQLiteCache("file:store-test?mode=memory&cache=shared")
	require.NoError(t, err)
	defer provider.Close()
	store, clock := newTestStore(t, provider)

	etag := store.Store("https://a.test/x", "GET", okResponse(map[string]any{"v": 1}), "public, max-age=5")
	res := store.Retrieve("https://a.test/x", "GET", nil)
	require.True(t, res.Hit)
	// bodies come back JSON-decoded
	assert.Equal(t, map[string]any{"v": float64(1)}, res.Body)

	res = store.Retrieve("https://a.test/x", "GET", Header{"If-None-Match": etag})
	assert.Equal(t, "public, max-age=5", res.Headers.Get("Cache-Control"))

	assert.Equal(t, 2, store.Stats().Entries[0].AccessCount)

	clock.Advance(6 * time.Second)
	assert.Equal(t, 1, store.Cleanup())
	assert.Equal(t, 0, store.Clear())
}

func TestConcurrentAccess(t *testing.T) {
	store, _ := newTestStore(t, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			url := fmt.Sprintf("https://a.test/%d", i%3)
			for j := 0; j < 50; j++ {
				store.Store(url, "GET", okResponse(j), "max-age=60")
				store.Retrieve(url, "GET", nil)
				store.ShouldRevalidate(url, "GET")
				store.Cleanup()
				store.Stats()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 3, store.Stats().TotalEntries)
}
