package httpsim

import (
	"net/http"
	"testing"

	"github.com/always-cache/httpsim/cache"
	"github.com/always-cache/httpsim/cookiejar"
	"github.com/always-cache/httpsim/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIRequest(t *testing.T) {
	s, _ := newTestSimulator(t, nil, nil)

	rr := doJSON(t, s, "POST", "/api/request", map[string]any{"url": "https://a.test/page"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	first := decode[SimResult](t, rr)
	assert.Equal(t, CacheMiss, first.Cache.Status)

	rr = doJSON(t, s, "POST", "/api/request", map[string]any{"url": "https://a.test/page", "method": "get"})
	second := decode[SimResult](t, rr)
	assert.True(t, second.Cache.Hit)
	assert.Equal(t, "HIT", second.Response.Headers.Get("x-cache"))
}

func TestAPIRequestErrors(t *testing.T) {
	s, _ := newTestSimulator(t, nil, nil)

	rr := doJSON(t, s, "POST", "/api/request", map[string]any{"method": "GET"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "url is required", decode[map[string]string](t, rr)["error"])

	rr = doJSON(t, s, "POST", "/api/request", "not an object")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	s, _ = newTestSimulator(t, failingTransport{}, nil)
	rr = doJSON(t, s, "POST", "/api/request", map[string]any{"url": "https://a.test/"})
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.NotEmpty(t, decode[SimResult](t, rr).Error)
}

func TestAPICache(t *testing.T) {
	s, _ := newTestSimulator(t, nil, nil)
	simulate(t, s, SimRequest{URL: "https://a.test/one"})
	simulate(t, s, SimRequest{URL: "https://a.test/two"})

	stats := decode[cache.Stats](t, doJSON(t, s, "GET", "/api/cache/stats", nil))
	assert.Equal(t, 2, stats.TotalEntries)

	rr := doJSON(t, s, "GET", "/api/cache/revalidate?url=https://a.test/one", nil)
	assert.Equal(t, map[string]bool{"shouldRevalidate": false}, decode[map[string]bool](t, rr))

	rr = doJSON(t, s, "DELETE", "/api/cache/entry?url=https://a.test/one&method=GET", nil)
	assert.Equal(t, map[string]bool{"invalidated": true}, decode[map[string]bool](t, rr))

	rr = doJSON(t, s, "DELETE", "/api/cache/entry", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, s, "POST", "/api/cache/cleanup", nil)
	assert.Equal(t, map[string]int{"removed": 0}, decode[map[string]int](t, rr))

	rr = doJSON(t, s, "DELETE", "/api/cache", nil)
	assert.Equal(t, map[string]int{"cleared": 1}, decode[map[string]int](t, rr))
}

func TestAPICookies(t *testing.T) {
	s, _ := newTestSimulator(t, nil, nil)

	rr := doJSON(t, s, "POST", "/api/cookies", map[string]any{
		"url":       "https://a.test/",
		"setCookie": []string{"sid=abc; Path=/; Max-Age=60", "theme=dark"},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	stored := decode[map[string]any](t, rr)
	assert.Equal(t, "a.test", stored["domain"])
	assert.Equal(t, float64(2), stored["count"])

	rr = doJSON(t, s, "GET", "/api/cookies?url=https://a.test/page", nil)
	cookies := decode[struct {
		Cookies []cookiejar.Cookie `json:"cookies"`
		Header  *string            `json:"header"`
	}](t, rr)
	require.NotNil(t, cookies.Header)
	assert.Equal(t, "sid=abc; theme=dark", *cookies.Header)
	assert.Len(t, cookies.Cookies, 2)

	rr = doJSON(t, s, "GET", "/api/cookies?url=https://b.test/", nil)
	assert.Contains(t, rr.Body.String(), `"header":null`)

	rr = doJSON(t, s, "GET", "/api/cookies/details?url=https://a.test/", nil)
	details := decode[map[string][]cookiejar.CookieDetail](t, rr)["cookies"]
	require.Len(t, details, 2)
	assert.Equal(t, int64(60), details[0].RemainingTime)

	stats := decode[cookiejar.Stats](t, doJSON(t, s, "GET", "/api/cookies/stats", nil))
	assert.Equal(t, 1, stats.TotalDomains)

	rr = doJSON(t, s, "POST", "/api/cookies/cleanup", nil)
	assert.Equal(t, map[string]int{"removed": 0}, decode[map[string]int](t, rr))

	rr = doJSON(t, s, "DELETE", "/api/cookies?domain=a.test", nil)
	assert.Equal(t, map[string]bool{"cleared": true}, decode[map[string]bool](t, rr))

	rr = doJSON(t, s, "DELETE", "/api/cookies", nil)
	assert.Equal(t, map[string]int{"cleared": 0}, decode[map[string]int](t, rr))

	rr = doJSON(t, s, "POST", "/api/cookies", map[string]any{"url": "https://a.test/"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPIValidateCookie(t *testing.T) {
	s, _ := newTestSimulator(t, nil, nil)
	rr := doJSON(t, s, "POST", "/api/cookies/validate", map[string]string{"setCookie": "session=1"})
	require.Equal(t, http.StatusOK, rr.Code)
	res := decode[struct {
		Cookie     cookiejar.Cookie     `json:"cookie"`
		Validation cookiejar.Validation `json:"validation"`
	}](t, rr)
	assert.Equal(t, "session", res.Cookie.Name)
	assert.False(t, res.Validation.Valid)
	assert.Len(t, res.Validation.Warnings, 2)

	rr = doJSON(t, s, "POST", "/api/cookies/validate", map[string]string{"setCookie": ""})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPIConcurrency(t *testing.T) {
	s, _ := newTestSimulator(t, nil, nil)

	rr := doJSON(t, s, "POST", "/api/concurrency", map[string]any{"protocol": "http2", "count": 8, "duration": 100})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	schedule := decode[transport.Schedule](t, rr)
	assert.Equal(t, transport.HTTP2, schedule.Protocol)
	assert.Equal(t, 200.0, schedule.Total)

	rr = doJSON(t, s, "POST", "/api/concurrency", map[string]any{"durations": []float64{100, 100}})
	both := decode[map[transport.Protocol]transport.Schedule](t, rr)
	assert.Len(t, both, 2)
	assert.Equal(t, 2, both[transport.HTTP1].Connections)

	rr = doJSON(t, s, "POST", "/api/concurrency", map[string]any{"protocol": "http9", "count": 1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = doJSON(t, s, "POST", "/api/concurrency", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPIHistoryAndStats(t *testing.T) {
	s, _ := newTestSimulator(t, nil, nil)
	simulate(t, s, SimRequest{URL: "https://a.test/page"})

	history := decode[map[string][]HistoryEntry](t, doJSON(t, s, "GET", "/api/history", nil))["requests"]
	require.Len(t, history, 1)
	assert.Equal(t, "https://a.test/page", history[0].URL)

	counters := decode[Counters](t, doJSON(t, s, "GET", "/api/stats", nil))
	assert.Equal(t, int64(1), counters.Requests)

	rr := doJSON(t, s, "GET", "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}
