package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/always-cache/httpsim/rfc9111"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
)

// epoch is the base for fabricated Last-Modified dates.
var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type MockConfig struct {
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Protocol reported in responses.
	Protocol Protocol
	// Realtime makes Do wait for the fabricated duration.
	Realtime bool
}

// Mock fabricates responses and timelines.
// The same method and URL always yield the same response.
type Mock struct {
	log      zerolog.Logger
	protocol Protocol
	realtime bool
}

func NewMock(config MockConfig) *Mock {
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}
	protocol := config.Protocol
	if protocol == "" {
		protocol = HTTP1
	}
	return &Mock{
		log:      logger.With().Str("component", "mock").Logger(),
		protocol: protocol,
		realtime: config.Realtime,
	}
}

func (m *Mock) Do(ctx context.Context, req Request) (Response, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return Response{}, fmt.Errorf("could not parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Response{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	seed := xxhash.Sum64String(method + " " + u.String())
	rnd := rand.New(rand.NewSource(int64(seed)))

	res := Response{
		StatusCode: statusFor(u.Path),
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Cache-Control": cacheControlFor(u.Path),
			"Last-Modified": rfc9111.ToHttpDate(epoch.Add(-time.Duration(seed%720) * time.Hour)),
			"Server":        "httpsim-mock",
		},
		Protocol: string(m.protocol),
	}
	res.StatusText = http.StatusText(res.StatusCode)
	if strings.HasPrefix(u.Path, "/login") {
		res.SetCookies = []string{
			fmt.Sprintf("sessionId=%016x; Path=/; HttpOnly; Secure; SameSite=Strict; Max-Age=3600", seed),
			"theme=light; Path=/",
		}
	}

	body := mockBody(method, u, seed, rnd)
	encoded, err := json.Marshal(body)
	if err != nil {
		return Response{}, err
	}
	res.Body = body
	res.Size = MeasureSize(encoded)
	res.Headers["Content-Length"] = strconv.Itoa(len(encoded))
	res.Timeline = mockTimeline(rnd, u.Scheme == "https", req.ReusedConnection, res.Size.Smallest())

	m.log.Trace().
		Str("method", method).
		Str("url", u.String()).
		Int("status", res.StatusCode).
		Float64("total", res.Timeline.Total).
		Msg("Fabricated response")

	if m.realtime {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case <-time.After(time.Duration(res.Timeline.Total * float64(time.Millisecond))):
		}
	} else if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	return res, nil
}

// statusFor lets /status/<code> paths ask for a specific status code.
func statusFor(path string) int {
	if rest, ok := strings.CutPrefix(path, "/status/"); ok {
		if code, err := strconv.Atoi(strings.Trim(rest, "/")); err == nil && code >= 100 && code <= 599 {
			return code
		}
	}
	return http.StatusOK
}

func cacheControlFor(path string) string {
	switch {
	case strings.Contains(path, "no-store"), strings.HasPrefix(path, "/login"):
		return "no-store"
	case strings.Contains(path, "no-cache"):
		return "no-cache, max-age=0"
	case strings.HasPrefix(path, "/static"):
		return "public, max-age=86400, immutable"
	case strings.HasPrefix(path, "/api"):
		return "private, max-age=30"
	}
	return "public, max-age=300"
}

func mockBody(method string, u *url.URL, seed uint64, rnd *rand.Rand) map[string]any {
	items := make([]map[string]any, 1+rnd.Intn(5))
	for i := range items {
		items[i] = map[string]any{
			"id":    rnd.Intn(10000),
			"name":  fmt.Sprintf("item-%d", i+1),
			"score": rnd.Intn(100),
		}
	}
	return map[string]any{
		"id":      fmt.Sprintf("%016x", seed),
		"method":  method,
		"url":     u.String(),
		"path":    u.Path,
		"message": fmt.Sprintf("Simulated response for %s %s", method, u.Path),
		"items":   items,
	}
}

// mockTimeline draws phase durations in milliseconds.
// Download time grows with the transferred size.
func mockTimeline(rnd *rand.Rand, secure, reused bool, size int) Timeline {
	between := func(lo, hi int) float64 {
		return float64(lo+rnd.Intn(hi-lo+1)) + float64(rnd.Intn(10))/10
	}
	dns := between(5, 50)
	tcp := between(10, 60)
	tls := between(20, 100)
	wait := between(40, 300)
	download := between(5, 20) + float64(size)/100

	t := Timeline{}
	if !reused {
		t.add(PhaseDNS, dns)
		t.add(PhaseTCP, tcp)
		if secure {
			t.add(PhaseTLS, tls)
		}
	}
	t.add(PhaseWait, wait)
	t.add(PhaseDownload, download)
	return t
}
