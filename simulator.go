package httpsim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/always-cache/httpsim/cache"
	"github.com/always-cache/httpsim/cookiejar"
	cachekey "github.com/always-cache/httpsim/pkg/cache-key"
	responsetransformer "github.com/always-cache/httpsim/pkg/response-transformer"
	"github.com/always-cache/httpsim/rfc9111"
	"github.com/always-cache/httpsim/rfc9211"
	"github.com/always-cache/httpsim/transport"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultHistoryTTL  = 10 * time.Minute
	DefaultHistorySize = 100
)

// allowedMethods are the methods a simulated request may use.
var allowedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

type Config struct {
	// Cache store. A memory backed store is created if nil.
	Cache *cache.Store
	// Cookie jar. An empty jar is created if nil.
	Cookies *cookiejar.Jar
	// Transport used on cache misses. The mock transport is used if nil.
	Transport transport.Transport
	// Cache-Control rules applied to origin responses before they are stored.
	Rules responsetransformer.Rules
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// How long simulated requests are kept in the history.
	HistoryTTL time.Duration
	// Maximum number of requests kept in the history.
	HistorySize uint64
	// Interval of the expired entry sweep, see Run. Zero disables it.
	CleanupInterval time.Duration
}

// Simulator is the route layer: it ties the cache store, the cookie jar
// and the transport together and exposes them as a JSON API.
type Simulator struct {
	cache           *cache.Store
	cookies         *cookiejar.Jar
	transport       transport.Transport
	rules           responsetransformer.Rules
	log             zerolog.Logger
	group           singleflight.Group
	history         *ttlcache.Cache[string, HistoryEntry]
	counters        counters
	cleanupInterval time.Duration
	router          chi.Router
}

type counters struct {
	requests  atomic.Int64
	hits      atomic.Int64
	misses    atomic.Int64
	forwarded atomic.Int64
	collapsed atomic.Int64
	errors    atomic.Int64
}

// CreateSimulator initializes the simulator and its router.
// Background processes are started with Run.
func CreateSimulator(config Config) *Simulator {
	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}

	s := &Simulator{
		cache:           config.Cache,
		cookies:         config.Cookies,
		transport:       config.Transport,
		rules:           config.Rules,
		log:             logger.With().Str("component", "simulator").Logger(),
		cleanupInterval: config.CleanupInterval,
	}
	if s.cache == nil {
		s.cache = cache.New(cache.Config{Logger: &logger})
	}
	if s.cookies == nil {
		s.cookies = cookiejar.New(cookiejar.Config{Logger: &logger})
	}
	if s.transport == nil {
		s.transport = transport.NewMock(transport.MockConfig{Logger: &logger})
	}

	historyTTL := config.HistoryTTL
	if historyTTL <= 0 {
		historyTTL = DefaultHistoryTTL
	}
	historySize := config.HistorySize
	if historySize == 0 {
		historySize = DefaultHistorySize
	}
	s.history = ttlcache.New[string, HistoryEntry](
		ttlcache.WithTTL[string, HistoryEntry](historyTTL),
		ttlcache.WithCapacity[string, HistoryEntry](historySize),
		ttlcache.WithDisableTouchOnHit[string, HistoryEntry](),
	)

	s.router = s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Simulator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SimRequest is a request to simulate.
type SimRequest struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
	// UseCache defaults to true.
	UseCache *bool `json:"useCache"`
	// ReusedConnection skips connection setup in mock timelines.
	ReusedConnection bool `json:"reusedConnection"`
}

// validate checks and normalizes the request.
func (r *SimRequest) validate() error {
	r.URL = strings.TrimSpace(r.URL)
	if r.URL == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("url must have a host")
	}
	r.Method = cachekey.NormalizeMethod(r.Method)
	if !allowedMethods[r.Method] {
		return fmt.Errorf("method %s not allowed", r.Method)
	}
	headers := make(map[string]string, len(r.Headers)+1)
	for name, value := range r.Headers {
		headers[name] = value
	}
	r.Headers = headers
	return nil
}

func (r SimRequest) useCache() bool {
	return r.UseCache == nil || *r.UseCache
}

// SimResult is the outcome of a simulated request.
type SimResult struct {
	ID       string             `json:"id"`
	Request  SimRequestEcho     `json:"request"`
	Response SimResponse        `json:"response"`
	Timeline transport.Timeline `json:"timeline"`
	Size     transport.Size     `json:"size"`
	Cache    CacheInfo          `json:"cache"`
	Cookies  CookieInfo         `json:"cookies"`
	Error    string             `json:"error,omitempty"`
}

type SimRequestEcho struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
}

type SimResponse struct {
	StatusCode int          `json:"statusCode"`
	StatusText string       `json:"statusText"`
	Headers    cache.Header `json:"headers"`
	Body       any          `json:"body,omitempty"`
	Protocol   string       `json:"protocol,omitempty"`
}

// CacheInfo describes how the cache handled a request.
// Age and RemainingTime are in milliseconds.
type CacheInfo struct {
	Status           string           `json:"status"`
	Hit              bool             `json:"hit"`
	NotModified      bool             `json:"notModified,omitempty"`
	Reason           cache.MissReason `json:"reason,omitempty"`
	ExpiredAt        *time.Time       `json:"expiredAt,omitempty"`
	Stored           bool             `json:"stored"`
	Collapsed        bool             `json:"collapsed"`
	ETag             string           `json:"etag,omitempty"`
	Age              int64            `json:"age,omitempty"`
	RemainingTime    int64            `json:"remainingTime,omitempty"`
	ShouldRevalidate bool             `json:"shouldRevalidate,omitempty"`
	CacheStatus      string           `json:"cacheStatus"`
}

// MarshalJSON always writes age and remainingTime for hits, even when zero.
func (c CacheInfo) MarshalJSON() ([]byte, error) {
	type plain CacheInfo
	if !c.Hit {
		return json.Marshal(plain(c))
	}
	return json.Marshal(struct {
		plain
		Age           int64 `json:"age"`
		RemainingTime int64 `json:"remainingTime"`
	}{plain(c), c.Age, c.RemainingTime})
}

type CookieInfo struct {
	// Sent is the Cookie header sent with the request.
	Sent     string   `json:"sent,omitempty"`
	Received []string `json:"received,omitempty"`
	// Stored is the number of cookies held for the domain afterwards.
	Stored int `json:"stored"`
}

// Cache statuses reported in CacheInfo and X-Cache.
const (
	CacheHit         = "HIT"
	CacheRevalidated = "REVALIDATED"
	CacheMiss        = "MISS"
	CacheBypass      = "BYPASS"
)

// Simulate runs one simulated request: it attaches cookies from the jar,
// answers from the cache if possible, otherwise calls the transport,
// stores cacheable responses and absorbs Set-Cookie headers.
//
// The returned error is only set for invalid requests. Transport failures
// produce a 502 result.
func (s *Simulator) Simulate(ctx context.Context, req SimRequest) (SimResult, error) {
	if err := req.validate(); err != nil {
		return SimResult{}, err
	}
	started := time.Now()
	s.counters.requests.Inc()

	result := SimResult{
		ID: uuid.NewString(),
		Request: SimRequestEcho{
			Method:  req.Method,
			URL:     req.URL,
			Headers: req.Headers,
		},
	}
	log := s.log.With().Str("id", result.ID).Str("method", req.Method).Str("url", req.URL).Logger()

	if explicit, ok := headerValue(req.Headers, "Cookie"); ok {
		result.Cookies.Sent = explicit
	} else if cookieHeader, ok := s.cookies.CookieHeader(req.URL); ok {
		req.Headers["Cookie"] = cookieHeader
		result.Cookies.Sent = cookieHeader
	}

	cs := rfc9211.CacheStatus{}
	cacheable := req.useCache() && (req.Method == http.MethodGet || req.Method == http.MethodHead)
	switch {
	case !req.useCache():
		cs.Forward(rfc9211.FwdReasonBypass)
		result.Cache.Status = CacheBypass
	case !cacheable:
		cs.Forward(rfc9211.FwdReasonMethod)
		result.Cache.Status = CacheBypass
	default:
		lookup := s.cache.Retrieve(req.URL, req.Method, cache.Header(req.Headers).Clone())
		if lookup.Hit {
			s.counters.hits.Inc()
			s.fromCache(&result, req, lookup, started)
			s.remember(result)
			log.Debug().Str("status", result.Cache.Status).Int("statusCode", result.Response.StatusCode).Msg("Served from cache")
			return result, nil
		}
		s.counters.misses.Inc()
		result.Cache.Status = CacheMiss
		result.Cache.Reason = lookup.Reason
		result.Cache.ExpiredAt = lookup.ExpiredAt
		if lookup.Reason == cache.MissExpired {
			cs.Forward(rfc9211.FwdReasonStale)
		} else {
			cs.Forward(rfc9211.FwdReasonUriMiss)
		}
	}

	res, collapsed, err := s.forward(ctx, req, cacheable)
	if err != nil {
		s.counters.errors.Inc()
		log.Error().Err(err).Msg("Error contacting origin")
		result.Error = err.Error()
		result.Response = SimResponse{
			StatusCode: http.StatusBadGateway,
			StatusText: http.StatusText(http.StatusBadGateway),
			Headers:    cache.Header{"Cache-Status": cs.String()},
			Body:       map[string]string{"error": "Error contacting origin"},
		}
		result.Cache.CacheStatus = cs.String()
		s.remember(result)
		return result, nil
	}
	cs.Collapsed = collapsed
	result.Cache.Collapsed = collapsed

	headers := cache.Header(res.Headers).Clone()
	s.rules.Apply(req.Method, req.URL, res.StatusCode, headers)

	if len(res.SetCookies) > 0 {
		result.Cookies.Received = res.SetCookies
		result.Cookies.Stored = s.cookies.StoreCookies(req.URL, res.SetCookies...)
	}

	cacheControl := headers.Get("Cache-Control")
	if cacheable && res.StatusCode == http.StatusOK && !rfc9111.ParseCacheControl(cacheControl).NoStore() {
		etag := s.cache.Store(req.URL, req.Method, cache.Response{
			StatusCode: res.StatusCode,
			StatusText: res.StatusText,
			Headers:    headers,
			Body:       res.Body,
		}, cacheControl)
		if headers.Get("ETag") == "" {
			headers.Set("ETag", etag)
		}
		cs.Stored = true
		result.Cache.Stored = true
		result.Cache.ETag = etag
	}
	headers.Set("Cache-Status", cs.String())
	headers.Set("X-Cache", result.Cache.Status)
	result.Cache.CacheStatus = cs.String()

	result.Response = SimResponse{
		StatusCode: res.StatusCode,
		StatusText: res.StatusText,
		Headers:    headers,
		Body:       res.Body,
		Protocol:   res.Protocol,
	}
	if req.Method == http.MethodHead {
		result.Response.Body = nil
	}
	result.Timeline = res.Timeline
	result.Size = res.Size
	s.remember(result)

	log.Debug().
		Int("statusCode", res.StatusCode).
		Str("cacheStatus", cs.String()).
		Float64("total", res.Timeline.Total).
		Msg("Forwarded to origin")
	return result, nil
}

// forward calls the transport. Identical cacheable requests in flight at the
// same time share one call.
func (s *Simulator) forward(ctx context.Context, req SimRequest, collapse bool) (transport.Response, bool, error) {
	call := func() (any, error) {
		s.counters.forwarded.Inc()
		return s.transport.Do(ctx, transport.Request{
			Method:           req.Method,
			URL:              req.URL,
			Headers:          req.Headers,
			Body:             req.Body,
			ReusedConnection: req.ReusedConnection,
		})
	}
	if !collapse {
		v, err := call()
		return v.(transport.Response), false, err
	}
	cookie, _ := headerValue(req.Headers, "Cookie")
	key := cachekey.New(req.Method, req.URL).String() + "\x00" + cookie
	v, err, shared := s.group.Do(key, call)
	if shared {
		s.counters.collapsed.Inc()
	}
	if err != nil {
		return transport.Response{}, shared, err
	}
	return v.(transport.Response), shared, nil
}

// fromCache fills the result of a cache hit.
func (s *Simulator) fromCache(result *SimResult, req SimRequest, lookup cache.LookupResult, started time.Time) {
	result.Cache.Hit = true
	result.Cache.Status = CacheHit
	if lookup.NotModified {
		result.Cache.Status = CacheRevalidated
		result.Cache.NotModified = true
	}
	result.Cache.Age = lookup.CacheAge
	result.Cache.RemainingTime = lookup.RemainingTime
	result.Cache.ETag = lookup.Headers.Get("ETag")
	result.Cache.CacheStatus = lookup.Headers.Get("Cache-Status")
	result.Cache.ShouldRevalidate = s.cache.ShouldRevalidate(req.URL, req.Method)

	result.Response = SimResponse{
		StatusCode: lookup.StatusCode,
		StatusText: lookup.StatusText,
		Headers:    lookup.Headers,
		Body:       lookup.Body,
	}
	if req.Method == http.MethodHead {
		result.Response.Body = nil
	}
	result.Timeline = transport.CacheTimeline(time.Since(started))
}

// headerValue looks up a header case-insensitively.
func headerValue(headers map[string]string, name string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
