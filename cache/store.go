package cache

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	cachekey "github.com/always-cache/httpsim/pkg/cache-key"
	"github.com/always-cache/httpsim/rfc9111"
	"github.com/always-cache/httpsim/rfc9211"

	"github.com/rs/zerolog"
)

const (
	// DefaultMaxAge applies when Cache-Control has no numeric max-age.
	DefaultMaxAge = time.Hour
	// revalidateRatio is the share of max-age after which revalidation is advised.
	revalidateRatio = 0.8
	// isoLayout matches the JavaScript Date.toISOString format.
	isoLayout = "2006-01-02T15:04:05.000Z07:00"
)

type Config struct {
	// Storage for cache entries. An in-memory map is used if nil.
	Provider CacheProvider
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Clock returns the current time, time.Now if nil.
	Clock func() time.Time
	// Freshness lifetime for responses without a usable max-age.
	DefaultMaxAge time.Duration
}

// Store memoizes responses by method and URL and answers freshness and
// conditional-request queries against them.
// All operations are serialized by a single mutex.
type Store struct {
	mu            sync.Mutex
	provider      CacheProvider
	log           zerolog.Logger
	clock         func() time.Time
	defaultMaxAge int64
}

func New(config Config) *Store {
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}
	s := &Store{
		provider:      config.Provider,
		log:           logger.With().Str("component", "cache").Logger(),
		clock:         config.Clock,
		defaultMaxAge: int64(config.DefaultMaxAge / time.Second),
	}
	if s.provider == nil {
		s.provider = NewMemCache()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.defaultMaxAge <= 0 {
		s.defaultMaxAge = int64(DefaultMaxAge / time.Second)
	}
	return s
}

// now returns the current time with millisecond resolution.
func (s *Store) now() time.Time {
	return s.clock().Truncate(time.Millisecond)
}

// Store saves the response under the method and URL, replacing any previous entry.
// It returns the entity tag of the stored response, which is generated from the
// body if the response has no ETag header.
func (s *Store) Store(url, method string, res Response, cacheControl string) string {
	now := s.now()
	key := cachekey.New(method, url)
	directives := rfc9111.ParseCacheControl(cacheControl)
	maxAge := s.defaultMaxAge
	if seconds, ok := directives.MaxAge(); ok {
		maxAge = seconds
	}

	body := encodeBody(res.Body)
	headers := res.Headers.Clone()
	etag := headers.Get("ETag")
	if etag == "" {
		etag = GenerateETag(body)
		headers.Set("ETag", etag)
	}
	lastModified := headers.Get("Last-Modified")
	if lastModified == "" {
		lastModified = rfc9111.ToHttpDate(now)
	}
	statusText := res.StatusText
	if statusText == "" {
		statusText = http.StatusText(res.StatusCode)
	}

	entry := Entry{
		Key: key.String(),
		Response: Response{
			StatusCode: res.StatusCode,
			StatusText: statusText,
			Headers:    headers,
			Body:       res.Body,
		},
		StoredAt:       now,
		ExpiresAt:      now.Add(time.Duration(maxAge) * time.Second),
		ETag:           etag,
		LastModified:   lastModified,
		LastAccessedAt: now,
		Metadata: Metadata{
			URL:        url,
			Method:     key.Method,
			Size:       len(body),
			MaxAge:     maxAge,
			Directives: directives,
		},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.provider.Put(entry); err != nil {
		s.log.Error().Err(err).Str("key", entry.Key).Msg("Could not write to cache")
		return etag
	}
	s.log.Debug().
		Str("key", entry.Key).
		Str("etag", etag).
		Int64("maxAge", maxAge).
		Int("size", len(body)).
		Time("expiry", entry.ExpiresAt).
		Msg("Cache write")
	return etag
}

// Retrieve looks up the response for the method and URL.
// Expired entries are purged and reported as misses. If the request headers
// validate the stored response, a 304 result without body is returned.
func (s *Store) Retrieve(url, method string, requestHeaders Header) LookupResult {
	now := s.now()
	key := cachekey.New(method, url).String()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok, err := s.provider.Get(key)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Could not retrieve from cache")
		return LookupResult{Reason: MissNotFound}
	}
	if !ok {
		s.log.Trace().Str("key", key).Msg("Cache miss")
		return LookupResult{Reason: MissNotFound}
	}
	if entry.IsExpired(now) {
		s.purge(key)
		expiredAt := entry.ExpiresAt
		s.log.Trace().Str("key", key).Time("expiry", expiredAt).Msg("Evicted expired entry")
		return LookupResult{Reason: MissExpired, ExpiredAt: &expiredAt}
	}

	entry.AccessCount++
	entry.LastAccessedAt = now
	if err := s.provider.Put(entry); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Could not update access stats")
	}

	validation := rfc9111.EvaluateConditional(
		requestHeaders.Get("If-None-Match"),
		requestHeaders.Get("If-Modified-Since"),
		rfc9111.Validators{ETag: entry.ETag, LastModified: entry.LastModified},
	)
	if validation.NotModified() {
		s.log.Trace().Str("key", key).Msg("Conditional request validated")
		return s.notModified(entry, validation, now)
	}

	headers := entry.Response.Headers.Clone()
	s.addHitHeaders(headers, entry, now)
	return LookupResult{
		Hit:           true,
		StatusCode:    entry.Response.StatusCode,
		StatusText:    entry.Response.StatusText,
		Headers:       headers,
		Body:          entry.Response.Body,
		Cached:        true,
		CacheAge:      entry.Age(now).Milliseconds(),
		RemainingTime: entry.RemainingTime(now).Milliseconds(),
	}
}

func (s *Store) notModified(entry Entry, validation rfc9111.Validation, now time.Time) LookupResult {
	headers := Header{}
	cacheControl := entry.Metadata.Directives.Original()
	if cacheControl == "" {
		cacheControl = fmt.Sprintf("max-age=%d", entry.Metadata.MaxAge)
	}
	headers.Set("Cache-Control", cacheControl)
	if validation == rfc9111.ValidationETag {
		headers.Set("ETag", entry.ETag)
	}
	headers.Set("Last-Modified", entry.LastModified)
	s.addHitHeaders(headers, entry, now)
	return LookupResult{
		Hit:           true,
		NotModified:   true,
		StatusCode:    http.StatusNotModified,
		StatusText:    http.StatusText(http.StatusNotModified),
		Headers:       headers,
		Cached:        true,
		CacheAge:      entry.Age(now).Milliseconds(),
		RemainingTime: entry.RemainingTime(now).Milliseconds(),
	}
}

func (s *Store) addHitHeaders(headers Header, entry Entry, now time.Time) {
	cs := rfc9211.CacheStatus{}
	cs.Hit()
	cs.TimeToLive = int(entry.RemainingTime(now) / time.Second)
	headers.Set("Age", rfc9111.Age(entry.StoredAt, now))
	headers.Set("X-Cache", "HIT")
	headers.Set("Cache-Status", cs.String())
}

// ShouldRevalidate reports whether a stored entry has used up more than 80% of
// its freshness lifetime. It is advisory only, Retrieve serves the entry until it expires.
func (s *Store) ShouldRevalidate(url, method string) bool {
	now := s.now()
	key := cachekey.New(method, url).String()

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok, err := s.provider.Get(key)
	if err != nil || !ok {
		return false
	}
	threshold := time.Duration(float64(entry.Metadata.MaxAge) * revalidateRatio * float64(time.Second))
	return entry.Age(now) > threshold
}

// Invalidate removes the entry for the method and URL.
func (s *Store) Invalidate(url, method string) bool {
	key := cachekey.New(method, url).String()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.purge(key)
	if removed {
		s.log.Debug().Str("key", key).Msg("Invalidated entry")
	}
	return removed
}

// Clear removes all entries and returns how many were removed.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count, err := s.provider.Clear()
	if err != nil {
		s.log.Error().Err(err).Msg("Could not clear cache")
	}
	s.log.Debug().Int("count", count).Msg("Cleared cache")
	return count
}

// Stats returns a snapshot of all entries, including expired ones not yet evicted.
func (s *Store) Stats() Stats {
	now := s.now()
	s.mu.Lock()
	entries, err := s.provider.All()
	s.mu.Unlock()
	if err != nil {
		s.log.Error().Err(err).Msg("Could not list cache entries")
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	stats := Stats{Entries: make([]EntryStats, 0, len(entries))}
	for _, e := range entries {
		stats.TotalSize += e.Metadata.Size
		stats.Entries = append(stats.Entries, EntryStats{
			Key:           e.Key,
			URL:           e.Metadata.URL,
			Method:        e.Metadata.Method,
			Size:          e.Metadata.Size,
			Age:           int64(e.Age(now) / time.Second),
			RemainingTime: int64(e.RemainingTime(now) / time.Second),
			AccessCount:   e.AccessCount,
			LastAccessed:  e.LastAccessedAt.UTC().Format(isoLayout),
		})
	}
	stats.TotalEntries = len(stats.Entries)
	return stats
}

// Cleanup removes all expired entries and returns how many were removed.
func (s *Store) Cleanup() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.provider.All()
	if err != nil {
		s.log.Error().Err(err).Msg("Could not list cache entries")
		return 0
	}
	// collect first, then delete
	expired := make([]string, 0)
	for _, e := range entries {
		if e.IsExpired(now) {
			expired = append(expired, e.Key)
		}
	}
	removed := 0
	for _, key := range expired {
		if s.purge(key) {
			removed++
		}
	}
	if removed > 0 {
		s.log.Debug().Int("count", removed).Msg("Removed expired entries")
	}
	return removed
}

// purge must be called with the mutex held.
func (s *Store) purge(key string) bool {
	removed, err := s.provider.Purge(key)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Could not purge entry")
	}
	return removed
}
