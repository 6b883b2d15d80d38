package cache

import (
	"encoding/json"
	"net/textproto"
	"strings"
	"time"

	"github.com/always-cache/httpsim/rfc9111"
)

// Header is a single-valued header map.
// Keys set through Set are canonicalized, Get matches case-insensitively.
type Header map[string]string

func (h Header) Get(name string) string {
	if v, ok := h[textproto.CanonicalMIMEHeaderKey(name)]; ok {
		return v
	}
	// headers decoded from JSON are not necessarily canonical
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func (h Header) Set(name, value string) {
	h.Del(name)
	h[textproto.CanonicalMIMEHeaderKey(name)] = value
}

func (h Header) Del(name string) {
	for k := range h {
		if strings.EqualFold(k, name) {
			delete(h, k)
		}
	}
}

// Clone returns a copy with canonical keys. It never returns nil.
func (h Header) Clone() Header {
	c := make(Header, len(h))
	for k, v := range h {
		c[textproto.CanonicalMIMEHeaderKey(k)] = v
	}
	return c
}

// Response is a response as handed over by the route layer.
// Body is any JSON-serializable value.
type Response struct {
	StatusCode int    `json:"statusCode"`
	StatusText string `json:"statusText"`
	Headers    Header `json:"headers"`
	Body       any    `json:"body,omitempty"`
}

// Metadata describes how an entry was stored.
type Metadata struct {
	URL    string `json:"url"`
	Method string `json:"method"`
	// Size is the length of the JSON encoded body.
	Size int `json:"size"`
	// MaxAge is the freshness lifetime in seconds.
	MaxAge     int64                `json:"maxAge"`
	Directives rfc9111.CacheControl `json:"directives"`
}

// Entry is a stored response with its freshness and access data.
type Entry struct {
	Key            string    `json:"key"`
	Response       Response  `json:"response"`
	StoredAt       time.Time `json:"storedAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	ETag           string    `json:"etag"`
	LastModified   string    `json:"lastModified"`
	AccessCount    int       `json:"accessCount"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
	Metadata       Metadata  `json:"metadata"`
}

// IsExpired reports whether the entry must no longer be served.
// An entry is still fresh at exactly its expiry time.
func (e Entry) IsExpired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Age returns the time since the entry was stored.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// RemainingTime returns the freshness left, never negative.
func (e Entry) RemainingTime(now time.Time) time.Duration {
	if remaining := e.ExpiresAt.Sub(now); remaining > 0 {
		return remaining
	}
	return 0
}

type MissReason string

const (
	MissNotFound MissReason = "not-found"
	MissExpired  MissReason = "expired"
)

// LookupResult is the outcome of Store.Retrieve.
// For hits, CacheAge and RemainingTime are in milliseconds.
type LookupResult struct {
	Hit         bool       `json:"hit"`
	Reason      MissReason `json:"reason,omitempty"`
	ExpiredAt   *time.Time `json:"expiredAt,omitempty"`
	NotModified bool       `json:"notModified,omitempty"`

	StatusCode    int    `json:"statusCode,omitempty"`
	StatusText    string `json:"statusText,omitempty"`
	Headers       Header `json:"headers,omitempty"`
	Body          any    `json:"body,omitempty"`
	Cached        bool   `json:"cached,omitempty"`
	CacheAge      int64  `json:"cacheAge,omitempty"`
	RemainingTime int64  `json:"remainingTime,omitempty"`
}

// MarshalJSON always writes cacheAge and remainingTime for hits, even when zero.
func (r LookupResult) MarshalJSON() ([]byte, error) {
	type plain LookupResult
	if !r.Hit {
		return json.Marshal(plain(r))
	}
	return json.Marshal(struct {
		plain
		CacheAge      int64 `json:"cacheAge"`
		RemainingTime int64 `json:"remainingTime"`
	}{plain(r), r.CacheAge, r.RemainingTime})
}

// Stats is a diagnostic snapshot of the store.
type Stats struct {
	TotalEntries int          `json:"totalEntries"`
	TotalSize    int          `json:"totalSize"`
	Entries      []EntryStats `json:"entries"`
}

// EntryStats describes one entry. Age and RemainingTime are in seconds.
type EntryStats struct {
	Key           string `json:"key"`
	URL           string `json:"url"`
	Method        string `json:"method"`
	Size          int    `json:"size"`
	Age           int64  `json:"age"`
	RemainingTime int64  `json:"remainingTime"`
	AccessCount   int    `json:"accessCount"`
	LastAccessed  string `json:"lastAccessed"`
}
