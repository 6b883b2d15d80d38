package cookiejar

import (
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/always-cache/httpsim/rfc6265"

	"github.com/rs/zerolog"
)

const (
	// DefaultSessionLifetime stands in for "until the browser is closed".
	DefaultSessionLifetime = 24 * time.Hour
	// fallbackDomain is used when no hostname can be derived from a URL.
	fallbackDomain = "localhost"
)

type Config struct {
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Clock returns the current time, time.Now if nil.
	Clock func() time.Time
	// Lifetime of cookies without Max-Age or Expires.
	SessionLifetime time.Duration
}

// Jar stores cookies per exact hostname and cookie name.
// All operations are serialized by a single mutex.
type Jar struct {
	mu              sync.Mutex
	domains         map[string]*bucket
	log             zerolog.Logger
	clock           func() time.Time
	sessionLifetime time.Duration
}

func New(config Config) *Jar {
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}
	j := &Jar{
		domains:         make(map[string]*bucket),
		log:             logger.With().Str("component", "cookies").Logger(),
		clock:           config.Clock,
		sessionLifetime: config.SessionLifetime,
	}
	if j.clock == nil {
		j.clock = time.Now
	}
	if j.sessionLifetime <= 0 {
		j.sessionLifetime = DefaultSessionLifetime
	}
	return j
}

func (j *Jar) now() time.Time {
	return j.clock().Truncate(time.Millisecond)
}

// ParseCookie parses a Set-Cookie header value as if it was received now.
// It returns nil only for an empty value.
func (j *Jar) ParseCookie(header string) *Cookie {
	return parseCookie(header, j.now(), j.sessionLifetime)
}

// StoreCookies parses the Set-Cookie values of a response from rawURL and stores
// them under the URL's hostname. Cookies with the same name are replaced.
// It returns the number of cookies stored for the hostname.
func (j *Jar) StoreCookies(rawURL string, headers ...string) int {
	now := j.now()
	target := parseTarget(rawURL)

	j.mu.Lock()
	defer j.mu.Unlock()
	b, ok := j.domains[target.domain]
	for _, header := range headers {
		c := parseCookie(header, now, j.sessionLifetime)
		if c == nil {
			continue
		}
		if !ok {
			b = newBucket()
			j.domains[target.domain] = b
			ok = true
		}
		b.put(c)
		j.log.Debug().
			Str("domain", target.domain).
			Str("name", c.Name).
			Bool("session", c.Attributes.Session).
			Time("expiry", c.ExpiresAt).
			Msg("Stored cookie")
	}
	if !ok {
		return 0
	}
	return b.len()
}

// Cookies returns the cookies to send with a request to rawURL, in insertion order.
// Expired cookies of the domain are removed, cookies whose path does not match
// are skipped, as are Secure cookies for non-https URLs.
func (j *Jar) Cookies(rawURL string) []Cookie {
	now := j.now()
	target := parseTarget(rawURL)

	j.mu.Lock()
	defer j.mu.Unlock()
	b, ok := j.domains[target.domain]
	if !ok {
		return nil
	}
	if removed := b.removeExpired(now); removed > 0 {
		j.log.Trace().Str("domain", target.domain).Int("count", removed).Msg("Evicted expired cookies")
	}
	cookies := make([]Cookie, 0, b.len())
	for _, c := range b.ordered() {
		if !rfc6265.PathMatch(c.Attributes.Path, target.path) {
			continue
		}
		if c.Attributes.Secure && !target.secure {
			continue
		}
		cookies = append(cookies, *c)
	}
	return cookies
}

// CookieHeader returns the Cookie header value for a request to rawURL.
// The boolean is false if there are no cookies to send.
func (j *Jar) CookieHeader(rawURL string) (string, bool) {
	cookies := j.Cookies(rawURL)
	if len(cookies) == 0 {
		return "", false
	}
	pairs := make([]rfc6265.Pair, 0, len(cookies))
	for _, c := range cookies {
		pairs = append(pairs, rfc6265.Pair{Name: c.Name, Value: c.Value})
	}
	return rfc6265.CookieString(pairs), true
}

// CookieDetails returns a diagnostic view of the cookies Cookies would return.
func (j *Jar) CookieDetails(rawURL string) []CookieDetail {
	now := j.now()
	cookies := j.Cookies(rawURL)
	details := make([]CookieDetail, 0, len(cookies))
	for _, c := range cookies {
		details = append(details, newCookieDetail(c, now))
	}
	return details
}

// ClearCookies removes all cookies of a domain and reports whether there were any.
func (j *Jar) ClearCookies(domain string) bool {
	domain = strings.ToLower(domain)
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.domains[domain]
	delete(j.domains, domain)
	if ok {
		j.log.Debug().Str("domain", domain).Msg("Cleared cookies")
	}
	return ok
}

// ClearAll removes every domain and returns how many domains there were.
func (j *Jar) ClearAll() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	count := len(j.domains)
	j.domains = make(map[string]*bucket)
	j.log.Debug().Int("domains", count).Msg("Cleared all cookies")
	return count
}

// Stats returns a snapshot of all domains, including expired cookies not yet evicted.
func (j *Jar) Stats() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()
	stats := Stats{Domains: make([]DomainStats, 0, len(j.domains))}
	for domain, b := range j.domains {
		ds := DomainStats{Domain: domain, Count: b.len(), Cookies: append([]string(nil), b.names...)}
		stats.TotalCookies += ds.Count
		stats.Domains = append(stats.Domains, ds)
	}
	sort.Slice(stats.Domains, func(i, k int) bool { return stats.Domains[i].Domain < stats.Domains[k].Domain })
	stats.TotalDomains = len(stats.Domains)
	return stats
}

// Cleanup removes expired cookies and empty domains.
// It returns the number of cookies removed.
func (j *Jar) Cleanup() int {
	now := j.now()
	j.mu.Lock()
	defer j.mu.Unlock()
	removed := 0
	empty := make([]string, 0)
	for domain, b := range j.domains {
		removed += b.removeExpired(now)
		if b.len() == 0 {
			empty = append(empty, domain)
		}
	}
	for _, domain := range empty {
		delete(j.domains, domain)
	}
	if removed > 0 || len(empty) > 0 {
		j.log.Debug().Int("count", removed).Int("domains", len(empty)).Msg("Removed expired cookies")
	}
	return removed
}

// target is the part of a request URL that selects cookies.
type target struct {
	domain string
	path   string
	secure bool
}

// parseTarget never fails, unusable URLs map to localhost.
func parseTarget(rawURL string) target {
	t := target{domain: fallbackDomain, path: "/"}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return t
	}
	if host := strings.ToLower(u.Hostname()); host != "" {
		t.domain = host
	}
	if u.Path != "" {
		t.path = u.Path
	}
	t.secure = strings.EqualFold(u.Scheme, "https")
	return t
}

// DomainOf returns the cookie domain for a URL.
func DomainOf(rawURL string) string {
	return parseTarget(rawURL).domain
}
