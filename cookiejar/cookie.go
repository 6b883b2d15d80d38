package cookiejar

import (
	"time"

	"github.com/always-cache/httpsim/rfc6265"
)

// Cookie is a stored cookie record.
type Cookie struct {
	Name       string     `json:"name"`
	Value      string     `json:"value"`
	Attributes Attributes `json:"attributes"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	CreatedAt  time.Time  `json:"createdAt"`
	// Raw is the unparsed Set-Cookie value.
	Raw string `json:"raw"`
}

type Attributes struct {
	rfc6265.Attributes
	// Session is set when neither Max-Age nor Expires was given.
	Session bool `json:"isSessionCookie"`
}

// IsExpired reports whether the cookie must no longer be sent.
func (c Cookie) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// parseCookie builds a record from a Set-Cookie value received at now.
//
// Max-Age wins over Expires. An Expires value that cannot be parsed makes
// the cookie expired right away. Without either, the cookie is a session
// cookie that lives for sessionLifetime.
func parseCookie(header string, now time.Time, sessionLifetime time.Duration) *Cookie {
	sc, ok := rfc6265.ParseSetCookie(header)
	if !ok {
		return nil
	}
	c := &Cookie{
		Name:       sc.Name,
		Value:      sc.Value,
		Attributes: Attributes{Attributes: sc.Attributes},
		CreatedAt:  now,
		Raw:        header,
	}
	switch {
	case sc.Attributes.MaxAge != nil:
		c.ExpiresAt = now.Add(time.Duration(*sc.Attributes.MaxAge) * time.Second)
	case sc.Attributes.Expires != "":
		if expires, err := rfc6265.ParseCookieDate(sc.Attributes.Expires); err == nil {
			c.ExpiresAt = expires
		} else {
			c.ExpiresAt = now.Add(-time.Millisecond)
		}
	default:
		c.Attributes.Session = true
		c.ExpiresAt = now.Add(sessionLifetime)
	}
	return c
}

// bucket holds the cookies of one domain in insertion order.
type bucket struct {
	names   []string
	cookies map[string]*Cookie
}

func newBucket() *bucket {
	return &bucket{cookies: make(map[string]*Cookie)}
}

// put adds or replaces a cookie. A replaced cookie keeps its position.
func (b *bucket) put(c *Cookie) {
	if _, ok := b.cookies[c.Name]; !ok {
		b.names = append(b.names, c.Name)
	}
	b.cookies[c.Name] = c
}

func (b *bucket) remove(name string) bool {
	if _, ok := b.cookies[name]; !ok {
		return false
	}
	delete(b.cookies, name)
	for i, n := range b.names {
		if n == name {
			b.names = append(b.names[:i], b.names[i+1:]...)
			break
		}
	}
	return true
}

// ordered returns the cookies in insertion order.
func (b *bucket) ordered() []*Cookie {
	cookies := make([]*Cookie, 0, len(b.names))
	for _, name := range b.names {
		cookies = append(cookies, b.cookies[name])
	}
	return cookies
}

// removeExpired collects expired names first, then deletes them.
func (b *bucket) removeExpired(now time.Time) int {
	expired := make([]string, 0)
	for _, c := range b.ordered() {
		if c.IsExpired(now) {
			expired = append(expired, c.Name)
		}
	}
	for _, name := range expired {
		b.remove(name)
	}
	return len(expired)
}

func (b *bucket) len() int {
	return len(b.names)
}
