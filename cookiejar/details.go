package cookiejar

import (
	"time"
)

const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// CookieDetail is a diagnostic projection of a cookie.
// Age and RemainingTime are in seconds. Session cookies report the remaining
// time of their synthetic lifetime.
type CookieDetail struct {
	Name          string `json:"name"`
	Value         string `json:"value"`
	Domain        string `json:"domain,omitempty"`
	Path          string `json:"path,omitempty"`
	SameSite      string `json:"sameSite,omitempty"`
	Secure        bool   `json:"secure"`
	HttpOnly      bool   `json:"httpOnly"`
	Session       bool   `json:"isSessionCookie"`
	Expires       string `json:"expires"`
	Age           int64  `json:"age"`
	RemainingTime int64  `json:"remainingTime"`
	Raw           string `json:"raw"`
}

func newCookieDetail(c Cookie, now time.Time) CookieDetail {
	remaining := c.ExpiresAt.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return CookieDetail{
		Name:          c.Name,
		Value:         c.Value,
		Domain:        c.Attributes.Domain,
		Path:          c.Attributes.Path,
		SameSite:      c.Attributes.SameSite,
		Secure:        c.Attributes.Secure,
		HttpOnly:      c.Attributes.HttpOnly,
		Session:       c.Attributes.Session,
		Expires:       c.ExpiresAt.UTC().Format(isoLayout),
		Age:           int64(now.Sub(c.CreatedAt) / time.Second),
		RemainingTime: int64(remaining / time.Second),
		Raw:           c.Raw,
	}
}

type Stats struct {
	TotalDomains int           `json:"totalDomains"`
	TotalCookies int           `json:"totalCookies"`
	Domains      []DomainStats `json:"domains"`
}

type DomainStats struct {
	Domain  string   `json:"domain"`
	Count   int      `json:"count"`
	Cookies []string `json:"cookies"`
}
