package cachekey

import (
	"net/http"
	"net/url"
	"strings"
)

const methodSeparator = ":"

// Key identifies a stored response by request method and normalized URL.
type Key struct {
	Method string
	URL    string
}

// New creates a key for a method and URL.
// An empty method means GET; methods are upper-cased.
func New(method, rawURL string) Key {
	return Key{
		Method: NormalizeMethod(method),
		URL:    NormalizeURL(rawURL),
	}
}

// String returns the key in its `METHOD:url` form, e.g. `GET:https://a.test/x`.
func (k Key) String() string {
	return k.Method + methodSeparator + k.URL
}

func NormalizeMethod(method string) string {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return http.MethodGet
	}
	return method
}

// NormalizeURL lower-cases scheme and host and drops the fragment.
// URLs that do not parse are returned unchanged.
func NormalizeURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	if u.Host != "" && u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}
