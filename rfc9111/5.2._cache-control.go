package rfc9111

import (
	"encoding/json"
	"strconv"
	"strings"
)

// §  5.2. Cache-Control
// §
// §  The "Cache-Control" header field is used to list directives for caches along
// §  the request/response chain. Cache directives are identified by a token, to
// §  be compared case-insensitively, and have an optional argument that can use both
// §  token and quoted-string syntax.
// §
// §    Cache-Control   = #cache-directive
// §
// §    cache-directive = token [ "=" ( token / quoted-string ) ]

// OriginalDirective is the reserved directive name holding the unparsed header value.
const OriginalDirective = "original"

// CacheControl holds parsed Cache-Control directives.
//
// Directive values are one of:
//   - int64 or float64 for arguments that parse as numbers,
//   - string for other arguments,
//   - true for directives without an argument.
type CacheControl struct {
	directives map[string]any
	original   string
}

// ParseCacheControl parses a single Cache-Control header value.
// Later occurrences of a directive replace earlier ones.
func ParseCacheControl(header string) CacheControl {
	cc := CacheControl{
		directives: make(map[string]any),
		original:   header,
	}
	// process directives "#" means comma-separated list
	for _, directive := range strings.Split(header, ",") {
		directive = strings.TrimSpace(directive)
		if directive == "" {
			continue
		}
		name, arg, hasArg := strings.Cut(directive, "=")
		name = getCacheControlDirectiveName(name)
		if name == "" || name == OriginalDirective {
			continue
		}
		if !hasArg {
			cc.directives[name] = true
			continue
		}
		cc.directives[name] = getCacheControlDirectiveArgument(arg)
	}
	return cc
}

func getCacheControlDirectiveName(token string) string {
	// §  [...] to be compared case-insensitively [...]
	return strings.ToLower(strings.TrimSpace(token))
}

func getCacheControlDirectiveArgument(arg string) any {
	// §  [...] argument that can use both token and quoted-string syntax. [...]
	arg = strings.Trim(strings.TrimSpace(arg), "\"")
	if n, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(arg, 64); err == nil {
		return f
	}
	return arg
}

// Get returns the parsed value of a directive.
func (c CacheControl) Get(directive string) (any, bool) {
	val, ok := c.directives[strings.ToLower(directive)]
	return val, ok
}

func (c CacheControl) HasDirective(directive string) bool {
	_, ok := c.Get(directive)
	return ok
}

// Original returns the header value the directives were parsed from.
func (c CacheControl) Original() string {
	return c.original
}

// Len returns the number of parsed directives, not counting the original value.
func (c CacheControl) Len() int {
	return len(c.directives)
}

// Map returns a copy of the directives including the original header value
// under the "original" key.
func (c CacheControl) Map() map[string]any {
	m := make(map[string]any, len(c.directives)+1)
	for k, v := range c.directives {
		m[k] = v
	}
	m[OriginalDirective] = c.original
	return m
}

func (c CacheControl) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Map())
}

func (c *CacheControl) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	c.directives = make(map[string]any, len(m))
	c.original = ""
	for k, v := range m {
		if k == OriginalDirective {
			c.original, _ = v.(string)
			continue
		}
		// JSON numbers come back as float64
		if f, ok := v.(float64); ok && f == float64(int64(f)) {
			v = int64(f)
		}
		c.directives[k] = v
	}
	return nil
}

// §  5.2.2. Response Directives

// MaxAge returns the "max-age" argument in seconds, along with a boolean indicating
// whether the directive was present with a numeric argument.
// Negative arguments are returned as-is, the response is then already stale.
//
// §  5.2.2.1. max-age
// §
// §  Argument syntax:
// §
// §      delta-seconds (see Section 1.2.2)
// §
// §  The max-age response directive indicates that the response is to be considered
// §  stale after its age is greater than the specified number of seconds.
func (c CacheControl) MaxAge() (int64, bool) {
	return c.getSeconds("max-age")
}

// NoStore reports the "no-store" directive.
//
// §  5.2.2.5.  no-store
// §
// §     The no-store response directive indicates that a cache MUST NOT store
// §     any part of either the immediate request or the response.
func (c CacheControl) NoStore() bool {
	return c.HasDirective("no-store")
}

// getSeconds returns a numeric directive argument as whole seconds.
//
// Examples:
// directive      -> 0,  false
// directive=abc  -> 0,  false
// directive=0    -> 0,  true
// directive=60   -> 60, true
// directive=1.5  -> 1,  true
// directive=1e10 -> 2147483648, true
func (c CacheControl) getSeconds(directive string) (int64, bool) {
	switch v := c.directives[directive].(type) {
	case int64:
		if v >= 0 {
			return DeltaSeconds(strconv.FormatInt(v, 10))
		}
		return v, true
	case float64:
		return clampDeltaSeconds(v), true
	}
	return 0, false
}
