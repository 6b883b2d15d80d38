package rfc6265

import (
	"strconv"
	"strings"
)

// §  5.2.  The Set-Cookie Header
// §
// §     When a user agent receives a Set-Cookie header field in an HTTP
// §     response, the user agent MAY ignore the Set-Cookie header field in
// §     its entirety.
// §
// §     A user agent MUST use an algorithm equivalent to the following
// §     algorithm to parse a "set-cookie-string":

// SetCookie is a parsed Set-Cookie header value.
type SetCookie struct {
	Name       string
	Value      string
	Attributes Attributes
}

// Attributes are the cookie attributes the simulator understands.
type Attributes struct {
	// MaxAge is nil if the attribute was absent or not a number.
	MaxAge *int64 `json:"maxAge,omitempty"`
	// Expires is the literal attribute value.
	Expires  string `json:"expires,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Path     string `json:"path,omitempty"`
	SameSite string `json:"sameSite,omitempty"`
	Secure   bool   `json:"secure"`
	HttpOnly bool   `json:"httpOnly"`
}

// HasExpiry reports whether an explicit lifetime was given.
func (a Attributes) HasExpiry() bool {
	return a.MaxAge != nil || a.Expires != ""
}

// ParseSetCookie parses a set-cookie-string.
// It returns false only for an empty header value.
func ParseSetCookie(header string) (SetCookie, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return SetCookie{}, false
	}
	// §     1.  If the set-cookie-string contains a %x3B (";") character:
	// §
	// §            The name-value-pair string consists of the characters up to,
	// §            but not including, the first %x3B (";"), and the unparsed-
	// §            attributes consist of the remainder of the set-cookie-string
	// §            (including the %x3B (";") in question).
	segments := strings.Split(header, ";")
	// §     3.  If the name-value-pair string lacks a %x3D ("=") character,
	// §         ignore the set-cookie-string entirely.
	//
	// Such cookies are kept here with an empty value, the jar is for demonstration.
	name, value, _ := strings.Cut(segments[0], "=")
	sc := SetCookie{
		// §     5.  Remove any leading or trailing WSP characters from the name
		// §         string and the value string.
		Name:  strings.TrimSpace(name),
		Value: strings.TrimSpace(value),
	}
	for _, av := range segments[1:] {
		parseAttribute(&sc.Attributes, av)
	}
	return sc, true
}

// §  5.2.  [...]
// §     4.  If the cookie-av string contains a %x3D ("=") character:
// §
// §            The (possibly empty) attribute-name string consists of the
// §            characters up to, but not including, the first %x3D ("=")
// §            character, and the (possibly empty) attribute-value string
// §            consists of the characters after the first %x3D ("=")
// §            character.
// §
// §         Otherwise:
// §
// §            The attribute-name string consists of the entire cookie-av
// §            string, and the attribute-value string is empty.
func parseAttribute(attrs *Attributes, av string) {
	name, value, _ := strings.Cut(av, "=")
	name = strings.ToLower(strings.TrimSpace(name))
	value = strings.TrimSpace(value)
	switch name {
	// §  5.2.1.  The Expires Attribute
	case "expires":
		attrs.Expires = value
	// §  5.2.2.  The Max-Age Attribute
	// §
	// §     If the first character of the attribute-value is not a DIGIT or a "-"
	// §     character, ignore the cookie-av.
	case "max-age":
		if seconds, ok := parseMaxAge(value); ok {
			attrs.MaxAge = &seconds
		}
	// §  5.2.3.  The Domain Attribute
	case "domain":
		attrs.Domain = strings.ToLower(strings.TrimPrefix(value, "."))
	// §  5.2.4.  The Path Attribute
	case "path":
		attrs.Path = value
	// §  5.2.5.  The Secure Attribute
	case "secure":
		attrs.Secure = true
	// §  5.2.6.  The HttpOnly Attribute
	case "httponly":
		attrs.HttpOnly = true
	case "samesite":
		attrs.SameSite = value
	}
	// §     [...] the user agent MUST ignore attributes it does not recognize.
}

// maxAgeLimit caps Max-Age so that the resulting expiry time stays representable.
const maxAgeLimit = 2147483648

// parseMaxAge parses a Max-Age value, capping large positive values at maxAgeLimit.
func parseMaxAge(value string) (int64, bool) {
	seconds, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		numErr, ok := err.(*strconv.NumError)
		if !ok || numErr.Err != strconv.ErrRange {
			return 0, false
		}
		if strings.HasPrefix(value, "-") {
			return -maxAgeLimit, true
		}
		return maxAgeLimit, true
	}
	if seconds > maxAgeLimit {
		return maxAgeLimit, true
	}
	return seconds, true
}
