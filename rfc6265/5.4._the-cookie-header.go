package rfc6265

import "strings"

// §  5.4.  The Cookie Header
// §
// §     4.  Serialize the cookie-list into a cookie-string by processing each
// §         cookie in the cookie-list in order:
// §
// §         1.  Output the cookie's name, the %x3D ("=") character, and the
// §             cookie's value.
// §
// §         2.  If there is an unprocessed cookie in the cookie-list, output
// §             the characters %x3B and %x20 ("; ").

// Pair is a name/value pair sent in a Cookie header.
type Pair struct {
	Name  string
	Value string
}

// CookieString serializes pairs in the given order.
func CookieString(pairs []Pair) string {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(p.Name)
		b.WriteByte('=')
		b.WriteString(p.Value)
	}
	return b.String()
}
