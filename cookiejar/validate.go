package cookiejar

import (
	"fmt"
	"strings"
)

// sensitiveNameParts mark cookies that likely carry credentials.
var sensitiveNameParts = []string{"session", "token", "auth"}

// Validation is the advisory result of ValidateCookie.
type Validation struct {
	Valid           bool     `json:"valid"`
	Warnings        []string `json:"warnings"`
	Recommendations []string `json:"recommendations"`
}

// ValidateCookie lints a cookie's security attributes.
// Only warnings make a cookie invalid, recommendations are informational.
func ValidateCookie(c Cookie) Validation {
	v := Validation{
		Warnings:        []string{},
		Recommendations: []string{},
	}
	if isSensitive(c.Name) {
		if !c.Attributes.Secure {
			v.Warnings = append(v.Warnings, fmt.Sprintf("Cookie %q looks sensitive but is not marked Secure", c.Name))
		}
		if !c.Attributes.HttpOnly {
			v.Warnings = append(v.Warnings, fmt.Sprintf("Cookie %q looks sensitive but is readable from JavaScript (no HttpOnly)", c.Name))
		}
	}
	if c.Attributes.SameSite == "" {
		v.Recommendations = append(v.Recommendations, "Set SameSite=Lax or SameSite=Strict to limit cross-site requests")
	} else if strings.EqualFold(c.Attributes.SameSite, "none") && !c.Attributes.Secure {
		v.Warnings = append(v.Warnings, "SameSite=None requires the Secure attribute")
	}
	if !c.Attributes.HasExpiry() {
		v.Recommendations = append(v.Recommendations, "Set Max-Age or Expires to control the cookie lifetime explicitly")
	}
	v.Valid = len(v.Warnings) == 0
	return v
}

func isSensitive(name string) bool {
	name = strings.ToLower(name)
	for _, part := range sensitiveNameParts {
		if strings.Contains(name, part) {
			return true
		}
	}
	return false
}
