package rfc6265

import (
	"strings"
	"time"

	"github.com/always-cache/httpsim/rfc9111"
)

// §  5.1.1.  Dates
// §
// §     The user agent MUST use an algorithm equivalent to the following
// §     algorithm to parse a cookie-date.  Note that the various boolean
// §     flags defined as a part of the algorithm (i.e., found-time, found-
// §     day-of-month, found-month, found-year) are initially "not set".
//
// The full tokenizing algorithm is not implemented. HTTP-dates are accepted,
// as is the dashed four-digit-year variant most servers send.
const dashedCookieDateLayout = "Mon, 02-Jan-2006 15:04:05 MST"

// ParseCookieDate parses the value of an Expires attribute.
func ParseCookieDate(value string) (time.Time, error) {
	date, err := rfc9111.HttpDate(value)
	if err == nil {
		return date, nil
	}
	if date, dashedErr := time.Parse(dashedCookieDateLayout, strings.TrimSpace(value)); dashedErr == nil {
		return date.UTC(), nil
	}
	return time.Time{}, err
}
