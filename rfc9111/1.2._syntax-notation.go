package rfc9111

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// §  1.2.2. Delta Seconds
// §
// §  The delta-seconds rule specifies a non-negative integer, representing time
// §  in seconds.
// §
// §      delta-seconds  = 1*DIGIT
// §
// §  If a cache receives a delta-seconds value greater than the greatest
// §  integer it can represent, or if any of its subsequent calculations overflows,
// §  the cache MUST consider the value to be 2147483648 (2^31) or the greatest
// §  positive integer it can conveniently represent.
const maxDeltaSeconds = 2147483648

// DeltaSeconds parses a delta-seconds value.
// The boolean is false if the value is not a non-negative integer.
func DeltaSeconds(secondsStr string) (int64, bool) {
	seconds, err := strconv.ParseUint(strings.TrimSpace(secondsStr), 10, 64)
	if err != nil {
		if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
			return maxDeltaSeconds, true
		}
		return 0, false
	}
	if seconds > maxDeltaSeconds {
		return maxDeltaSeconds, true
	}
	return int64(seconds), true
}

// clampDeltaSeconds caps an already parsed number of seconds at 2^31.
// Negative values are returned unchanged.
func clampDeltaSeconds(seconds float64) int64 {
	if seconds > maxDeltaSeconds {
		return maxDeltaSeconds
	}
	return int64(seconds)
}

// ToDeltaSeconds formats a duration as whole seconds, never negative.
func ToDeltaSeconds(duration time.Duration) string {
	if duration < 0 {
		duration = 0
	}
	return strconv.FormatInt(int64(duration/time.Second), 10)
}

// This section is from the HTTP specification (RFC9110), not the cache specification
//
// §  5.6.7.  Date/Time Formats
// §
// §       HTTP-date    = IMF-fixdate / obs-date
// §
// §     An example of the preferred format is
// §
// §       Sun, 06 Nov 1994 08:49:37 GMT    ; IMF-fixdate
// §
// §     Examples of the two obsolete formats are
// §
// §       Sunday, 06-Nov-94 08:49:37 GMT   ; obsolete RFC 850 format
// §       Sun Nov  6 08:49:37 1994         ; ANSI C's asctime() format
// §
// §     A recipient that parses a timestamp value in an HTTP field MUST
// §     accept all three HTTP-date formats.  When a sender generates a field
// §     that contains one or more timestamps defined as HTTP-date, the sender
// §     MUST generate those timestamps in the IMF-fixdate format.
func HttpDate(dateStr string) (time.Time, error) {
	if date, err := imfDate(dateStr); err == nil {
		return date, nil
	} else if date, obsErr := obsDate(dateStr); obsErr == nil {
		return date, nil
	} else {
		// return original error if unsuccessful
		return time.Time{}, err
	}
}

// ToHttpDate formats t as an IMF-fixdate.
func ToHttpDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

// §     An HTTP-date value represents time as an instance of Coordinated
// §     Universal Time (UTC).  The first two formats indicate UTC by the
// §     three-letter abbreviation for Greenwich Mean Time, "GMT", a
// §     predecessor of the UTC name; values in the asctime format are assumed
// §     to be in UTC.
func imfDate(dateStr string) (time.Time, error) {
	date, err := time.Parse(time.RFC1123, normalizeDateStr(dateStr))
	if err != nil {
		return date, err
	}
	// the zone name is only checked by offset, a local zone may also be called GMT
	if _, offset := date.Zone(); offset != 0 {
		return time.Time{}, fmt.Errorf("Date %s is not in GMT time", dateStr)
	}
	return date.UTC(), nil
}

// §       obs-date     = rfc850-date / asctime-date
func obsDate(dateStr string) (time.Time, error) {
	str := normalizeDateStr(dateStr)
	if date, err := time.Parse(time.RFC850, str); err == nil {
		return date.UTC(), nil
	}
	date, err := time.Parse(time.ANSIC, str)
	return date.UTC(), err
}

// §     HTTP-date is case sensitive.  Note that Section 4.2 of [CACHING]
// §     relaxes this for cache recipients.
func normalizeDateStr(dateStr string) string {
	return strings.ToUpper(strings.TrimSpace(dateStr))
}
