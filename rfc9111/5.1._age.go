package rfc9111

import "time"

// §  5.1.  Age
// §
// §     The "Age" response header field conveys the sender's estimate of the
// §     time since the response was generated or successfully validated at
// §     the origin server.
// §
// §       Age = delta-seconds
// §
// §     The Age field value is a non-negative integer, representing time in
// §     seconds (see Section 1.2.2).

// Age returns the Age header value for a response stored at storedAt.
// The simulator has no upstream caches, so the age is the resident time only.
func Age(storedAt, now time.Time) string {
	return ToDeltaSeconds(now.Sub(storedAt))
}
