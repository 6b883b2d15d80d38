package rfc9211

import (
	"fmt"
	"strings"
)

// §  2.  The Cache-Status HTTP Response Header Field
// §
// §     The Cache-Status HTTP response header field indicates caches' handling
// §     of the request corresponding to the response it occurs within.
// §
// §     Each member of the list represents a cache that has handled the
// §     request.  The first member of the list represents the cache closest to
// §     the origin server, and the last member of the list represents the
// §     cache closest to the user.

// Name is the cache identifier used in the field value.
const Name = "HTTPSim"

type Status string

const (
	StatusHit Status = "hit"
	StatusFwd Status = "fwd"
)

// §  2.2.  The fwd parameter
// §
// §     "fwd" indicates that the request went forward towards the origin, and
// §     why.
type FwdReason string

const (
	// The cache was configured to not handle this request.
	FwdReasonBypass FwdReason = "bypass"
	// The request method's semantics require the request to be forwarded.
	FwdReasonMethod FwdReason = "method"
	// The cache did not contain any responses that matched the request URI.
	FwdReasonUriMiss FwdReason = "uri-miss"
	// The cache did not contain any responses that could be used to
	// satisfy this request.
	FwdReasonMiss FwdReason = "miss"
	// The cache was able to select a response for the request, but
	// it was stale.
	FwdReasonStale FwdReason = "stale"
)

// CacheStatus is a single Cache-Status list member.
type CacheStatus struct {
	Status    Status
	FwdReason FwdReason
	// §  2.4.  The stored parameter
	Stored bool
	// §  2.5.  The collapsed parameter
	Collapsed bool
	// §  2.6.  The ttl parameter
	// §
	// §     "ttl" indicates the response's remaining freshness lifetime as
	// §     calculated by the cache, as an integer number of seconds.
	TimeToLive int
	// §  2.8.  The detail parameter
	Detail string
}

func (cs *CacheStatus) Hit() {
	cs.Status = StatusHit
	cs.FwdReason = ""
}

func (cs *CacheStatus) Forward(reason FwdReason) {
	cs.Status = StatusFwd
	cs.FwdReason = reason
}

func (cs CacheStatus) String() string {
	parts := []string{Name}
	if cs.Status == StatusFwd && cs.FwdReason != "" {
		parts = append(parts, fmt.Sprintf("fwd=%s", cs.FwdReason))
	} else if cs.Status != "" {
		parts = append(parts, string(cs.Status))
	}
	if cs.Status == StatusHit {
		parts = append(parts, fmt.Sprintf("ttl=%d", cs.TimeToLive))
	}
	if cs.Stored {
		parts = append(parts, "stored")
	}
	if cs.Collapsed {
		parts = append(parts, "collapsed")
	}
	if cs.Detail != "" {
		parts = append(parts, fmt.Sprintf("detail=%q", cs.Detail))
	}
	return strings.Join(parts, "; ")
}
