package transport

import (
	"math"
	"time"
)

// Phase names, in the order they happen.
const (
	PhaseDNS      = "dns"
	PhaseTCP      = "tcp"
	PhaseTLS      = "tls"
	PhaseWait     = "wait"
	PhaseDownload = "download"
	// PhaseCache is the only phase of a response served from the cache.
	PhaseCache = "cache"
)

// Phase is one step of a request. Start and Duration are in milliseconds,
// Start relative to the beginning of the request.
type Phase struct {
	Name     string  `json:"name"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

type Timeline struct {
	Phases []Phase `json:"phases"`
	Total  float64 `json:"total"`
}

// add appends a phase starting where the previous one ended.
func (t *Timeline) add(name string, duration float64) {
	t.Phases = append(t.Phases, Phase{Name: name, Start: t.Total, Duration: round(duration)})
	t.Total = round(t.Total + duration)
}

// CacheTimeline is the timeline of a response served from the cache.
func CacheTimeline(lookup time.Duration) Timeline {
	t := Timeline{}
	t.add(PhaseCache, milliseconds(lookup))
	return t
}

// marks are the timestamps collected while running a live request.
type marks struct {
	start, dnsStart, dnsDone, connectStart, connectDone time.Time
	tlsStart, tlsDone, wroteRequest, firstByte, end     time.Time
}

// timeline converts the marks of a live request into phases.
// Phases that did not happen (e.g. on a reused connection) are left out.
func (m marks) timeline() Timeline {
	t := Timeline{}
	phase := func(name string, from, to time.Time) {
		if from.IsZero() || to.IsZero() || to.Before(from) {
			return
		}
		t.Phases = append(t.Phases, Phase{
			Name:     name,
			Start:    round(milliseconds(from.Sub(m.start))),
			Duration: round(milliseconds(to.Sub(from))),
		})
	}
	phase(PhaseDNS, m.dnsStart, m.dnsDone)
	phase(PhaseTCP, m.connectStart, m.connectDone)
	phase(PhaseTLS, m.tlsStart, m.tlsDone)
	waitFrom := m.wroteRequest
	if waitFrom.IsZero() {
		waitFrom = m.start
	}
	phase(PhaseWait, waitFrom, m.firstByte)
	phase(PhaseDownload, m.firstByte, m.end)
	t.Total = round(milliseconds(m.end.Sub(m.start)))
	return t
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// round to a tenth of a millisecond
func round(ms float64) float64 {
	return math.Round(ms*10) / 10
}
