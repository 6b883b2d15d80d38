package transport

const (
	// DefaultConnectionsPerHost is the usual browser limit for HTTP/1.1.
	DefaultConnectionsPerHost = 6
	// DefaultConnectionSetup is the time to open a connection, in milliseconds.
	DefaultConnectionSetup = 100
)

type ConcurrencyConfig struct {
	Protocol Protocol
	// Durations of the individual requests in milliseconds, in request order.
	Durations []float64
	// MaxConnections for HTTP/1.1. Defaults to DefaultConnectionsPerHost.
	MaxConnections int
	// ConnectionSetup is paid once per opened connection.
	// Negative values mean no setup time.
	ConnectionSetup float64
}

// ScheduledRequest tells when a request ran. Times are in milliseconds.
type ScheduledRequest struct {
	Index      int     `json:"index"`
	Connection int     `json:"connection"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	// Queued is the time spent waiting for a free connection.
	Queued float64 `json:"queued"`
}

type Schedule struct {
	Protocol    Protocol           `json:"protocol"`
	Connections int                `json:"connections"`
	Requests    []ScheduledRequest `json:"requests"`
	Total       float64            `json:"total"`
}

// SimulateConcurrency schedules requests that are all issued at time zero.
//
// With HTTP/1.1 each connection carries one request at a time. Requests go,
// in order, to the connection that frees up first, opening new connections
// up to the limit. With HTTP/2 all requests are multiplexed as streams on a
// single connection and run in parallel.
func SimulateConcurrency(config ConcurrencyConfig) Schedule {
	setup := config.ConnectionSetup
	if setup == 0 {
		setup = DefaultConnectionSetup
	} else if setup < 0 {
		setup = 0
	}
	maxConns := config.MaxConnections
	if maxConns <= 0 {
		maxConns = DefaultConnectionsPerHost
	}
	if config.Protocol == HTTP2 {
		maxConns = 1
	}

	schedule := Schedule{
		Protocol: config.Protocol,
		Requests: make([]ScheduledRequest, 0, len(config.Durations)),
	}
	if len(config.Durations) == 0 {
		return schedule
	}

	if config.Protocol == HTTP2 {
		schedule.Connections = 1
		for i, d := range config.Durations {
			schedule.add(ScheduledRequest{Index: i, Start: setup, End: round(setup + d)})
		}
		return schedule
	}

	// free holds when each open connection becomes available
	free := make([]float64, 0, maxConns)
	for i, d := range config.Durations {
		var conn int
		if len(free) < maxConns {
			free = append(free, setup)
			conn = len(free) - 1
		} else {
			conn = earliest(free)
		}
		start := free[conn]
		queued := start - setup
		end := round(start + d)
		free[conn] = end
		schedule.add(ScheduledRequest{Index: i, Connection: conn, Start: start, End: end, Queued: round(queued)})
	}
	schedule.Connections = len(free)
	return schedule
}

func (s *Schedule) add(r ScheduledRequest) {
	s.Requests = append(s.Requests, r)
	if r.End > s.Total {
		s.Total = r.End
	}
}

// earliest returns the lowest index of the connection that frees up first.
func earliest(free []float64) int {
	conn := 0
	for i, t := range free {
		if t < free[conn] {
			conn = i
		}
	}
	return conn
}
