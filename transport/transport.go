// Package transport contains the outbound side of the simulator:
// a mock transport fabricating deterministic responses, a live transport
// measuring real requests and the HTTP/1.1 vs HTTP/2 concurrency model.
package transport

import (
	"context"
	"fmt"
	"strings"
)

type Protocol string

const (
	HTTP1 Protocol = "http1"
	HTTP2 Protocol = "http2"
)

// ParseProtocol accepts the config and API spellings of a protocol.
// An empty value means HTTP/1.1.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "http1", "http/1.1", "h1":
		return HTTP1, nil
	case "http2", "http/2", "h2":
		return HTTP2, nil
	}
	return "", fmt.Errorf("unknown protocol %q", s)
}

// Request is a request to simulate.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
	// ReusedConnection skips connection setup in the mock timeline.
	ReusedConnection bool
}

// Response is what came back from the (mock) origin.
// Headers are single-valued, Set-Cookie values are kept apart in SetCookies.
type Response struct {
	StatusCode int               `json:"statusCode"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers"`
	SetCookies []string          `json:"setCookies,omitempty"`
	Body       any               `json:"body,omitempty"`
	Protocol   string            `json:"protocol"`
	Timeline   Timeline          `json:"timeline"`
	Size       Size              `json:"size"`
}

// Transport performs a request.
// Implementations must be safe for concurrent use.
type Transport interface {
	Do(ctx context.Context, req Request) (Response, error)
}
