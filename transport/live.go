package transport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
)

const (
	DefaultTimeout = 30 * time.Second
	// maxBodySize limits how much of a live response body is read.
	maxBodySize = 10 << 20
)

type LiveConfig struct {
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Protocol to negotiate. HTTP/2 is only used over TLS.
	Protocol Protocol
	Timeout  time.Duration
	// Optional TLS configuration, e.g. for trusting test certificates.
	TLSClientConfig *tls.Config
}

// Live sends real requests and measures their phases with httptrace.
type Live struct {
	client   *http.Client
	log      zerolog.Logger
	protocol Protocol
}

func NewLive(config LiveConfig) (*Live, error) {
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Protocol == "" {
		config.Protocol = HTTP1
	}

	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSClientConfig:     config.TLSClientConfig,
		MaxIdleConnsPerHost: 6,
		IdleConnTimeout:     90 * time.Second,
		// measure raw transfer sizes
		DisableCompression: true,
	}
	switch config.Protocol {
	case HTTP2:
		if err := http2.ConfigureTransport(tr); err != nil {
			return nil, fmt.Errorf("could not configure http2: %w", err)
		}
	default:
		// a non-nil empty map disables HTTP/2 upgrades
		tr.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	}

	return &Live{
		client: &http.Client{
			Transport: tr,
			Timeout:   config.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		log:      logger.With().Str("component", "live").Logger(),
		protocol: config.Protocol,
	}, nil
}

func (l *Live) Do(ctx context.Context, req Request) (Response, error) {
	var (
		m  marks
		mu sync.Mutex
	)
	// trace hooks may run on dialer goroutines
	mark := func(t *time.Time) {
		mu.Lock()
		*t = time.Now()
		mu.Unlock()
	}
	trace := &httptrace.ClientTrace{
		DNSStart:             func(httptrace.DNSStartInfo) { mark(&m.dnsStart) },
		DNSDone:              func(httptrace.DNSDoneInfo) { mark(&m.dnsDone) },
		ConnectStart:         func(string, string) { mark(&m.connectStart) },
		ConnectDone:          func(string, string, error) { mark(&m.connectDone) },
		TLSHandshakeStart:    func() { mark(&m.tlsStart) },
		TLSHandshakeDone:     func(tls.ConnectionState, error) { mark(&m.tlsDone) },
		WroteRequest:         func(httptrace.WroteRequestInfo) { mark(&m.wroteRequest) },
		GotFirstResponseByte: func() { mark(&m.firstByte) },
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), method, req.URL, body)
	if err != nil {
		return Response{}, fmt.Errorf("could not create request: %w", err)
	}
	for name, value := range req.Headers {
		httpReq.Header.Set(name, value)
	}

	m.start = time.Now()
	httpRes, err := l.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("request to %s failed: %w", req.URL, err)
	}
	defer httpRes.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(httpRes.Body, maxBodySize))
	if err != nil {
		return Response{}, fmt.Errorf("could not read response body: %w", err)
	}
	mu.Lock()
	m.end = time.Now()
	if m.firstByte.IsZero() {
		m.firstByte = m.end
	}
	timeline := m.timeline()
	mu.Unlock()

	res := Response{
		StatusCode: httpRes.StatusCode,
		StatusText: http.StatusText(httpRes.StatusCode),
		Headers:    make(map[string]string, len(httpRes.Header)),
		SetCookies: httpRes.Header.Values("Set-Cookie"),
		Body:       decodeBody(raw),
		Protocol:   protocolOf(httpRes),
		Timeline:   timeline,
		Size:       MeasureSize(raw),
	}
	for name := range httpRes.Header {
		if name == "Set-Cookie" {
			continue
		}
		res.Headers[name] = strings.Join(httpRes.Header.Values(name), ", ")
	}

	l.log.Debug().
		Str("method", method).
		Str("url", req.URL).
		Int("status", res.StatusCode).
		Str("proto", httpRes.Proto).
		Float64("total", res.Timeline.Total).
		Msg("Received response from origin")
	return res, nil
}

func protocolOf(res *http.Response) string {
	if res.ProtoMajor == 2 {
		return string(HTTP2)
	}
	return string(HTTP1)
}

// decodeBody returns JSON bodies as decoded values and anything else as a string.
func decodeBody(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	return string(raw)
}
