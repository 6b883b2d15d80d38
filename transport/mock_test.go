package transport

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMock() *Mock {
	logger := zerolog.Nop()
	return NewMock(MockConfig{Logger: &logger})
}

func phaseNames(t Timeline) []string {
	names := make([]string, 0, len(t.Phases))
	for _, p := range t.Phases {
		names = append(names, p.Name)
	}
	return names
}

func TestMockIsDeterministic(t *testing.T) {
	m := newTestMock()
	a, err := m.Do(context.Background(), Request{URL: "https://example.test/page"})
	require.NoError(t, err)
	b, err := m.Do(context.Background(), Request{Method: "get", URL: "https://example.test/page"})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := m.Do(context.Background(), Request{URL: "https://example.test/other"})
	require.NoError(t, err)
	assert.NotEqual(t, a.Body, c.Body)
}

func TestMockTimeline(t *testing.T) {
	m := newTestMock()
	res, err := m.Do(context.Background(), Request{URL: "https://example.test/"})
	require.NoError(t, err)
	assert.Equal(t, []string{PhaseDNS, PhaseTCP, PhaseTLS, PhaseWait, PhaseDownload}, phaseNames(res.Timeline))

	end := 0.0
	for _, p := range res.Timeline.Phases {
		assert.InDelta(t, end, p.Start, 0.11, "phase %s starts where the previous ended", p.Name)
		assert.Greater(t, p.Duration, 0.0)
		end = p.Start + p.Duration
	}
	assert.InDelta(t, end, res.Timeline.Total, 0.11)

	res, err = m.Do(context.Background(), Request{URL: "http://example.test/"})
	require.NoError(t, err)
	assert.Equal(t, []string{PhaseDNS, PhaseTCP, PhaseWait, PhaseDownload}, phaseNames(res.Timeline))

	res, err = m.Do(context.Background(), Request{URL: "https://example.test/", ReusedConnection: true})
	require.NoError(t, err)
	assert.Equal(t, []string{PhaseWait, PhaseDownload}, phaseNames(res.Timeline))
}

func TestMockHeaders(t *testing.T) {
	m := newTestMock()
	res, err := m.Do(context.Background(), Request{URL: "https://example.test/static/app.js"})
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, "OK", res.StatusText)
	assert.Equal(t, "public, max-age=86400, immutable", res.Headers["Cache-Control"])
	assert.NotEmpty(t, res.Headers["Last-Modified"])
	assert.Empty(t, res.SetCookies)
	assert.Equal(t, string(HTTP1), res.Protocol)
	assert.Greater(t, res.Size.Identity, 0)
}

func TestMockLogin(t *testing.T) {
	m := newTestMock()
	res, err := m.Do(context.Background(), Request{Method: "POST", URL: "https://example.test/login"})
	require.NoError(t, err)
	require.Len(t, res.SetCookies, 2)
	assert.Contains(t, res.SetCookies[0], "sessionId=")
	assert.Contains(t, res.SetCookies[0], "HttpOnly")
	assert.Equal(t, "no-store", res.Headers["Cache-Control"])
}

func TestMockStatus(t *testing.T) {
	m := newTestMock()
	res, err := m.Do(context.Background(), Request{URL: "https://example.test/status/404"})
	require.NoError(t, err)
	assert.Equal(t, 404, res.StatusCode)
	assert.Equal(t, "Not Found", res.StatusText)
}

func TestMockErrors(t *testing.T) {
	m := newTestMock()
	_, err := m.Do(context.Background(), Request{URL: "ftp://example.test/"})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Do(ctx, Request{URL: "https://example.test/"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMeasureSize(t *testing.T) {
	body := []byte(`{"items":["aaaaaaaaaa","aaaaaaaaaa","aaaaaaaaaa","aaaaaaaaaa","aaaaaaaaaa"]}`)
	size := MeasureSize(body)
	assert.Equal(t, len(body), size.Identity)
	assert.Greater(t, size.Gzip, 0)
	assert.Greater(t, size.Brotli, 0)
	assert.Less(t, size.Smallest(), size.Identity)

	assert.Equal(t, Size{}, MeasureSize(nil))
}

func TestParseProtocol(t *testing.T) {
	p, err := ParseProtocol("HTTP/2")
	require.NoError(t, err)
	assert.Equal(t, HTTP2, p)
	p, err = ParseProtocol("")
	require.NoError(t, err)
	assert.Equal(t, HTTP1, p)
	_, err = ParseProtocol("http3")
	assert.Error(t, err)
}
