package tee

import (
	"net/http"
	"time"
)

// ResponseRecorder is a wrapper around http.ResponseWriter that remembers
// the status code and the number of body bytes written, for request logging.
type ResponseRecorder struct {
	rw          http.ResponseWriter
	status      int
	written     int
	wroteHeader bool
	CreatedAt   time.Time
}

// Implementation of http.ResponseWriter
func (t *ResponseRecorder) Header() http.Header {
	return t.rw.Header()
}

// Implementation of http.ResponseWriter
func (t *ResponseRecorder) WriteHeader(statusCode int) {
	if t.wroteHeader {
		return
	}
	// remember that we wrote the headers
	t.wroteHeader = true
	t.status = statusCode
	t.rw.WriteHeader(statusCode)
}

// Implementation of http.ResponseWriter
func (t *ResponseRecorder) Write(b []byte) (int, error) {
	// write headers if not already written
	if !t.wroteHeader {
		t.WriteHeader(http.StatusOK)
	}
	n, err := t.rw.Write(b)
	t.written += n
	return n, err
}

// StatusCode returns the status code of the response, 200 if none was written.
func (t *ResponseRecorder) StatusCode() int {
	if t.status == 0 {
		return http.StatusOK
	}
	return t.status
}

// BytesWritten returns the number of body bytes written.
func (t *ResponseRecorder) BytesWritten() int {
	return t.written
}

// Duration returns the time since the recorder was created.
func (t *ResponseRecorder) Duration() time.Duration {
	return time.Since(t.CreatedAt)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (t *ResponseRecorder) Unwrap() http.ResponseWriter {
	return t.rw
}

// NewResponseRecorder returns a new ResponseRecorder writing through to w.
func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	return &ResponseRecorder{
		CreatedAt: time.Now(),
		rw:        w,
	}
}
