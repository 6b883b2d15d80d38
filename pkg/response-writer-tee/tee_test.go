package tee

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRecorder(t *testing.T) {
	w := httptest.NewRecorder()
	rec := NewResponseRecorder(w)
	rec.Header().Set("X-Test", "1")
	rec.WriteHeader(http.StatusTeapot)
	rec.WriteHeader(http.StatusOK)
	rec.Write([]byte("hello"))

	if rec.StatusCode() != http.StatusTeapot || w.Code != http.StatusTeapot {
		t.Fatalf("Status is %d", rec.StatusCode())
	}
	if rec.BytesWritten() != 5 || w.Body.String() != "hello" {
		t.Fatalf("Wrote %d bytes", rec.BytesWritten())
	}
	if w.Header().Get("X-Test") != "1" {
		t.Fatal("Header not passed through")
	}
}

func TestRecorderImplicitStatus(t *testing.T) {
	rec := NewResponseRecorder(httptest.NewRecorder())
	if rec.StatusCode() != http.StatusOK {
		t.Fatalf("Status is %d", rec.StatusCode())
	}
	rec.Write([]byte("x"))
	if rec.StatusCode() != http.StatusOK {
		t.Fatalf("Status is %d", rec.StatusCode())
	}
}
