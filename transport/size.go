package transport

import (
	"bytes"
	"compress/gzip"

	"github.com/andybalholm/brotli"
)

// Size is the transfer size of a body in bytes, per content encoding.
type Size struct {
	Identity int `json:"identity"`
	Gzip     int `json:"gzip"`
	Brotli   int `json:"br"`
}

// Smallest returns the smallest encoded size.
func (s Size) Smallest() int {
	smallest := s.Identity
	if s.Gzip > 0 && s.Gzip < smallest {
		smallest = s.Gzip
	}
	if s.Brotli > 0 && s.Brotli < smallest {
		smallest = s.Brotli
	}
	return smallest
}

// MeasureSize compresses body with gzip and brotli to report what each
// encoding would put on the wire. Failed encodings report 0.
func MeasureSize(body []byte) Size {
	size := Size{Identity: len(body)}
	if len(body) == 0 {
		return size
	}

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	if _, err := gw.Write(body); err == nil && gw.Close() == nil {
		size.Gzip = gz.Len()
	}

	var br bytes.Buffer
	bw := brotli.NewWriterLevel(&br, brotli.DefaultCompression)
	if _, err := bw.Write(body); err == nil && bw.Close() == nil {
		size.Brotli = br.Len()
	}
	return size
}
