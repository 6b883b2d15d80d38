package cache

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// GenerateETag derives a strong entity tag from body bytes.
// Identical bodies always get identical tags.
func GenerateETag(body []byte) string {
	return fmt.Sprintf("\"%016x\"", xxhash.Sum64(body))
}

// encodeBody returns the bytes used for hashing and size accounting.
// A nil body has no bytes.
func encodeBody(body any) []byte {
	switch b := body.(type) {
	case nil:
		return nil
	case []byte:
		return b
	case string:
		return []byte(b)
	}
	if bytes, err := json.Marshal(body); err == nil {
		return bytes
	}
	return []byte(fmt.Sprintf("%v", body))
}
