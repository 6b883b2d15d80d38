package rfc9111

// §  4.3.2.  Handling a Received Validation Request
// §
// §     If a cache receives a request that can be satisfied by reusing a
// §     stored 200 (OK) or 206 (Partial Content) response, as per Section 4,
// §     the cache SHOULD evaluate any applicable conditional header field
// §     preconditions received in that request with respect to the
// §     corresponding validators contained within the stored response.

// Validation is the outcome of evaluating a conditional request.
type Validation int

const (
	// The stored response has to be sent in full.
	ValidationNone Validation = iota
	// If-None-Match matched the stored entity tag.
	ValidationETag
	// If-Modified-Since is not earlier than the stored Last-Modified.
	ValidationLastModified
)

// NotModified reports whether the validation allows a 304 response.
func (v Validation) NotModified() bool {
	return v != ValidationNone
}

// Validators are the validators of a stored response.
type Validators struct {
	ETag         string
	LastModified string
}

// EvaluateConditional evaluates If-None-Match and If-Modified-Since request header values
// against stored validators. Empty values mean the header was absent.
//
// Entity tags are compared as exact strings, weak validators get no special treatment.
// An If-None-Match that does not match falls through to If-Modified-Since.
func EvaluateConditional(ifNoneMatch, ifModifiedSince string, stored Validators) Validation {
	// §     A request containing an If-None-Match header field (Section 13.1.2 of
	// §     [HTTP]) indicates that the client wants to validate one or more of
	// §     its own stored responses in comparison to the stored response chosen
	// §     by the cache (as per Section 4).
	if ifNoneMatch != "" && ifNoneMatch == stored.ETag {
		return ValidationETag
	}
	// §     If an If-None-Match header field is not present, a request containing
	// §     an If-Modified-Since header field (Section 13.1.3 of [HTTP])
	// §     indicates that the client wants to validate one or more of its own
	// §     stored responses by modification date.
	if ifModifiedSince != "" && notModifiedSince(ifModifiedSince, stored.LastModified) {
		return ValidationLastModified
	}
	return ValidationNone
}

// notModifiedSince is false whenever either date fails to parse.
func notModifiedSince(ifModifiedSince, lastModified string) bool {
	since, err := HttpDate(ifModifiedSince)
	if err != nil {
		return false
	}
	modified, err := HttpDate(lastModified)
	if err != nil {
		return false
	}
	return !since.Before(modified)
}
