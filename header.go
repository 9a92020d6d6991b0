package conduit

import (
	"golang.org/x/net/http/httpguts"
)

// headerKV is one parsed or set header field. Order is preserved so
// VisitAll reproduces the wire order, matching the teacher's argsKV /
// RequestHeader field list (header.go).
type headerKV struct {
	key   []byte
	value []byte
}

// Headers is an ordered, case-insensitive multimap of header fields.
// Request and ResponseInfo each embed one. Keys are stored exactly as
// received (or as set); lookups normalize case but not punctuation.
type Headers struct {
	h []headerKV
}

// Add appends a header field, keeping any existing field with the same
// key (multi-valued headers, e.g. repeated Set-Cookie).
func (h *Headers) Add(key, value []byte) {
	h.h = append(h.h, headerKV{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
}

// Set replaces all existing fields with this key with a single field.
func (h *Headers) Set(key, value []byte) {
	h.Del(key)
	h.Add(key, value)
}

// Get returns the first value for key, or nil if absent.
func (h *Headers) Get(key []byte) []byte {
	for i := range h.h {
		if caseInsensitiveEqual(h.h[i].key, key) {
			return h.h[i].value
		}
	}
	return nil
}

// Has reports whether key is present.
func (h *Headers) Has(key []byte) bool {
	return h.Get(key) != nil
}

// Del removes every field with this key.
func (h *Headers) Del(key []byte) {
	dst := h.h[:0]
	for _, kv := range h.h {
		if !caseInsensitiveEqual(kv.key, key) {
			dst = append(dst, kv)
		}
	}
	h.h = dst
}

// VisitAll calls f for every field in wire order.
func (h *Headers) VisitAll(f func(key, value []byte)) {
	for i := range h.h {
		f(h.h[i].key, h.h[i].value)
	}
}

// Len returns the number of fields.
func (h *Headers) Len() int { return len(h.h) }

// Reset empties the header set for reuse across requests.
func (h *Headers) Reset() {
	h.h = h.h[:0]
}

// HasToken reports whether key's value, a comma-separated list per RFC
// 7230 §7, contains token as one element — used for Connection:
// close/keep-alive and Expect: 100-continue. Delegates the actual
// comma/OWS-aware token comparison to httpguts, the same helper
// net/http itself uses for Connection-header tokens.
func (h *Headers) HasToken(key, token []byte) bool {
	v := h.Get(key)
	if v == nil {
		return false
	}
	return httpguts.HeaderValuesContainsToken([]string{string(v)}, string(token))
}

func caseInsensitiveEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if toLowerTable[a[i]] != toLowerTable[b[i]] {
			return false
		}
	}
	return true
}
