package conduit

import "golang.org/x/net/http/httpguts"

// Lookup tables used by the hex chunk-size parser/writer and the header
// scanner. Hand-derived the same way the teacher's bytesconv_table_gen.go
// generator builds them, since this module has no generated-table file to
// regenerate from.

var hex2intTable = func() [256]byte {
	var b [256]byte
	for i := 0; i < 256; i++ {
		c := byte(16)
		switch {
		case i >= '0' && i <= '9':
			c = byte(i) - '0'
		case i >= 'a' && i <= 'f':
			c = byte(i) - 'a' + 10
		case i >= 'A' && i <= 'F':
			c = byte(i) - 'A' + 10
		}
		b[i] = c
	}
	return b
}()

const toLower = 'a' - 'A'

var toLowerTable = func() [256]byte {
	var a [256]byte
	for i := 0; i < 256; i++ {
		c := byte(i)
		if c >= 'A' && c <= 'Z' {
			c += toLower
		}
		a[i] = c
	}
	return a
}()

// isValidHeaderKey validates a request-line method token or a header
// field name against RFC 7230/9110 tchar, delegating to httpguts (the
// same validator net/http uses for header field names) rather than
// hand-rolling the token table.
func isValidHeaderKey(k []byte) bool {
	return httpguts.ValidHeaderFieldName(b2s(k))
}

// maxHexIntChars bounds the hex chunk-size line so a malformed/malicious
// peer can't make parseHexIntBytes accumulate forever.
const maxHexIntChars = 16

var strGMT = []byte("GMT")
