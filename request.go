package conduit

// bodyLengthKind classifies how a message body's extent is determined,
// shared between Request and ResponseInfo (spec §3 "body-length-kind").
type bodyLengthKind int

const (
	// bodyLengthNone means the message carries no body at all (GET/HEAD
	// with no Content-Length/Transfer-Encoding, or a response whose
	// status forbids one).
	bodyLengthNone bodyLengthKind = iota
	// bodyLengthFixed means an exact Content-Length is known.
	bodyLengthFixed
	// bodyLengthChunked means Transfer-Encoding: chunked framing.
	bodyLengthChunked
	// bodyLengthCloseDelimited means the body runs until the connection
	// closes; only legal for a non-persistent response (HTTP/1.0-style).
	bodyLengthCloseDelimited
)

// Request is the parsed request line, headers, and body framing
// information for one HTTP/1.x message. A ConnectionDriver owns exactly
// one Request, reusing it (via Reset) across a persistent connection's
// pipelined requests (spec §3 ConnectionDriver ownership).
type Request struct {
	Method      []byte
	RequestURI  []byte
	major, minor int

	Header  Headers
	Trailer Headers

	bodyKind      bodyLengthKind
	contentLength int64

	attrs attributeStore
}

// IsHTTP09 reports whether the request line carried no HTTP version at
// all (a bare "GET /\r\n").
func (r *Request) IsHTTP09() bool { return r.major == 0 }

// IsHTTP10 reports HTTP/1.0.
func (r *Request) IsHTTP10() bool { return r.major == 1 && r.minor == 0 }

// IsHTTP11 reports HTTP/1.1.
func (r *Request) IsHTTP11() bool { return r.major == 1 && r.minor == 1 }

// IsConnect reports whether the request method is CONNECT, which the
// persistence table (spec §4.5) treats as always keeping the connection
// open regardless of version.
func (r *Request) IsConnect() bool {
	return caseInsensitiveEqual(r.Method, strConnect)
}

// IsHead reports whether the request method is HEAD.
func (r *Request) IsHead() bool {
	return caseInsensitiveEqual(r.Method, strHead)
}

// ContentLength returns the declared body length, or -1 if the body is
// chunked or absent.
func (r *Request) ContentLength() int64 {
	if r.bodyKind != bodyLengthFixed {
		return -1
	}
	return r.contentLength
}

// HasBody reports whether the parser expects any request body bytes.
func (r *Request) HasBody() bool {
	return r.bodyKind == bodyLengthChunked || (r.bodyKind == bodyLengthFixed && r.contentLength > 0)
}

// MayContinue reports whether the client sent "Expect: 100-continue"
// and is waiting to be told whether to send the body (spec §4.6).
func (r *Request) MayContinue() bool {
	return r.Header.HasToken(strExpect, str100Continue)
}

// SetAttr attaches an out-of-band value to the request for the duration
// of its processing (e.g. UpgradeAttr).
func (r *Request) SetAttr(key string, value interface{}) { r.attrs.Set(key, value) }

// Attr retrieves a value set by SetAttr, or nil.
func (r *Request) Attr(key string) interface{} { return r.attrs.Get(key) }

// RemoveAttr deletes an attribute, closing it first if it is an
// io.Closer.
func (r *Request) RemoveAttr(key string) { r.attrs.Remove(key) }

// Reset clears the request for reuse by the next parse cycle.
func (r *Request) Reset() {
	r.Method = r.Method[:0]
	r.RequestURI = r.RequestURI[:0]
	r.major, r.minor = 0, 0
	r.Header.Reset()
	r.Trailer.Reset()
	r.bodyKind = bodyLengthNone
	r.contentLength = 0
	r.attrs.Reset()
}
