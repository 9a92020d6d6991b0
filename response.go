package conduit

// ResponseInfo is what a handler gives the generator: a status line and
// header set, plus the framing decision the channel/generator have made
// about how the body's length will be communicated on the wire (spec §3
// ResponseInfo).
type ResponseInfo struct {
	StatusCode int
	Reason     []byte // nil means use StatusMessage(StatusCode)

	Header Headers

	bodyKind      bodyLengthKind
	ContentLength int64 // valid when bodyKind == bodyLengthFixed

	// SkipBody is set for HEAD responses: the generator still computes
	// Content-Length as if a body were sent (spec's recovered HEAD
	// behavior), but the write flow discards the actual body bytes.
	SkipBody bool
}

// SetContentLength switches the response to fixed-length framing.
func (ri *ResponseInfo) SetContentLength(n int64) {
	ri.bodyKind = bodyLengthFixed
	ri.ContentLength = n
}

// SetChunked switches the response to chunked-transfer framing.
func (ri *ResponseInfo) SetChunked() {
	ri.bodyKind = bodyLengthChunked
}

// SetCloseDelimited switches the response to close-delimited framing
// (only valid when the connection will not be persistent).
func (ri *ResponseInfo) SetCloseDelimited() {
	ri.bodyKind = bodyLengthCloseDelimited
}

// Reset clears the response for reuse by the next handler invocation.
func (ri *ResponseInfo) Reset() {
	ri.StatusCode = 0
	ri.Reason = nil
	ri.Header.Reset()
	ri.bodyKind = bodyLengthNone
	ri.ContentLength = 0
	ri.SkipBody = false
}
