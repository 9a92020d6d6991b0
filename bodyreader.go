package conduit

import "io"

// bodyReadBufferSize implements spec §4.3's size-quadrupling heuristic:
// when the request declares a Content-Length, size the request buffer
// to the smallest multiple of configured that can hold the whole body,
// so a small body needs only the one fill the header already primed and
// a large one grows in bounded, predictable steps instead of by
// whatever the last short read happened to deliver.
func bodyReadBufferSize(contentLength int64, configured int) int {
	if configured <= 0 {
		configured = 4096
	}
	if contentLength <= 0 {
		return configured
	}
	steps := (contentLength + int64(configured) - 1) / int64(configured)
	size := steps * int64(configured)
	if size > int64(1<<31-1) {
		size = int64(1 << 31 - 1)
	}
	return int(size)
}

// RequestBodyReader exposes a request's body as an io.Reader, blocking
// the calling goroutine to pull more bytes off the connection as needed
// (spec §4.3 block_for_content). Because the Parser de-frames chunked
// bodies in place (parser.go), Read never has to distinguish chunked
// from fixed-length content: it only ever copies whatever is currently
// unread in the shared request buffer.
type RequestBodyReader struct {
	conn   *ConnectionDriver
	parser *Parser
	buf    *Buffer
}

// newRequestBodyReader binds reader to the request buffer and parser
// ConnectionDriver is currently driving; it is constructed fresh for
// every request (connection.go) and handed to the Handler through
// Context.Body.
func newRequestBodyReader(conn *ConnectionDriver, parser *Parser, buf *Buffer) *RequestBodyReader {
	return &RequestBodyReader{conn: conn, parser: parser, buf: buf}
}

// Read implements io.Reader. It returns io.EOF once the message's
// content (and, for chunked bodies, its trailer) has been fully parsed
// and no unread bytes remain.
func (r *RequestBodyReader) Read(p []byte) (int, error) {
	if err := r.conn.sendContinueIfOwed(); err != nil {
		return 0, err
	}
	for {
		if r.buf.Len() > 0 {
			n := copy(p, r.buf.Bytes())
			r.buf.Advance(n)
			r.onContentConsumed()
			return n, nil
		}
		if !r.conn.req.HasBody() || r.parser.IsComplete() {
			return 0, io.EOF
		}
		progressed, err := r.conn.blockForContent(r.parser, r.buf)
		if err != nil {
			return 0, err
		}
		if !progressed && !r.parser.IsComplete() {
			return 0, io.ErrUnexpectedEOF
		}
	}
}

// There is no onContentQueued hook: in-place de-framing means Read
// always observes newly available bytes directly in buf — spec §4.3
// calls this out explicitly as a case where the callback is a
// deliberate no-op, and this comment is that no-op's only trace.
//
// onContentConsumed releases the request buffer once it is empty and
// the parser has completed the message.
func (r *RequestBodyReader) onContentConsumed() {
	if r.buf.IsEmpty() && r.parser.IsComplete() {
		r.onAllContentConsumed()
	}
}

// onAllContentConsumed releases the request buffer back to the pool
// once every content byte has been delivered to the Handler, matching
// spec §4.3's buffer-release-on-drain rule. releaseRequestBufferIfIdle
// acquires the fresh buffer for the next pipelined request right away.
func (r *RequestBodyReader) onAllContentConsumed() {
	r.conn.releaseRequestBufferIfIdle()
}
