package conduit

import "bytes"

// parserState is the incremental parser's position within one HTTP/1.x
// message, grounded on the teacher's headerScanner state shape
// (headerscanner.go) but extended to cover the request line and both
// body-framing styles.
type parserState int

const (
	parserStateStart parserState = iota
	parserStateHeaders
	parserStateBodyIdentity
	parserStateBodyChunkedSize
	parserStateBodyChunkedData
	parserStateBodyChunkedCRLF
	parserStateBodyChunkedTrailer
	parserStateComplete
	parserStateClosed
)

// ParserCallbacks is implemented by the HttpChannel bridge and invoked
// by Parser as it reaches each significant point in a message (spec §6
// "Callbacks implemented by the channel").
type ParserCallbacks interface {
	HeaderComplete(req *Request)
	Content(chunk []byte)
	MessageComplete()
	// BadMessage reports a malformed message. atStart is true when the
	// failure was found before any of the request line was recognized,
	// false once parsing had made it into the headers or body.
	BadMessage(statusCode int, reason string, err error, atStart bool)
}

// Parser incrementally parses one HTTP/1.x request at a time out of a
// caller-supplied Buffer, reusing the same Request value across
// messages on a persistent connection (spec §2 item 2, §6 "Parser
// contract").
//
// Chunked bodies are de-framed in place: chunk-size lines, their
// trailing CRLFs, and the final trailer block are removed from the
// buffer as they are recognized (Buffer.RemoveSpanFront), so the unread
// region of the buffer is always exactly the application content bytes
// seen so far — there is no separate content queue to manage, which is
// why Channel.Content is a no-op and RequestBodyReader has no
// onContentQueued hook in this implementation.
type Parser struct {
	req       *Request
	callbacks ParserCallbacks

	state     parserState
	remaining int64 // bytes left in current identity body or chunk

	maxLineSize   int
	maxHeaderSize int
	maxBodySize   int64

	inputShutdown bool
	lastErr       error
}

// NewParser returns a Parser that will populate req and invoke cb as it
// parses. maxLineSize and maxHeaderSize bound the request line and
// header block respectively; maxBodySize bounds a declared Content-Length
// (spec §4 Config.MaxRequestBodySize). Zero picks a sane default for each.
func NewParser(req *Request, cb ParserCallbacks, maxLineSize, maxHeaderSize int, maxBodySize int64) *Parser {
	if maxLineSize <= 0 {
		maxLineSize = 8 * 1024
	}
	if maxHeaderSize <= 0 {
		maxHeaderSize = 64 * 1024
	}
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxRequestBody
	}
	return &Parser{req: req, callbacks: cb, maxLineSize: maxLineSize, maxHeaderSize: maxHeaderSize, maxBodySize: maxBodySize}
}

// ParseNext consumes as much of buf as forms one recognizable token and
// returns true if it made forward progress — advanced the buffer's read
// cursor, or fired a callback without needing to (the zero-length final
// chunk trailer case). It returns false when buf does not yet contain a
// complete token and the caller must fill more bytes.
func (p *Parser) ParseNext(buf *Buffer) bool {
	switch p.state {
	case parserStateStart:
		return p.parseRequestLine(buf)
	case parserStateHeaders:
		return p.parseHeaders(buf)
	case parserStateBodyIdentity:
		return p.parseIdentityBody(buf)
	case parserStateBodyChunkedSize:
		return p.parseChunkSize(buf)
	case parserStateBodyChunkedData:
		return p.parseChunkData(buf)
	case parserStateBodyChunkedCRLF:
		return p.parseChunkCRLF(buf)
	case parserStateBodyChunkedTrailer:
		return p.parseTrailer(buf)
	case parserStateClosed:
		n := buf.Len()
		if n == 0 {
			return false
		}
		buf.Advance(n)
		return true
	default: // parserStateComplete
		return false
	}
}

// InContentState reports whether the parser is somewhere inside a
// request body (identity or chunked, including the inter-chunk and
// trailer sub-states).
func (p *Parser) InContentState() bool {
	switch p.state {
	case parserStateBodyIdentity, parserStateBodyChunkedSize, parserStateBodyChunkedData,
		parserStateBodyChunkedCRLF, parserStateBodyChunkedTrailer:
		return true
	}
	return false
}

// IsComplete reports whether the current message has been fully parsed.
func (p *Parser) IsComplete() bool { return p.state == parserStateComplete }

// IsStart reports whether no bytes of a new message have been consumed
// yet.
func (p *Parser) IsStart() bool { return p.state == parserStateStart }

// IsIdle is an alias for IsStart in this implementation: there is no
// intermediate "between messages but not yet at start" sub-state, so
// the idle/start distinction the source makes collapses to one state.
func (p *Parser) IsIdle() bool { return p.IsStart() }

// Reset prepares the parser for the next message on a persistent
// connection. It does not touch the Request — ConnectionDriver.reset
// calls Request.Reset for that (spec §4.2 item 3).
func (p *Parser) Reset() {
	p.state = parserStateStart
	p.remaining = 0
	p.lastErr = nil
}

// Close puts the parser into a terminal drain state: further bytes are
// discarded without being parsed (spec §4.2 item 3, "seek EOF to
// discard any unsent body").
func (p *Parser) Close() {
	p.state = parserStateClosed
}

// ShutdownInput records that the endpoint's input side has been shut
// down, so a blocked RequestBodyReader can tell the difference between
// "waiting for more" and "no more is coming."
func (p *Parser) ShutdownInput() {
	p.inputShutdown = true
}

// InputShutdown reports whether ShutdownInput has been called.
func (p *Parser) InputShutdown() bool { return p.inputShutdown }

// LastError returns the error that caused the most recent BadMessage
// callback, if any.
func (p *Parser) LastError() error { return p.lastErr }

func (p *Parser) parseRequestLine(buf *Buffer) bool {
	data := buf.Bytes()
	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		if len(data) > p.maxLineSize {
			p.fail(buf, StatusRequestURITooLong, "request line too long", nil)
			return true
		}
		return false
	}
	line := data[:i+1]
	buf.Advance(len(line))
	line = trimCRLF(line)

	sp1 := bytes.IndexByte(line, ' ')
	if sp1 < 0 {
		p.fail(buf, StatusBadRequest, "malformed request line", nil)
		return true
	}
	method := line[:sp1]
	rest := line[sp1+1:]
	sp2 := bytes.IndexByte(rest, ' ')

	var uri, versionTok []byte
	if sp2 < 0 {
		// HTTP/0.9: "GET /path" with no version token.
		uri = rest
		p.req.major, p.req.minor = 0, 9
	} else {
		uri = rest[:sp2]
		versionTok = rest[sp2+1:]
		major, minor, ok := parseHTTPVersion(versionTok)
		if !ok {
			p.fail(buf, StatusBadRequest, "malformed HTTP version", nil)
			return true
		}
		if major != 1 || (minor != 0 && minor != 1) {
			p.fail(buf, StatusHTTPVersionNotSupported, "unsupported HTTP version", nil)
			return true
		}
		p.req.major, p.req.minor = major, minor
	}

	if !isValidHeaderKey(method) || len(uri) == 0 {
		p.fail(buf, StatusBadRequest, "malformed request line", nil)
		return true
	}
	p.req.Method = append(p.req.Method[:0], method...)
	p.req.RequestURI = append(p.req.RequestURI[:0], uri...)

	if p.req.IsHTTP09() {
		p.state = parserStateComplete
		p.callbacks.HeaderComplete(p.req)
		p.callbacks.MessageComplete()
		return true
	}
	p.state = parserStateHeaders
	return true
}

func (p *Parser) parseHeaders(buf *Buffer) bool {
	data := buf.Bytes()
	end, termLen := bytes.Index(data, strCRLFCRLF), len(strCRLFCRLF)
	if bytes.HasPrefix(data, strCRLF) {
		// No header fields: the blank line follows the request line directly.
		end, termLen = 0, len(strCRLF)
	}
	if end < 0 {
		if len(data) > p.maxHeaderSize {
			p.fail(buf, StatusRequestHeaderFieldsTooLarge, "header block too large", nil)
			return true
		}
		return false
	}
	block := data[:end]
	buf.Advance(end + termLen)

	if err := parseHeaderBlock(block, &p.req.Header); err != nil {
		p.fail(buf, StatusBadRequest, "malformed headers", err)
		return true
	}

	if err := p.determineBodyKind(&p.req.Header); err != nil {
		p.fail(buf, StatusBadRequest, "malformed framing headers", err)
		return true
	}
	if p.req.bodyKind == bodyLengthFixed && p.req.contentLength > p.maxBodySize {
		p.fail(buf, StatusRequestEntityTooLarge, "request body too large", nil)
		return true
	}

	p.callbacks.HeaderComplete(p.req)

	switch p.req.bodyKind {
	case bodyLengthNone:
		p.state = parserStateComplete
		p.callbacks.MessageComplete()
	case bodyLengthFixed:
		if p.req.contentLength == 0 {
			p.state = parserStateComplete
			p.callbacks.MessageComplete()
		} else {
			p.remaining = p.req.contentLength
			p.state = parserStateBodyIdentity
		}
	case bodyLengthChunked:
		p.state = parserStateBodyChunkedSize
	}
	return true
}

func (p *Parser) determineBodyKind(h *Headers) error {
	if h.HasToken(strTransferEncoding, strChunked) {
		p.req.bodyKind = bodyLengthChunked
		return nil
	}
	if cl := h.Get(strContentLength); cl != nil {
		n, err := ParseUint(cl)
		if err != nil {
			return err
		}
		p.req.bodyKind = bodyLengthFixed
		p.req.contentLength = int64(n)
		return nil
	}
	p.req.bodyKind = bodyLengthNone
	return nil
}

func (p *Parser) parseIdentityBody(buf *Buffer) bool {
	avail := int64(buf.Len())
	if avail == 0 {
		return false
	}
	n := avail
	if n > p.remaining {
		n = p.remaining
	}
	chunk := buf.Bytes()[:n]
	buf.Advance(int(n))
	p.remaining -= n
	p.callbacks.Content(chunk)
	if p.remaining == 0 {
		p.state = parserStateComplete
		p.callbacks.MessageComplete()
	}
	return true
}

func (p *Parser) parseChunkSize(buf *Buffer) bool {
	data := buf.Bytes()
	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		if len(data) > maxHexIntChars+32 {
			p.fail(buf, StatusBadRequest, "chunk size line too long", nil)
			return true
		}
		return false
	}
	lineLen := i + 1
	line := trimCRLF(data[:lineLen])
	if sc := bytes.IndexByte(line, ';'); sc >= 0 {
		line = line[:sc] // discard chunk extensions
	}
	size, ok := parseHexIntBytes(line)
	if !ok {
		p.fail(buf, StatusBadRequest, "malformed chunk size", nil)
		return true
	}
	// Remove the chunk-size line itself so body bytes stay contiguous.
	buf.RemoveSpanFront(lineLen)

	if size == 0 {
		p.state = parserStateBodyChunkedTrailer
		return true
	}
	p.remaining = int64(size)
	p.state = parserStateBodyChunkedData
	return true
}

func (p *Parser) parseChunkData(buf *Buffer) bool {
	avail := int64(buf.Len())
	if avail == 0 {
		return false
	}
	n := avail
	if n > p.remaining {
		n = p.remaining
	}
	chunk := buf.Bytes()[:n]
	buf.Advance(int(n))
	p.remaining -= n
	p.callbacks.Content(chunk)
	if p.remaining == 0 {
		p.state = parserStateBodyChunkedCRLF
	}
	return true
}

func (p *Parser) parseChunkCRLF(buf *Buffer) bool {
	if buf.Len() < 2 {
		return false
	}
	if !bytes.Equal(buf.Bytes()[:2], strCRLF) {
		p.fail(buf, StatusBadRequest, "malformed chunk terminator", nil)
		return true
	}
	buf.RemoveSpanFront(2)
	p.state = parserStateBodyChunkedSize
	return true
}

func (p *Parser) parseTrailer(buf *Buffer) bool {
	data := buf.Bytes()
	if len(data) >= 2 && bytes.Equal(data[:2], strCRLF) {
		buf.RemoveSpanFront(2)
		p.state = parserStateComplete
		p.callbacks.MessageComplete()
		return true
	}
	end := bytes.Index(data, strCRLFCRLF)
	if end < 0 {
		if len(data) > p.maxHeaderSize {
			p.fail(buf, StatusBadRequest, "trailer block too large", nil)
			return true
		}
		return false
	}
	block := data[:end]
	if err := parseHeaderBlock(block, &p.req.Trailer); err != nil {
		p.fail(buf, StatusBadRequest, "malformed trailers", err)
		return true
	}
	buf.RemoveSpanFront(end + len(strCRLFCRLF))
	p.state = parserStateComplete
	p.callbacks.MessageComplete()
	return true
}

func (p *Parser) fail(buf *Buffer, status int, reason string, err error) {
	atStart := p.state == parserStateStart
	p.lastErr = err
	p.state = parserStateClosed
	buf.Advance(buf.Len())
	p.callbacks.BadMessage(status, reason, err, atStart)
}

func trimCRLF(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return line
}

func parseHTTPVersion(v []byte) (major, minor int, ok bool) {
	if len(v) != 8 {
		return 0, 0, false
	}
	if !bytes.Equal(v[:5], []byte("HTTP/")) || v[6] != '.' {
		return 0, 0, false
	}
	if v[5] < '0' || v[5] > '9' || v[7] < '0' || v[7] > '9' {
		return 0, 0, false
	}
	return int(v[5] - '0'), int(v[7] - '0'), true
}

func parseHexIntBytes(b []byte) (int, bool) {
	if len(b) == 0 || len(b) > maxHexIntChars {
		return 0, false
	}
	n := 0
	for _, c := range b {
		k := hex2intTable[c]
		if k == 16 {
			return 0, false
		}
		n = n<<4 | int(k)
	}
	return n, true
}

// parseHeaderBlock scans a CRLF-joined header block (without the
// trailing blank line) into dst, grounded on the teacher's headerScanner
// (headerscanner.go) but operating over an already-delimited slice since
// this parser finds the CRLFCRLF boundary up front.
func parseHeaderBlock(block []byte, dst *Headers) error {
	takeLine := func() []byte {
		i := bytes.IndexByte(block, '\n')
		var raw []byte
		if i < 0 {
			raw = block
			block = nil
		} else {
			raw = block[:i]
			block = block[i+1:]
		}
		return bytes.TrimSuffix(raw, []byte("\r"))
	}

	for len(block) > 0 {
		line := takeLine()
		if len(line) == 0 {
			continue
		}
		for len(block) > 0 && (block[0] == ' ' || block[0] == '\t') {
			cont := bytes.TrimSpace(takeLine())
			line = append(line, ' ')
			line = append(line, cont...)
		}
		k, v, ok := bytes.Cut(line, strColon)
		if !ok || !isValidHeaderKey(k) {
			return errBadMessage
		}
		v = bytes.TrimLeft(v, " \t")
		dst.Add(k, v)
	}
	return nil
}
