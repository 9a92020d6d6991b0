package conduit

// Handler is the application entry point. It receives the parsed
// Request and a ResponseInfo written through the connection's
// WriteDriver by Context.Write,
// and returns once it has written (or decided not to write) a response.
type Handler func(ctx *Context)

// Context is handed to the Handler for the duration of one request/
// response cycle; it bundles the parsed Request, a ResponseInfo, and
// the body reader, mirroring the teacher's RequestCtx grouping without
// carrying any of its URI-routing or template helpers (out of scope,
// spec §1).
type Context struct {
	Request  *Request
	Response ResponseInfo
	Body     *RequestBodyReader

	writer *WriteDriver
}

// Write sends a complete, non-streamed response: it drives CommitWrite
// with last=true and blocks until the bytes are on the wire or an error
// occurs (spec §4.4 "blocking variant of send"). If the handler never
// chose a framing (SetContentLength/SetChunked/SetCloseDelimited), the
// response's Content-Length is derived from body, the way the teacher's
// Response.Write auto-sizes a non-streamed write (http.go) — otherwise a
// persistent connection would flush an unframed body with no way for the
// peer to find the next response.
func (c *Context) Write(body []byte) error {
	if c.Response.bodyKind == bodyLengthNone {
		c.Response.SetContentLength(int64(len(body)))
	}
	return c.writer.Send(&c.Response, body, true)
}

// Channel bridges the Parser's callbacks to persistence and error
// routing (spec §4.5), and owns the Request/Generator pair for one
// ConnectionDriver. It implements ParserCallbacks.
type Channel struct {
	req       *Request
	gen       *Generator
	handler   Handler
	logger    Logger

	headerReady            bool // set by HeaderComplete, drained by ConnectionDriver
	bad                    *BadMessageError
	pendingConnectionToken []byte
}

// NewChannel wires req and gen together under handler.
func NewChannel(req *Request, gen *Generator, handler Handler, logger Logger) *Channel {
	if logger == nil {
		logger = NopLogger{}
	}
	return &Channel{req: req, gen: gen, handler: handler, logger: logger}
}

// TakeHeaderReady reports and clears whether the most recent parse
// produced a complete header block — the "call_channel == true" signal
// from spec §4.1.b.
func (ch *Channel) TakeHeaderReady() bool {
	r := ch.headerReady
	ch.headerReady = false
	return r
}

// HeaderComplete implements ParserCallbacks. It decides persistence
// from the parsed version and Connection header (spec §4.5) and records
// Connection: keep-alive/close on the eventual response.
func (ch *Channel) HeaderComplete(req *Request) {
	ch.headerReady = true

	persistent, responseToken := decidePersistence(req)
	ch.gen.SetPersistent(persistent)
	ch.pendingConnectionToken = responseToken
}

// pendingConnectionToken, set by HeaderComplete, is the Connection
// header value (if any) HttpChannel wants echoed on the response;
// applied when the handler's Context response is prepared.
func (ch *Channel) ConnectionToken() []byte { return ch.pendingConnectionToken }

func decidePersistence(req *Request) (persistent bool, responseToken []byte) {
	switch {
	case req.IsConnect():
		return true, nil
	case req.IsHTTP09():
		return false, nil
	case req.IsHTTP10():
		if req.Header.HasToken(strConnection, strKeepAlive) {
			return true, strKeepAlive
		}
		return false, nil
	case req.IsHTTP11():
		if req.Header.HasToken(strConnection, strClose) {
			return false, strClose
		}
		return true, nil
	default:
		return false, nil
	}
}

// Content implements ParserCallbacks. De-framing happens in place in
// the request buffer (parser.go doc comment); there is nothing to queue
// here, matching RequestBodyReader's on_content_queued no-op.
func (ch *Channel) Content(chunk []byte) {}

// MessageComplete implements ParserCallbacks.
func (ch *Channel) MessageComplete() {}

// BadMessage implements ParserCallbacks. A malformed request always
// makes the generator non-persistent (spec §4.5): there is no safe
// resynchronization point for a following request on this connection.
// atStart distinguishes a failure before any of the request line was
// recognized (a stray/idle byte on the wire, logged at debug) from one
// discovered mid-message (logged at warn), the recovered original_source
// log-level split (SPEC_FULL.md "Features recovered from original_source").
func (ch *Channel) BadMessage(statusCode int, reason string, err error, atStart bool) {
	ch.gen.SetPersistent(false)
	ch.bad = &BadMessageError{StatusCode: statusCode, Reason: reason, Err: err}
	if atStart {
		ch.logger.Debugf("conduit: bad message: %s (%s)", reason, errString(err))
	} else {
		ch.logger.Warnf("conduit: bad message: %s (%s)", reason, errString(err))
	}
}

// HasBadMessage reports, without clearing it, whether BadMessage has
// fired for the message currently being parsed.
func (ch *Channel) HasBadMessage() bool { return ch.bad != nil }

// TakeBadMessage reports and clears a pending malformed-request error.
func (ch *Channel) TakeBadMessage() *BadMessageError {
	b := ch.bad
	ch.bad = nil
	return b
}

// HandlerException marks the generator non-persistent after an
// uncaught panic/error from the Handler (spec §4.5, §7
// handler-exception): a handler that failed partway through cannot be
// trusted to have left the response framing in a safe state.
func (ch *Channel) HandlerException(err error) {
	ch.gen.SetPersistent(false)
	ch.logger.Warnf("conduit: handler error: %v", err)
}

// Reset clears per-request channel state for the next message on a
// persistent connection (spec §4.2 item 3).
func (ch *Channel) Reset() {
	ch.headerReady = false
	ch.bad = nil
	ch.pendingConnectionToken = nil
}

func errString(err error) string {
	if err == nil {
		return "n/a"
	}
	return err.Error()
}
