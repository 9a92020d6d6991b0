package conduit

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"
	"unsafe"
)

// UpgradeFunc is the value a Handler stores under UpgradeAttr alongside
// a 101 Switching Protocols response to take over the raw connection
// once the response has been flushed (spec §4.2 item 2). ConnectionDriver
// runs it on the same goroutine that was driving on_fillable and then
// stops serving HTTP on this connection entirely.
type UpgradeFunc func(net.Conn)

// ConnectionDriver owns one accepted connection end to end: it reads
// and parses requests, invokes Config.Handler once each one's headers
// are ready, writes the response, and resets its Request/Generator/
// Channel/WriteDriver for the next pipelined request (spec §4
// "ConnectionDriver", §4.6 on_fillable/completed).
//
// The source drives this from a readiness callback so one I/O thread
// can multiplex many sockets; this module instead gives each accepted
// connection its own goroutine performing ordinary blocking reads and
// writes — the teacher's own serveConn shape (server.go) — so
// on_fillable's fill-parse-dispatch-repeat loop collapses into Serve's
// single straight-line loop instead of a callback re-armed by a
// selector.
type ConnectionDriver struct {
	ep     EndPoint
	cfg    *Config
	pool   *BufferPool
	logger Logger

	req     *Request
	gen     *Generator
	parser  *Parser
	channel *Channel
	writer  *WriteDriver

	reqBuf   *Buffer
	chunkBuf *Buffer

	servedCount int

	// continueOwed is true from the moment a request declaring
	// "Expect: 100-continue" has its headers parsed until either a 100
	// Continue interim response is sent (the first time something pulls
	// on RequestBodyReader) or the handler answers without ever reading
	// the body, at which point the channel is marked non-persistent
	// instead (spec §4.6: sending 100-continue is the body reader's
	// decision, not automatic).
	continueOwed bool

	// idleList, idleItem, and inIdleList track this connection on the
	// owning Server's idle list while it waits between pipelined
	// requests, so Server.CloseIdleConnections can find it (spec's
	// ambient stack, recovered original_source idle-connection
	// bookkeeping, SPEC_FULL.md).
	idleList   *idleConnList
	idleItem   idleConnListItem
	inIdleList bool
}

// NewConnectionDriver wires a fresh Request/Generator/Parser/Channel/
// WriteDriver set around ep using cfg's tunables.
func NewConnectionDriver(ep EndPoint, cfg *Config, pool *BufferPool) *ConnectionDriver {
	d := &ConnectionDriver{
		ep:     ep,
		cfg:    cfg,
		pool:   pool,
		logger: cfg.logger(),
		req:    &Request{},
		gen:    NewGenerator(),
	}
	d.gen.SetSendServerVersion(cfg.SendServerVersion)
	d.channel = NewChannel(d.req, d.gen, cfg.Handler, d.logger)
	d.parser = NewParser(d.req, d.channel, cfg.maxLineSize(), cfg.maxHeaderSize(), cfg.maxRequestBodySize())
	d.writer = newWriteDriver(d)
	return d
}

// Serve runs requests on this connection until it is closed, a
// malformed request is received, or either side asks not to persist. It
// reports upgraded=true if a 101 handoff took over ep, in which case ep
// is left open and owned by the replacement protocol handler — Serve
// must not, and does not, close it.
func (d *ConnectionDriver) Serve() (upgraded bool) {
	defer d.markActive()
	for {
		var err error
		upgraded, err = d.serveOne()
		if upgraded {
			return true
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				d.logger.Debugf("conduit: connection ended: %v", err)
			}
			d.ep.Close()
			return false
		}
		d.servedCount++
		if !d.gen.IsPersistent() {
			d.ep.Close()
			return false
		}
		if tr := d.cfg.Trace; tr != nil && tr.IdledConn != nil {
			tr.IdledConn(d.ep.Raw())
		}
		d.markIdle()
		d.reset()
	}
}

// serveOne parses one request, invokes the handler, and writes its
// response. It reports upgraded=true if a 101 handoff took over the
// connection, in which case the caller must not touch ep again.
func (d *ConnectionDriver) serveOne() (upgraded bool, err error) {
	if d.reqBuf == nil {
		d.reqBuf = d.pool.Acquire(d.cfg.readBufferSize())
	}

	if err := d.parseHeader(); err != nil {
		return false, err
	}

	if bad := d.channel.TakeBadMessage(); bad != nil {
		d.writeBadMessage(bad)
		return false, nil
	}

	return d.handleRequest()
}

// parseHeader fills and parses until HeaderComplete (or BadMessage) has
// fired, growing/compacting the request buffer as needed (spec §4.6
// on_fillable's "parse, and if no progress, fill").
func (d *ConnectionDriver) parseHeader() error {
	if d.reqBuf == nil {
		d.reqBuf = d.pool.Acquire(d.cfg.readBufferSize())
	}
	activated := d.servedCount == 0
	for {
		if !activated && !d.reqBuf.IsEmpty() {
			activated = true
			if tr := d.cfg.Trace; tr != nil && tr.ActivatedConn != nil {
				tr.ActivatedConn(d.ep.Raw())
			}
			d.markActive()
		}
		progressed := d.parser.ParseNext(d.reqBuf)
		if d.channel.TakeHeaderReady() {
			return nil
		}
		if d.channel.HasBadMessage() {
			return nil
		}
		if progressed {
			continue
		}

		d.reqBuf.Compact()
		d.maybeSetIdleDeadline()
		n, ferr := d.ep.Fill(d.reqBuf, d.cfg.readBufferSize())
		if n == 0 {
			if ferr != nil {
				return ferr
			}
			return io.ErrUnexpectedEOF
		}
	}
}

// maybeSetIdleDeadline refreshes the read deadline while waiting for the
// first byte of the next pipelined request (recovered original_source
// idle-timeout behavior, SPEC_FULL.md).
func (d *ConnectionDriver) maybeSetIdleDeadline() {
	if d.cfg.IdleTimeout <= 0 || !d.parser.IsStart() {
		return
	}
	if conn := d.ep.Raw(); conn != nil {
		_ = conn.SetReadDeadline(time.Now().Add(d.cfg.IdleTimeout))
	}
}

// blockForContent fills more bytes and parses them, for RequestBodyReader
// to call when it has nothing buffered left. It returns whether any
// forward progress was made.
func (d *ConnectionDriver) blockForContent(parser *Parser, buf *Buffer) (bool, error) {
	if buf.IsEmpty() {
		buf.Reset()
	} else {
		buf.Compact()
	}
	hint := bodyReadBufferSize(d.req.ContentLength(), d.cfg.readBufferSize())
	n, err := d.ep.Fill(buf, hint)
	if n == 0 && err != nil {
		parser.ShutdownInput()
		return false, err
	}
	progressed := false
	for parser.ParseNext(buf) {
		progressed = true
		if buf.Len() > 0 || parser.IsComplete() {
			break
		}
	}
	if d.channel.HasBadMessage() {
		return progressed, errBadMessage
	}
	return progressed, nil
}

// releaseRequestBufferIfIdle gives the request buffer back to the pool
// once a RequestBodyReader has drained the last content byte and the
// parser has nothing left to do with it before the next message (spec
// §4.3 buffer-release-on-drain).
func (d *ConnectionDriver) releaseRequestBufferIfIdle() {
	if d.reqBuf == nil || !d.parser.IsComplete() {
		return
	}
	d.pool.Release(d.reqBuf)
	d.reqBuf = d.pool.Acquire(d.cfg.readBufferSize())
}

// handleRequest prepares a Context, runs Config.Handler, drains any
// unread body bytes the handler left behind, and performs a 101
// upgrade handoff if the handler asked for one. A 100-continue answer
// (if the request declared one) is not sent here; it is deferred to the
// first RequestBodyReader.Read (sendContinueIfOwed) so a handler that
// answers without reading the body never causes one to be sent at all.
func (d *ConnectionDriver) handleRequest() (upgraded bool, err error) {
	d.continueOwed = d.req.MayContinue()

	ctx := &Context{Request: d.req, writer: d.writer}
	ctx.Response.Reset()
	if tok := d.channel.ConnectionToken(); tok != nil {
		ctx.Response.Header.Set(strConnection, tok)
	}
	if d.req.HasBody() {
		ctx.Body = newRequestBodyReader(d, d.parser, d.reqBuf)
	}

	if tr := d.cfg.Trace; tr != nil && tr.GotRequest != nil {
		tr.GotRequest(ctx)
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				d.channel.HandlerException(fmt.Errorf("%v", r))
			}
		}()
		d.cfg.Handler(ctx)
	}()

	if tr := d.cfg.Trace; tr != nil && tr.WroteResponse != nil {
		tr.WroteResponse(ctx, ctx.Response.ContentLength, nil)
	}

	// The handler returned without ever pulling on ctx.Body, so no 100
	// Continue was ever sent: the client is still holding its body back
	// waiting for one that will now never come. There is nothing to
	// drain — the peer hasn't sent it — and the stream can't be trusted
	// to stay in sync for a further pipelined request.
	neverContinued := d.continueOwed
	if neverContinued {
		d.continueOwed = false
		d.gen.SetPersistent(false)
	}

	if d.req.HasBody() && !d.parser.IsComplete() && !neverContinued {
		if _, derr := io.Copy(io.Discard, ctx.Body); derr != nil {
			d.gen.SetPersistent(false)
		}
	}

	if ctx.Response.StatusCode == StatusSwitchingProtocols {
		if fn, ok := d.req.Attr(UpgradeAttr).(UpgradeFunc); ok {
			if tr := d.cfg.Trace; tr != nil && tr.UpgradedConn != nil {
				tr.UpgradedConn(d.ep.Raw())
			}
			fn(d.ep.Raw())
			return true, nil
		}
	}

	return false, nil
}

// sendContinueIfOwed answers a pending "Expect: 100-continue" the first
// time something actually asks for body bytes (RequestBodyReader.Read),
// rather than automatically as soon as the headers are parsed (spec
// §4.6): until a reader pulls on the body, the decision to invite it is
// the body reader's to make, matching the teacher's own
// MayContinue/ContinueReadBody split (http.go) where sending the interim
// response is the caller's choice, not the parser's.
func (d *ConnectionDriver) sendContinueIfOwed() error {
	if !d.continueOwed {
		return nil
	}
	d.continueOwed = false
	return d.sendContinue()
}

// sendContinue answers an "Expect: 100-continue" request (spec §4.6)
// with a bare interim status line; it bypasses the Generator because a
// 100 response carries no headers or body and is not the message the
// generator's phase machine is tracking.
func (d *ConnectionDriver) sendContinue() error {
	_, err := d.ep.Write([]byte("HTTP/1.1 100 Continue\r\n\r\n"))
	return err
}

// writeBadMessage answers a malformed request with the status the
// parser recorded and closes the connection afterward (spec §4.5: a bad
// message is never persistent).
func (d *ConnectionDriver) writeBadMessage(bad *BadMessageError) {
	info := &ResponseInfo{StatusCode: bad.StatusCode}
	info.SetContentLength(0)
	if err := d.writer.Send(info, nil, true); err != nil {
		d.logger.Debugf("conduit: failed writing bad-message response: %v", err)
	}
}

// markIdle records this connection on the owning Server's idle list
// once its response has been fully sent and it is waiting for the next
// pipelined request.
func (d *ConnectionDriver) markIdle() {
	if d.idleList == nil || d.inIdleList {
		return
	}
	d.idleItem.c = d.ep.Raw()
	d.idleItem.connTime.Store(CoarseTimeNow().UnixNano())
	d.idleList.insertBack(uintptr(unsafe.Pointer(&d.idleItem)))
	d.inIdleList = true
}

// markActive removes this connection from the idle list, either
// because a new request arrived or because the connection is closing.
func (d *ConnectionDriver) markActive() {
	if d.idleList == nil || !d.inIdleList {
		return
	}
	d.idleList.remove(uintptr(unsafe.Pointer(&d.idleItem)))
	d.inIdleList = false
}

// reset prepares the driver for the next pipelined request on this
// connection (spec §4.2 item 3): Parser, Generator, Channel, and
// WriteDriver all drop their per-message state, and the Request is
// cleared for reuse.
func (d *ConnectionDriver) reset() {
	d.continueOwed = false
	d.parser.Reset()
	d.gen.Reset()
	d.gen.SetSendServerVersion(d.cfg.SendServerVersion)
	d.channel.Reset()
	d.writer.reset()
	d.req.Reset()
	if d.reqBuf != nil && d.reqBuf.IsEmpty() {
		d.reqBuf.Reset()
	}
}
