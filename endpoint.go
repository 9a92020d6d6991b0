package conduit

import "net"

// EndPoint is the driver's transport seam, grounded on Jetty's
// EndPoint (fill/write/shutdownOutput/close) but adapted to Go's
// blocking-per-goroutine I/O model instead of a readiness-driven
// selector: Fill and Write block the calling goroutine rather than
// registering interest and invoking a callback, which is the idiomatic
// Go shape the teacher itself uses (one goroutine per accepted
// connection, server.go's serveConn).
type EndPoint interface {
	// Fill reads as much as is immediately available into buf's spare
	// capacity and returns the number of bytes appended. It returns
	// io.EOF when the peer has shut down its output. hint is the
	// minimum spare capacity the caller wants available before the
	// read — e.g. bodyReadBufferSize's multiple of the read buffer size
	// covering a known Content-Length (spec §4.3 size-quadrupling) — so
	// a large body doesn't
	// grow the buffer one short read at a time.
	Fill(buf *Buffer, hint int) (int, error)

	// Write performs a scatter write of bufs, in order, as a single
	// underlying write when the transport supports it.
	Write(bufs ...[]byte) (int64, error)

	// ShutdownOutput half-closes the connection's output direction
	// (TCP FIN) without releasing the file descriptor, so a pending
	// read can still observe the peer's own close. tcpEndPoint falls
	// back to a full Close when its conn has no CloseWrite method.
	ShutdownOutput() error

	Close() error

	IsInputShutdown() bool
	IsOutputShutdown() bool

	RemoteAddr() net.Addr
	LocalAddr() net.Addr

	// Raw exposes the underlying net.Conn for protocol handoff (a 101
	// Switching Protocols response, spec §4.2 item 2 UPGRADE) and for
	// setting an idle read deadline between pipelined requests.
	Raw() net.Conn
}

// closeWriter is implemented by *net.TCPConn and *tls.Conn; EndPoint
// uses it to perform a real half-close instead of a full Close.
type closeWriter interface {
	CloseWrite() error
}

// tcpEndPoint is the concrete EndPoint over a net.Conn, the production
// transport for ConnectionDriver (Server.Serve wires one per accepted
// connection, mirroring the teacher's Server.ServeConn).
type tcpEndPoint struct {
	conn net.Conn

	inputShutdown  bool
	outputShutdown bool
}

// NewTCPEndPoint wraps conn as an EndPoint.
func NewTCPEndPoint(conn net.Conn) EndPoint {
	return &tcpEndPoint{conn: conn}
}

func (e *tcpEndPoint) Fill(buf *Buffer, hint int) (int, error) {
	if hint <= 0 {
		hint = 4096
	}
	spare := buf.Spare(hint)
	n, err := e.conn.Read(spare)
	if n > 0 {
		buf.CommitFill(n)
	}
	if err != nil {
		e.inputShutdown = true
	}
	return n, err
}

func (e *tcpEndPoint) Write(bufs ...[]byte) (int64, error) {
	nb := make(net.Buffers, 0, len(bufs))
	for _, b := range bufs {
		if len(b) > 0 {
			nb = append(nb, b)
		}
	}
	if len(nb) == 0 {
		return 0, nil
	}
	return nb.WriteTo(e.conn)
}

func (e *tcpEndPoint) ShutdownOutput() error {
	e.outputShutdown = true
	if cw, ok := e.conn.(closeWriter); ok {
		return cw.CloseWrite()
	}
	return e.conn.Close()
}

func (e *tcpEndPoint) Close() error {
	e.inputShutdown = true
	e.outputShutdown = true
	return e.conn.Close()
}

func (e *tcpEndPoint) IsInputShutdown() bool  { return e.inputShutdown }
func (e *tcpEndPoint) IsOutputShutdown() bool { return e.outputShutdown }

func (e *tcpEndPoint) RemoteAddr() net.Addr { return e.conn.RemoteAddr() }
func (e *tcpEndPoint) LocalAddr() net.Addr  { return e.conn.LocalAddr() }

func (e *tcpEndPoint) Raw() net.Conn { return e.conn }
