package conduit

import "net"

// ServerTrace is a set of hooks a Config can set to observe a
// connection's lifecycle and each request/response cycle on it. Any
// hook may be nil. Hooks may be called concurrently from different
// connections' goroutines.
type ServerTrace struct {
	// GotConn is called once Server.Serve has accepted conn and before
	// its ConnectionDriver starts reading from it.
	GotConn func(conn net.Conn)

	// ClosedConn is called after a connection has been closed.
	ClosedConn func(conn net.Conn)

	// ActivatedConn is called when a connection that had been idle
	// between pipelined requests receives the first byte of a new one.
	ActivatedConn func(conn net.Conn)

	// IdledConn is called once a response has been fully written and
	// the connection is persistent, entering keep-alive until the next
	// request arrives.
	IdledConn func(conn net.Conn)

	// UpgradedConn is called when a 101 response hands the raw
	// connection off to an UpgradeFunc; ClosedConn will not also fire
	// for this connection.
	UpgradedConn func(conn net.Conn)

	// GotRequest is called once a request's headers have been parsed,
	// before Config.Handler runs.
	GotRequest func(ctx *Context)

	// WroteResponse is called after Config.Handler returns. n is the
	// response's ContentLength field (zero unless SetContentLength was
	// used); err is always nil: write errors reach the handler through
	// Context.Write's return value and are not reported here.
	WroteResponse func(ctx *Context, n int64, err error)
}
