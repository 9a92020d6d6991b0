/*
Package conduit implements an HTTP/1.x connection driver: the piece of a
server that sits between a byte-oriented transport and an application
handler.

Given an accepted net.Conn, a ConnectionDriver incrementally parses
inbound requests, invokes a Handler, and drives an incremental response
generator back onto the connection — coordinating buffer reuse, request
body back-pressure, keep-alive/pipelining, and the 101 Switching
Protocols upgrade handoff along the way.

The driver is deliberately narrow in scope: it does not route requests,
does not speak HTTP/2 or terminate TLS, and does not decode request
bodies beyond chunked-transfer framing. Those are the application's
and the listener's job; this package is the wire-level engine in
between.
*/
package conduit
