package conduit

import (
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/yourusername/conduit/internal/testconn"
)

func newDriverWithHandler(handler Handler) (*ConnectionDriver, net.Conn) {
	cfg := NewConfig(handler)
	pc := testconn.NewPipeConns()
	d := NewConnectionDriver(NewTCPEndPoint(pc.Conn1()), cfg, &BufferPool{})
	return d, pc.Conn2()
}

func readResponse(t *testing.T, peer net.Conn) string {
	t.Helper()
	buf := make([]byte, 8192)
	peer.SetReadDeadline(time.Now().Add(time.Second))
	n, err := peer.Read(buf)
	if err != nil {
		t.Fatalf("peer read: %v", err)
	}
	return string(buf[:n])
}

func TestConnectionSimpleGETHTTP11(t *testing.T) {
	d, peer := newDriverWithHandler(func(ctx *Context) {
		ctx.Response.StatusCode = StatusOK
		ctx.Write([]byte("hi"))
	})
	defer peer.Close()

	go peer.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))
	done := make(chan struct{})
	go func() { d.Serve(); close(done) }()

	out := readResponse(t, peer)
	if !strings.Contains(out, "200 OK") || !strings.Contains(out, "hi") {
		t.Fatalf("unexpected response %q", out)
	}
	// the handler never called SetContentLength/SetChunked itself, so the
	// framing must be derived from the written body.
	if !strings.Contains(out, "Content-Length: 2\r\n") {
		t.Fatalf("expected an auto-derived Content-Length: 2 header, got %q", out)
	}
	peer.Close()
	<-done
}

func TestConnectionHTTP10KeepAlive(t *testing.T) {
	d, peer := newDriverWithHandler(func(ctx *Context) {
		ctx.Response.StatusCode = StatusOK
		ctx.Write([]byte("a"))
	})

	go peer.Write([]byte(
		"GET /1 HTTP/1.0\r\nConnection: keep-alive\r\n\r\n" +
			"GET /2 HTTP/1.0\r\nConnection: close\r\n\r\n"))
	done := make(chan struct{})
	go func() { d.Serve(); close(done) }()

	first := readResponse(t, peer)
	if !strings.Contains(first, "200 OK") || !strings.Contains(first, "Connection: keep-alive") {
		t.Fatalf("unexpected first response %q", first)
	}
	second := readResponse(t, peer)
	if !strings.Contains(second, "200 OK") || !strings.Contains(second, "Connection: close") {
		t.Fatalf("unexpected second response %q", second)
	}
	peer.Close()
	<-done
}

func TestConnectionHTTP11ExplicitClose(t *testing.T) {
	d, peer := newDriverWithHandler(func(ctx *Context) {
		ctx.Response.StatusCode = StatusOK
		ctx.Write(nil)
	})

	go peer.Write([]byte("GET / HTTP/1.1\r\nConnection: close\r\n\r\n"))
	done := make(chan struct{})
	go func() { d.Serve(); close(done) }()

	out := readResponse(t, peer)
	if !strings.Contains(out, "Connection: close") {
		t.Fatalf("expected Connection: close, got %q", out)
	}

	// after a non-persistent response Serve must return rather than wait
	// for another request.
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Serve did not return after a non-persistent response")
	}
	peer.Close()
}

func TestConnectionPipelinedRequests(t *testing.T) {
	var seen []string
	d, peer := newDriverWithHandler(func(ctx *Context) {
		seen = append(seen, string(ctx.Request.RequestURI))
		ctx.Response.StatusCode = StatusOK
		ctx.Write([]byte("ok"))
	})

	go peer.Write([]byte(
		"GET /a HTTP/1.1\r\n\r\n" +
			"GET /b HTTP/1.1\r\nConnection: close\r\n\r\n"))
	done := make(chan struct{})
	go func() { d.Serve(); close(done) }()

	readResponse(t, peer)
	readResponse(t, peer)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Serve did not return after the pipelined close")
	}
	if len(seen) != 2 || seen[0] != "/a" || seen[1] != "/b" {
		t.Fatalf("unexpected request order %v", seen)
	}
	peer.Close()
}

func TestConnectionExpect100Continue(t *testing.T) {
	var bodyGot string
	d, peer := newDriverWithHandler(func(ctx *Context) {
		b, _ := io.ReadAll(ctx.Body)
		bodyGot = string(b)
		ctx.Response.StatusCode = StatusOK
		ctx.Write([]byte("ok"))
	})

	go peer.Write([]byte(
		"POST /x HTTP/1.1\r\nContent-Length: 5\r\nExpect: 100-continue\r\nConnection: close\r\n\r\nhello"))
	done := make(chan struct{})
	go func() { d.Serve(); close(done) }()

	interim := readResponse(t, peer)
	if !strings.Contains(interim, "100 Continue") {
		t.Fatalf("expected a 100 Continue interim response, got %q", interim)
	}
	final := readResponse(t, peer)
	if !strings.Contains(final, "200 OK") {
		t.Fatalf("expected the final response, got %q", final)
	}
	<-done
	if bodyGot != "hello" {
		t.Fatalf("unexpected body delivered to handler: %q", bodyGot)
	}
	peer.Close()
}

func TestConnectionWriteHonorsExplicitChunkedFraming(t *testing.T) {
	d, peer := newDriverWithHandler(func(ctx *Context) {
		ctx.Response.StatusCode = StatusOK
		ctx.Response.SetChunked()
		ctx.Write([]byte("hi"))
	})
	defer peer.Close()

	go peer.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"))
	done := make(chan struct{})
	go func() { d.Serve(); close(done) }()

	out := readResponse(t, peer)
	if strings.Contains(out, "Content-Length") {
		t.Fatalf("an explicit SetChunked call must not be overridden by auto Content-Length, got %q", out)
	}
	if !strings.Contains(out, "Transfer-Encoding: chunked") {
		t.Fatalf("expected chunked framing to be preserved, got %q", out)
	}
	<-done
}

func TestConnectionExpectContinueHandlerRespondsWithoutReadingBody(t *testing.T) {
	d, peer := newDriverWithHandler(func(ctx *Context) {
		ctx.Response.StatusCode = StatusExpectationFailed
		ctx.Write(nil)
	})

	go peer.Write([]byte(
		"POST /x HTTP/1.1\r\nContent-Length: 5\r\nExpect: 100-continue\r\n\r\nhello"))
	done := make(chan struct{})
	go func() { d.Serve(); close(done) }()

	out := readResponse(t, peer)
	if strings.Contains(out, "100 Continue") {
		t.Fatalf("no 100 Continue should be sent when the handler never reads the body, got %q", out)
	}
	if !strings.Contains(out, "417") {
		t.Fatalf("expected the handler's 417 response, got %q", out)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("connection should close rather than wait on a body the client was never invited to send")
	}
	peer.Close()
}

func TestConnectionRequestBodyTooLarge(t *testing.T) {
	handlerRan := false
	cfg := NewConfig(func(ctx *Context) {
		handlerRan = true
	})
	cfg.MaxRequestBodySize = 4
	pc := testconn.NewPipeConns()
	d := NewConnectionDriver(NewTCPEndPoint(pc.Conn1()), cfg, &BufferPool{})
	peer := pc.Conn2()

	go peer.Write([]byte("POST /x HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"))
	done := make(chan struct{})
	go func() { d.Serve(); close(done) }()

	out := readResponse(t, peer)
	if !strings.Contains(out, "413") {
		t.Fatalf("expected a 413 response for a body over MaxRequestBodySize, got %q", out)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Serve did not return after rejecting an oversized body")
	}
	if handlerRan {
		t.Fatalf("the handler must not run for a request rejected as too large")
	}
	peer.Close()
}

func TestConnectionUpgradeHandoff(t *testing.T) {
	upgraded := make(chan net.Conn, 1)
	d, peer := newDriverWithHandler(func(ctx *Context) {
		ctx.Request.SetAttr(UpgradeAttr, UpgradeFunc(func(c net.Conn) {
			upgraded <- c
		}))
		ctx.Response.StatusCode = StatusSwitchingProtocols
		ctx.Response.Header.Set([]byte("Upgrade"), []byte("websocket"))
		ctx.Write(nil)
	})
	defer peer.Close()

	go peer.Write([]byte("GET /ws HTTP/1.1\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n\r\n"))
	done := make(chan struct{})
	go func() { d.Serve(); close(done) }()

	out := readResponse(t, peer)
	if !strings.Contains(out, "101") {
		t.Fatalf("expected a 101 response, got %q", out)
	}
	select {
	case <-upgraded:
	case <-time.After(time.Second):
		t.Fatalf("expected the UpgradeFunc to run")
	}
	<-done
}

func TestConnectionMalformedRequestClosesConnection(t *testing.T) {
	d, peer := newDriverWithHandler(func(ctx *Context) {
		ctx.Write(nil)
	})

	go peer.Write([]byte("NOT A REQUEST LINE AT ALL\r\n\r\n"))
	done := make(chan struct{})
	go func() { d.Serve(); close(done) }()

	out := readResponse(t, peer)
	if !strings.Contains(out, "400") {
		t.Fatalf("expected a 400 response for a malformed request line, got %q", out)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Serve did not return after a bad message")
	}
	peer.Close()
}
