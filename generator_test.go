package conduit

import (
	"strings"
	"testing"
)

func TestGeneratorFixedLengthResponse(t *testing.T) {
	g := NewGenerator()
	g.SetPersistent(true)
	var pool BufferPool
	headerBuf := pool.Acquire(256)

	info := &ResponseInfo{StatusCode: StatusOK}
	info.SetContentLength(5)

	res := g.GenerateResponse(info, nil, nil, nil, false)
	if res != GenNeedHeader {
		t.Fatalf("expected NeedHeader on first call, got %v", res)
	}
	res = g.GenerateResponse(info, headerBuf, nil, nil, false)
	if res != GenContinue {
		t.Fatalf("expected Continue with no content yet, got %v", res)
	}

	content := WrapBuffer([]byte("hello"))
	res = g.GenerateResponse(nil, nil, nil, content, true)
	if res != GenFlush {
		t.Fatalf("expected Flush once content+last arrive, got %v", res)
	}

	res = g.GenerateResponse(nil, nil, nil, nil, true)
	if res != GenDone {
		t.Fatalf("expected Done for a persistent fixed-length response, got %v", res)
	}

	header := string(headerBuf.Bytes())
	if !strings.Contains(header, "200 OK") {
		t.Fatalf("header missing status line: %q", header)
	}
	if !strings.Contains(header, "Content-Length: 5") {
		t.Fatalf("header missing Content-Length: %q", header)
	}
	if strings.Contains(header, "Connection: close") {
		t.Fatalf("persistent response must not emit Connection: close: %q", header)
	}
}

func TestGeneratorNonPersistentEmitsConnectionClose(t *testing.T) {
	g := NewGenerator()
	g.SetPersistent(false)
	var pool BufferPool
	headerBuf := pool.Acquire(256)
	info := &ResponseInfo{StatusCode: StatusOK}
	info.SetContentLength(0)

	g.GenerateResponse(info, nil, nil, nil, false)
	res := g.GenerateResponse(info, headerBuf, nil, nil, true)
	if res != GenFlush {
		t.Fatalf("expected Flush, got %v", res)
	}
	res = g.GenerateResponse(nil, nil, nil, nil, true)
	if res != GenShutdownOut {
		t.Fatalf("a non-persistent response must shut down output after the final flush, got %v", res)
	}
	res = g.GenerateResponse(nil, nil, nil, nil, true)
	if res != GenDone {
		t.Fatalf("expected Done after ShutdownOut is acted on, got %v", res)
	}
	if !strings.Contains(string(headerBuf.Bytes()), "Connection: close") {
		t.Fatalf("expected Connection: close header")
	}
}

func TestGeneratorChunkedAcrossMultipleRounds(t *testing.T) {
	g := NewGenerator()
	g.SetPersistent(true)
	var pool BufferPool
	headerBuf := pool.Acquire(256)
	chunkBuf := pool.Acquire(256)
	info := &ResponseInfo{StatusCode: StatusOK}
	info.SetChunked()

	g.GenerateResponse(info, nil, nil, nil, false)
	res := g.GenerateResponse(info, headerBuf, chunkBuf, nil, false)
	if res != GenContinue {
		t.Fatalf("expected Continue before any content, got %v", res)
	}

	first := WrapBuffer([]byte("Wiki"))
	res = g.GenerateResponse(nil, nil, chunkBuf, first, false)
	if res != GenFlush {
		t.Fatalf("expected Flush for first chunk, got %v", res)
	}
	if string(chunkBuf.Bytes()) != "4\r\n" {
		t.Fatalf("unexpected first chunk framing %q", chunkBuf.Bytes())
	}
	chunkBuf.Reset()

	second := WrapBuffer([]byte("pedia"))
	res = g.GenerateResponse(nil, nil, chunkBuf, second, true)
	if res != GenFlush {
		t.Fatalf("expected Flush for second chunk, got %v", res)
	}
	// the first chunk's trailing CRLF is deferred to the front of this round.
	if string(chunkBuf.Bytes()) != "\r\n5\r\n" {
		t.Fatalf("unexpected deferred CRLF framing %q", chunkBuf.Bytes())
	}
	chunkBuf.Reset()

	res = g.GenerateResponse(nil, nil, chunkBuf, nil, true)
	if res != GenFlush {
		t.Fatalf("expected Flush for the terminal chunk, got %v", res)
	}
	if string(chunkBuf.Bytes()) != "\r\n0\r\n\r\n" {
		t.Fatalf("unexpected terminal chunk framing %q", chunkBuf.Bytes())
	}

	res = g.GenerateResponse(nil, nil, nil, nil, true)
	if res != GenDone {
		t.Fatalf("expected Done, got %v", res)
	}
}

func TestGeneratorHeadSkipsBody(t *testing.T) {
	g := NewGenerator()
	g.SetPersistent(true)
	var pool BufferPool
	headerBuf := pool.Acquire(256)
	info := &ResponseInfo{StatusCode: StatusOK, SkipBody: true}
	info.SetContentLength(5)

	g.GenerateResponse(info, nil, nil, nil, false)
	g.GenerateResponse(info, headerBuf, nil, nil, false)
	if !g.SkipBody() {
		t.Fatalf("expected SkipBody true for a HEAD response")
	}
	if !strings.Contains(string(headerBuf.Bytes()), "Content-Length: 5") {
		t.Fatalf("HEAD response must still report the Content-Length it would have sent")
	}
}

func TestGeneratorResetForNextResponse(t *testing.T) {
	g := NewGenerator()
	g.SetPersistent(true)
	var pool BufferPool
	headerBuf := pool.Acquire(256)
	info := &ResponseInfo{StatusCode: StatusOK}
	info.SetContentLength(0)
	g.GenerateResponse(info, nil, nil, nil, false)
	g.GenerateResponse(info, headerBuf, nil, nil, true)
	g.GenerateResponse(nil, nil, nil, nil, true)

	g.Reset()
	headerBuf.Reset()
	info2 := &ResponseInfo{StatusCode: StatusNotFound}
	info2.SetContentLength(0)
	res := g.GenerateResponse(info2, nil, nil, nil, false)
	if res != GenNeedHeader {
		t.Fatalf("expected a fresh NeedHeader round after Reset, got %v", res)
	}
	g.GenerateResponse(info2, headerBuf, nil, nil, true)
	if !strings.Contains(string(headerBuf.Bytes()), "404") {
		t.Fatalf("expected the second response's status line, got %q", headerBuf.Bytes())
	}
}
