package conduit

import "testing"

func TestBufferPoolAcquireRelease(t *testing.T) {
	var p BufferPool
	buf := p.Acquire(16)
	if buf.Len() != 0 {
		t.Fatalf("fresh buffer should be empty, got len=%d", buf.Len())
	}
	if buf.TrailingSpare() < 16 {
		t.Fatalf("expected at least 16 bytes spare, got %d", buf.TrailingSpare())
	}
	n, err := buf.Write([]byte("hello world"))
	if err != nil || n != 11 {
		t.Fatalf("unexpected write result n=%d err=%v", n, err)
	}
	if string(buf.Bytes()) != "hello world" {
		t.Fatalf("unexpected contents %q", buf.Bytes())
	}
	buf.Advance(6)
	if string(buf.Bytes()) != "world" {
		t.Fatalf("unexpected contents after advance %q", buf.Bytes())
	}
	p.Release(buf)
	if buf.bb != nil {
		t.Fatalf("released buffer should drop its backing array")
	}
}

func TestBufferCompact(t *testing.T) {
	var p BufferPool
	buf := p.Acquire(8)
	buf.Write([]byte("abcdefgh"))
	buf.Advance(4)
	buf.Compact()
	if string(buf.Bytes()) != "efgh" {
		t.Fatalf("unexpected contents after compact %q", buf.Bytes())
	}
	if buf.r != 0 {
		t.Fatalf("expected read cursor reset to 0, got %d", buf.r)
	}
}

func TestBufferRemoveSpanFront(t *testing.T) {
	var p BufferPool
	buf := p.Acquire(16)
	buf.Write([]byte("SIZE\r\nDATA"))
	buf.RemoveSpanFront(6)
	if string(buf.Bytes()) != "DATA" {
		t.Fatalf("unexpected contents after RemoveSpanFront %q", buf.Bytes())
	}
}

func TestBufferAliasTail(t *testing.T) {
	var p BufferPool
	buf := p.Acquire(64)
	buf.Write([]byte("body"))
	alias, ok := buf.AliasTail(8)
	if !ok {
		t.Fatalf("expected alias to succeed with spare capacity")
	}
	alias.Write([]byte("HEADERS\r\n"))
	if !alias.HeapBacked() {
		t.Fatalf("alias should report heap-backed")
	}
	p.Release(alias) // must be a no-op since it doesn't own its backing array
	if alias.bb == nil {
		t.Fatalf("releasing a non-owning buffer must not clear its backing array")
	}
	if string(buf.Bytes()) != "body" {
		t.Fatalf("aliasing must not disturb the content buffer's own view, got %q", buf.Bytes())
	}
}

func TestWrapBuffer(t *testing.T) {
	b := WrapBuffer([]byte("payload"))
	if b.Len() != len("payload") {
		t.Fatalf("unexpected length %d", b.Len())
	}
	if string(b.Bytes()) != "payload" {
		t.Fatalf("unexpected contents %q", b.Bytes())
	}
}
