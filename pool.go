package conduit

import "github.com/valyala/bytebufferpool"

// BufferPool acquires and releases pooled byte buffers. One BufferPool
// instance is shared across every ConnectionDriver accepted by a server;
// it is safe for concurrent use, a connection only ever mutates the
// Buffers it has itself acquired (spec §5 "shared-resource policy").
type BufferPool struct {
	pool bytebufferpool.Pool
}

// Acquire returns a Buffer with at least capacity bytes of spare room,
// empty (read and write cursors both zero).
func (p *BufferPool) Acquire(capacity int) *Buffer {
	bb := p.pool.Get()
	b := &Buffer{bb: bb, ownsBacking: true, heapBacked: true}
	b.ensureSpare(capacity)
	return b
}

// Release returns buf to the pool. Buffers that alias the tail of another
// Buffer (see Buffer.AliasTail) do not own their backing storage and are
// silently ignored — ownership belongs to whoever supplied the content
// buffer (spec §3 invariant, §9 "owns_backing" tagged view).
func (p *BufferPool) Release(buf *Buffer) {
	if buf == nil || !buf.ownsBacking {
		return
	}
	buf.bb.Reset()
	p.pool.Put(buf.bb)
	buf.bb = nil
}

// Buffer is a pooled, heap-backed byte buffer with independent read and
// write cursors. RequestBuffer, ChunkBuffer, and HeaderBuffer (spec §3)
// are all instances of Buffer; only their acquisition/release timing and
// sizing policy differ.
type Buffer struct {
	bb          *bytebufferpool.ByteBuffer
	r, w        int
	ownsBacking bool
	heapBacked  bool
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int { return b.w - b.r }

// Bytes returns the unread portion of the buffer.
func (b *Buffer) Bytes() []byte { return b.bb.B[b.r:b.w] }

// Advance marks n bytes as consumed.
func (b *Buffer) Advance(n int) { b.r += n }

// IsEmpty reports whether there are no unread bytes.
func (b *Buffer) IsEmpty() bool { return b.r >= b.w }

// HeapBacked reports whether the buffer's storage is ordinary heap memory
// (true for every Buffer this pool produces; kept as a method rather than
// an always-true constant so alternative buffer sources — e.g. a direct
// a.k.a. off-heap pool — can plug into the same aliasing decision).
func (b *Buffer) HeapBacked() bool { return b.heapBacked }

// TrailingSpare returns the number of unused bytes after the write
// cursor, i.e. how much a caller could write without reallocating.
func (b *Buffer) TrailingSpare() int { return cap(b.bb.B) - b.w }

// ensureSpare grows the backing array, if necessary, so that at least n
// bytes are available after the write cursor. The new capacity is
// rounded up (roundUpForSliceCap, round2_32.go/round2_64.go) so a
// sequence of small writes doesn't reallocate on every single one.
func (b *Buffer) ensureSpare(n int) {
	if b.TrailingSpare() >= n {
		return
	}
	newCap := roundUpForSliceCap(b.w + n)
	grown := make([]byte, b.w, newCap)
	copy(grown, b.bb.B[:b.w])
	b.bb.B = grown
}

// Spare returns the writable region after the write cursor, guaranteed
// to be at least n bytes long.
func (b *Buffer) Spare(n int) []byte {
	b.ensureSpare(n)
	return b.bb.B[b.w:cap(b.bb.B)]
}

// CommitFill advances the write cursor by n after a caller has written
// directly into the slice returned by Spare.
func (b *Buffer) CommitFill(n int) {
	b.w += n
	b.bb.B = b.bb.B[:b.w]
}

// Write appends p, growing the buffer as needed, and returns len(p), nil
// to satisfy io.Writer (used by the generator when encoding headers and
// chunk framing directly into a Buffer).
func (b *Buffer) Write(p []byte) (int, error) {
	copy(b.Spare(len(p)), p)
	b.CommitFill(len(p))
	return len(p), nil
}

// Reset empties the buffer, keeping its backing array for reuse.
func (b *Buffer) Reset() {
	b.r, b.w = 0, 0
	b.bb.B = b.bb.B[:0]
}

// Compact discards already-read bytes by sliding the unread tail to the
// front, making room for further fills without growing the backing
// array. Called before a fill when the read cursor has drifted forward.
func (b *Buffer) Compact() {
	if b.r == 0 {
		return
	}
	n := copy(b.bb.B, b.bb.B[b.r:b.w])
	b.r = 0
	b.w = n
	b.bb.B = b.bb.B[:n]
}

// RemoveSpanFront deletes the first n unread bytes without marking them
// consumed — used by the chunked-transfer de-framer to strip chunk-size
// lines and inter-chunk CRLFs in place so the remaining content bytes
// stay contiguous from the read cursor onward (parser.go).
func (b *Buffer) RemoveSpanFront(n int) {
	if n == 0 {
		return
	}
	copy(b.bb.B[b.r:], b.bb.B[b.r+n:b.w])
	b.w -= n
	b.bb.B = b.bb.B[:b.w]
}

// AliasTail carves a zero-length Buffer window starting at content's
// write cursor, sharing content's backing array, provided content is
// heap-backed and has at least need bytes of trailing spare capacity.
// The returned Buffer does not own its backing storage: releasing it is
// a no-op (spec §4.4 NEED_HEADER, §9 owns_backing).
func (content *Buffer) AliasTail(need int) (*Buffer, bool) {
	if !content.heapBacked || content.TrailingSpare() < need {
		return nil, false
	}
	return &Buffer{
		bb:          content.bb,
		r:           content.w,
		w:           content.w,
		ownsBacking: false,
		heapBacked:  true,
	}, true
}
