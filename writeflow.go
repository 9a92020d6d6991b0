package conduit

import (
	"fmt"
	"io"

	"github.com/valyala/bytebufferpool"
)

// WriteDriver drives one response's Generator through CommitWrite (the
// first write, which must produce headers) and any further ContentWrite
// calls a streaming handler makes, per spec §4.4.
//
// The endpoint this module ships (tcpEndPoint, endpoint.go) completes
// writes synchronously — net.Conn.Write blocks until the OS accepts the
// bytes — so Send never actually needs to suspend on a write
// completion callback the way the source's asynchronous endpoint does;
// the loop below simply keeps calling the generator until it reports
// DONE or an error. The state-machine shape (spec §9's "iterating write
// flow") is kept anyway because it is what lets a future asynchronous
// EndPoint plug in without restructuring this type: a callback-driven
// endpoint would return Pending from flush() and WriteDriver would
// resume at the same switch the next time it's invoked.
type WriteDriver struct {
	conn *ConnectionDriver

	headerBuf  *Buffer
	headerSent bool
}

func newWriteDriver(conn *ConnectionDriver) *WriteDriver {
	return &WriteDriver{conn: conn}
}

// Send is the blocking form of CommitWrite/ContentWrite (spec §4.4
// "blocking variant of send"): it runs the generator to completion for
// this call's content and returns once the bytes are written or an
// error occurs. Pass info on the first call of a response (CommitWrite)
// and nil on any subsequent call for the same response (ContentWrite).
func (wd *WriteDriver) Send(info *ResponseInfo, content []byte, last bool) error {
	var contentBuf *Buffer
	if len(content) > 0 {
		contentBuf = WrapBuffer(content)
	}

	for {
		res := wd.conn.gen.GenerateResponse(info, wd.headerBuf, wd.conn.chunkBuf, contentBuf, last)
		switch res {
		case GenNeedHeader:
			if info == nil {
				return errIllegalState
			}
			wd.acquireHeaderBuf(contentBuf, last)

		case GenNeedChunk:
			if wd.conn.chunkBuf == nil {
				wd.conn.chunkBuf = wd.conn.pool.Acquire(wd.conn.cfg.chunkBufferSize())
			}

		case GenFlush:
			if err := wd.flush(contentBuf); err != nil {
				wd.releaseHeaderBuf()
				return translateWriteError(err)
			}

		case GenShutdownOut:
			wd.conn.ep.ShutdownOutput()

		case GenDone:
			wd.releaseHeaderBuf()
			return nil

		case GenContinue:
			// generator made internal progress; loop immediately, unless
			// this non-final call's content has all been flushed and the
			// generator is waiting for the next Send.
			if !last && (contentBuf == nil || contentBuf.IsEmpty()) {
				return nil
			}
		}
	}
}

func (wd *WriteDriver) flush(contentBuf *Buffer) error {
	var bufs [][]byte
	if !wd.headerSent && wd.headerBuf != nil {
		bufs = append(bufs, wd.headerBuf.Bytes())
	}
	wd.headerSent = true

	skip := wd.conn.req.IsHead() || wd.conn.gen.SkipBody()
	if !skip {
		if wd.conn.chunkBuf != nil && wd.conn.chunkBuf.Len() > 0 {
			bufs = append(bufs, wd.conn.chunkBuf.Bytes())
		}
		if contentBuf != nil && contentBuf.Len() > 0 {
			bufs = append(bufs, contentBuf.Bytes())
		}
	}

	_, err := wd.conn.ep.Write(bufs...)

	if wd.conn.chunkBuf != nil {
		wd.conn.chunkBuf.Reset()
	}
	if contentBuf != nil {
		contentBuf.Advance(contentBuf.Len())
	}
	return err
}

// acquireHeaderBuf implements the NEED_HEADER branch of spec §4.4: when
// this is the final write and the content buffer has enough heap-backed
// trailing spare capacity, the header is carved from its tail instead
// of acquiring a separate pooled buffer.
func (wd *WriteDriver) acquireHeaderBuf(contentBuf *Buffer, last bool) {
	need := wd.conn.cfg.ResponseHeaderBufferSize()
	if last && contentBuf != nil && contentBuf.HeapBacked() {
		if hb, ok := contentBuf.AliasTail(need); ok {
			wd.headerBuf = hb
			return
		}
	}
	wd.headerBuf = wd.conn.pool.Acquire(need)
}

func (wd *WriteDriver) releaseHeaderBuf() {
	if wd.headerBuf != nil {
		wd.conn.pool.Release(wd.headerBuf)
	}
	wd.headerBuf = nil
	wd.headerSent = false
}

// reset clears per-response WriteDriver state, called alongside
// Generator.Reset (spec §4.2 item 3).
func (wd *WriteDriver) reset() {
	wd.releaseHeaderBuf()
}

// translateWriteError maps a write failure to the EOF-equivalent I/O
// error the blocking send caller expects (spec §4.4, §7
// write-failed/closed-channel): the result matches both
// errClosedConnection and io.EOF under errors.Is and keeps the original
// error's text.
func translateWriteError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w: %v", errClosedConnection, io.EOF, err)
}

// WrapBuffer views a plain byte slice (as supplied by a Handler calling
// Context.Write) as a Buffer, without involving the pool: it is never
// released, and Generator/WriteDriver only ever read from it.
func WrapBuffer(b []byte) *Buffer {
	return &Buffer{bb: &bytebufferpool.ByteBuffer{B: b}, w: len(b), ownsBacking: false, heapBacked: true}
}
