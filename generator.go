package conduit

// GenResult is the generator's instruction to WriteDriver for what to
// do next (spec §6 Generator contract).
type GenResult int

const (
	GenNeedHeader GenResult = iota
	GenNeedChunk
	GenFlush
	GenShutdownOut
	GenDone
	GenContinue
)

type genPhase int

const (
	genPhaseHeader genPhase = iota
	genPhaseBody
	genPhaseChunkTerminator
	genPhaseFinal
	genPhaseDone
)

// Generator incrementally encodes one HTTP/1.x response, grounded on
// the teacher's Response.Write / writeBodyChunked / writeChunk
// (http.go), restructured into the explicit step() shape spec §9 calls
// for in place of nested write callbacks.
type Generator struct {
	phase             genPhase
	persistent        bool
	sendServerVersion bool
	bodyKind          bodyLengthKind
	skipBody          bool

	// pendingChunkCRLF is true once a chunk's data has been framed but
	// its closing CRLF has not yet been written; it is emitted at the
	// front of the next chunk's framing (or the terminal chunk's),
	// since that CRLF's bytes are identical wherever they are split
	// across writes (RFC 7230 §4.1 chunk = size CRLF data CRLF).
	pendingChunkCRLF bool
}

// NewGenerator returns a Generator ready to produce its first response.
func NewGenerator() *Generator {
	return &Generator{sendServerVersion: true}
}

// IsPersistent reports the current persistence flag.
func (g *Generator) IsPersistent() bool { return g.persistent }

// SetPersistent sets the persistence flag; HttpChannel and the 100-
// continue path (spec §4.5, §4.6) are the only callers that should ever
// clear it once headers have been decided.
func (g *Generator) SetPersistent(p bool) { g.persistent = p }

// SkipBody reports whether the current response must not put body
// bytes on the wire even though its framing headers describe one (the
// HEAD case, spec §4.4 FLUSH, recovered HEAD behavior in SPEC_FULL.md).
func (g *Generator) SkipBody() bool { return g.skipBody }

// SetSendServerVersion controls whether the Server header is emitted.
func (g *Generator) SetSendServerVersion(send bool) { g.sendServerVersion = send }

// Reset prepares the generator for the next response on a persistent
// connection (spec §4.2 item 3).
func (g *Generator) Reset() {
	g.phase = genPhaseHeader
	g.bodyKind = bodyLengthNone
	g.skipBody = false
	g.pendingChunkCRLF = false
}

// GenerateResponse advances the generator by one step. info and
// headerBuf are non-nil only for CommitWrite's first call (spec §4.4);
// ContentWrite always passes them as nil, and NEED_HEADER in that phase
// is the illegal-state case the caller must catch.
func (g *Generator) GenerateResponse(info *ResponseInfo, headerBuf, chunkBuf, contentBuf *Buffer, last bool) GenResult {
	switch g.phase {
	case genPhaseHeader:
		if info == nil {
			return GenDone // nothing to do; caller should not reach this on ContentWrite
		}
		if headerBuf == nil {
			return GenNeedHeader
		}
		g.writeHeader(info, headerBuf)
		g.bodyKind = info.bodyKind
		g.skipBody = info.SkipBody
		g.phase = genPhaseBody
		if g.bodyKind == bodyLengthChunked {
			if chunkBuf == nil {
				return GenNeedChunk
			}
		}
		return g.flushBody(chunkBuf, contentBuf, last)

	case genPhaseBody:
		if g.bodyKind == bodyLengthChunked && chunkBuf == nil {
			return GenNeedChunk
		}
		return g.flushBody(chunkBuf, contentBuf, last)

	case genPhaseChunkTerminator:
		if chunkBuf == nil {
			return GenNeedChunk
		}
		if g.pendingChunkCRLF {
			chunkBuf.Write(strCRLF)
			g.pendingChunkCRLF = false
		}
		chunkBuf.Write([]byte("0\r\n\r\n"))
		g.phase = genPhaseFinal
		return GenFlush

	case genPhaseFinal:
		g.phase = genPhaseDone
		if !g.persistent {
			return GenShutdownOut
		}
		return GenDone

	default: // genPhaseDone
		return GenDone
	}
}

// flushBody encodes (for chunked mode) or passes through (identity/
// close-delimited) one content step and decides the next phase.
func (g *Generator) flushBody(chunkBuf, contentBuf *Buffer, last bool) GenResult {
	n := 0
	if contentBuf != nil {
		n = contentBuf.Len()
	}

	if g.bodyKind == bodyLengthChunked {
		if n == 0 && !last {
			return GenContinue
		}
		if n == 0 && last {
			g.phase = genPhaseChunkTerminator
			return g.GenerateResponse(nil, nil, chunkBuf, nil, last)
		}
		if g.pendingChunkCRLF {
			chunkBuf.Write(strCRLF)
			g.pendingChunkCRLF = false
		}
		writeChunkSizeLine(chunkBuf, n)
		g.pendingChunkCRLF = true
		if last {
			g.phase = genPhaseChunkTerminator
		}
		return GenFlush
	}

	// Identity or close-delimited: content_buf (if any) goes straight
	// to the wire with no extra framing.
	if n == 0 && !last {
		return GenContinue
	}
	if last {
		g.phase = genPhaseFinal
	}
	return GenFlush
}

// writeChunkSizeLine appends "<hex-size>\r\n" to chunkBuf, the framing
// that precedes each chunk's data (spec §4.4 NEED_CHUNK, teacher's
// writeChunk in http.go).
func writeChunkSizeLine(chunkBuf *Buffer, size int) {
	var tmp [maxHexIntChars]byte
	i := len(tmp)
	n := size
	for {
		i--
		tmp[i] = lowerhex[n&0xf]
		n >>= 4
		if n == 0 {
			break
		}
	}
	chunkBuf.Write(tmp[i:])
	chunkBuf.Write(strCRLF)
}

// writeHeader encodes the status line and header block into headerBuf.
func (g *Generator) writeHeader(info *ResponseInfo, headerBuf *Buffer) {
	headerBuf.Write(strHTTP11)
	headerBuf.Write([]byte(" "))
	headerBuf.Write(AppendUint(nil, info.StatusCode))
	headerBuf.Write([]byte(" "))
	if info.Reason != nil {
		headerBuf.Write(info.Reason)
	} else {
		headerBuf.Write([]byte(StatusMessage(info.StatusCode)))
	}
	headerBuf.Write(strCRLF)

	info.Header.VisitAll(func(key, value []byte) {
		headerBuf.Write(key)
		headerBuf.Write(strColonSpace)
		headerBuf.Write(value)
		headerBuf.Write(strCRLF)
	})

	if !info.Header.Has(strDate) {
		headerBuf.Write(strDate)
		headerBuf.Write(strColonSpace)
		headerBuf.Write(getServerDate())
		headerBuf.Write(strCRLF)
	}
	if g.sendServerVersion && !info.Header.Has(strServer) {
		headerBuf.Write(strServer)
		headerBuf.Write(strColonSpace)
		headerBuf.Write(defaultServerName)
		headerBuf.Write(strCRLF)
	}
	switch info.bodyKind {
	case bodyLengthFixed:
		headerBuf.Write(strContentLength)
		headerBuf.Write(strColonSpace)
		headerBuf.Write(AppendUint(nil, int(info.ContentLength)))
		headerBuf.Write(strCRLF)
	case bodyLengthChunked:
		headerBuf.Write(strTransferEncoding)
		headerBuf.Write(strColonSpace)
		headerBuf.Write(strChunked)
		headerBuf.Write(strCRLF)
	}
	if !info.Header.Has(strConnection) && !g.persistent {
		headerBuf.Write(strConnection)
		headerBuf.Write(strColonSpace)
		headerBuf.Write(strClose)
		headerBuf.Write(strCRLF)
	}
	headerBuf.Write(strCRLF)
}
