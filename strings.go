package conduit

var (
	strCRLF         = []byte("\r\n")
	strCRLFCRLF     = []byte("\r\n\r\n")
	strColon        = []byte(":")
	strColonSpace   = []byte(": ")
	strHTTP09       = []byte("HTTP/0.9")
	strHTTP10       = []byte("HTTP/1.0")
	strHTTP11       = []byte("HTTP/1.1")

	strGet     = []byte("GET")
	strHead    = []byte("HEAD")
	strPost    = []byte("POST")
	strConnect = []byte("CONNECT")

	strConnection       = []byte("Connection")
	strContentLength    = []byte("Content-Length")
	strContentType      = []byte("Content-Type")
	strDate             = []byte("Date")
	strHost             = []byte("Host")
	strServer           = []byte("Server")
	strTransferEncoding = []byte("Transfer-Encoding")
	strUpgrade          = []byte("Upgrade")
	strExpect           = []byte("Expect")
	strTrailer          = []byte("Trailer")

	strClose       = []byte("close")
	strKeepAlive   = []byte("keep-alive")
	strChunked     = []byte("chunked")
	str100Continue = []byte("100-continue")
)

var defaultServerName = []byte("conduit")
