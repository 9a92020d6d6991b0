// Command driverd runs a conduit Server with a demo handler, the
// composition root equivalent of the teacher's examples/helloworld.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/yourusername/conduit"
)

func main() {
	addr := flag.String("addr", ":8080", "address to listen on")
	flag.Parse()

	cfg := conduit.NewConfig(handleRequest)
	cfg.Logger = conduit.NewStdLogger()

	srv := conduit.NewServer(cfg)
	log.Printf("conduit listening on %s", *addr)
	if err := srv.ListenAndServe("tcp4", *addr); err != nil {
		log.Fatal(err)
	}
}

func handleRequest(ctx *conduit.Context) {
	ctx.Response.StatusCode = conduit.StatusOK
	ctx.Response.Header.Set([]byte("Content-Type"), []byte("text/plain; charset=utf-8"))

	var body []byte
	if ctx.Body != nil {
		buf := make([]byte, 0, 512)
		tmp := make([]byte, 512)
		for {
			n, err := ctx.Body.Read(tmp)
			buf = append(buf, tmp[:n]...)
			if err != nil {
				break
			}
		}
		body = buf
	}

	msg := fmt.Sprintf("hello from conduit: %s %s (%d bytes of body)\n",
		ctx.Request.Method, ctx.Request.RequestURI, len(body))

	ctx.Response.SetContentLength(int64(len(msg)))
	if err := ctx.Write([]byte(msg)); err != nil {
		log.Printf("write error: %v", err)
	}
}
