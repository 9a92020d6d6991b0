package conduit

import "testing"

func TestHeadersSetGetDel(t *testing.T) {
	var h Headers
	h.Set([]byte("Content-Type"), []byte("text/plain"))
	if string(h.Get([]byte("content-type"))) != "text/plain" {
		t.Fatalf("Get should be case-insensitive, got %q", h.Get([]byte("content-type")))
	}
	h.Set([]byte("Content-Type"), []byte("application/json"))
	if h.Len() != 1 {
		t.Fatalf("Set should replace, got %d fields", h.Len())
	}
	h.Del([]byte("CONTENT-TYPE"))
	if h.Has([]byte("Content-Type")) {
		t.Fatalf("Del should remove the field regardless of case")
	}
}

func TestHeadersAddPreservesOrderAndMultivalue(t *testing.T) {
	var h Headers
	h.Add([]byte("Set-Cookie"), []byte("a=1"))
	h.Add([]byte("Set-Cookie"), []byte("b=2"))
	var got []string
	h.VisitAll(func(k, v []byte) { got = append(got, string(v)) })
	if len(got) != 2 || got[0] != "a=1" || got[1] != "b=2" {
		t.Fatalf("unexpected wire order %v", got)
	}
}

func TestHeadersHasToken(t *testing.T) {
	var h Headers
	h.Set([]byte("Connection"), []byte("keep-alive, Upgrade"))
	if !h.HasToken([]byte("Connection"), []byte("upgrade")) {
		t.Fatalf("expected case-insensitive token match")
	}
	if h.HasToken([]byte("Connection"), []byte("close")) {
		t.Fatalf("unexpected token match")
	}
}

func TestHeadersReset(t *testing.T) {
	var h Headers
	h.Add([]byte("X-Foo"), []byte("bar"))
	h.Reset()
	if h.Len() != 0 {
		t.Fatalf("expected empty headers after Reset, got %d", h.Len())
	}
}
