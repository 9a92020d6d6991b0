package conduit

import (
	"net"
	"testing"
)

func TestPerIPConnCounter(t *testing.T) {
	t.Parallel()

	var cc perIPConnCounter

	for i := 1; i < 100; i++ {
		if n := cc.register(123); n != i {
			t.Fatalf("unexpected counter value=%d, expected %d", n, i)
		}
	}

	n := cc.register(456)
	if n != 1 {
		t.Fatalf("unexpected counter value=%d, expected 1", n)
	}

	for i := 1; i < 100; i++ {
		cc.unregister(123)
	}
	cc.unregister(456)

	n = cc.register(123)
	if n != 1 {
		t.Fatalf("unexpected counter value=%d, expected 1", n)
	}
	cc.unregister(123)
}

func TestPerIPConnCounterUnregisterWithoutRegisterPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected a panic, but none occurred")
		}
	}()

	var cc perIPConnCounter
	cc.unregister(123)
}

func TestIP2Uint32InvalidLength(t *testing.T) {
	t.Parallel()

	if got := ip2uint32(net.IPv6loopback); got != 0 {
		t.Fatalf("expected 0 for a non-IPv4 address, got %d", got)
	}
}

func TestGetUint32IPNonTCPAddr(t *testing.T) {
	t.Parallel()

	if got := getUint32IP(&fakeAddrConn{}); got != 0 {
		t.Fatalf("expected 0 for a RemoteAddr that isn't *net.TCPAddr, got %d", got)
	}
}

type fakeAddrConn struct{ net.Conn }

func (fakeAddrConn) RemoteAddr() net.Addr { return fakeAddr{} }

type fakeAddr struct{}

func (fakeAddr) Network() string { return "fake" }
func (fakeAddr) String() string  { return "fake" }
