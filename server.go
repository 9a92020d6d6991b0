package conduit

import (
	"net"
	"time"

	"github.com/valyala/tcplisten"
)

// Server accepts connections and drives one ConnectionDriver per
// accepted net.Conn, generalizing the teacher's Server.Serve/ServeConn
// (server.go) to this module's Parser/Generator/Channel pipeline.
type Server struct {
	Config *Config

	pool      *BufferPool
	executor  *Executor
	ipCounter *perIPConnCounter
	idleConns idleConnList
}

// NewServer returns a Server ready to Serve once cfg.Handler is set.
func NewServer(cfg *Config) *Server {
	if cfg == nil {
		cfg = NewConfig(nil)
	}
	s := &Server{Config: cfg, pool: &BufferPool{}}
	if cfg.Executor != nil {
		s.executor = cfg.Executor
	} else {
		s.executor = NewExecutor(cfg.concurrency())
	}
	s.executor.Start()
	if cfg.MaxConnsPerIP > 0 {
		s.ipCounter = &perIPConnCounter{}
	}
	startServerDateUpdater()
	return s
}

// Close stops accepting new work from this Server's background helpers.
// It does not close already-accepted connections; call CloseIdleConnections
// first if a graceful drain is wanted.
func (s *Server) Close() error {
	stopServerDateUpdater()
	return nil
}

// ListenAndServe opens a tcplisten.Config listener on addr — enabling
// SO_REUSEPORT so a multi-process deployment can share the port, the
// scenario the teacher's prefork package exists for — and serves it
// until Serve returns an error.
func (s *Server) ListenAndServe(network, addr string) error {
	lnCfg := tcplisten.Config{ReusePort: true}
	ln, err := lnCfg.NewListener(network, addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections from ln until it returns an error, running
// each one's ConnectionDriver on s's Executor.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		if s.ipCounter != nil {
			ip := getUint32IP(conn)
			if s.ipCounter.register(ip) > s.Config.MaxConnsPerIP {
				s.ipCounter.unregister(ip)
				conn.Close()
				continue
			}
			conn = acquirePerIPConn(conn, ip, s.ipCounter)
		}

		driver := NewConnectionDriver(NewTCPEndPoint(conn), s.Config, s.pool)
		driver.idleList = &s.idleConns
		trace := s.Config.Trace
		s.executor.Run(func() {
			if trace != nil && trace.GotConn != nil {
				trace.GotConn(conn)
			}
			upgraded := driver.Serve()
			if !upgraded && trace != nil && trace.ClosedConn != nil {
				trace.ClosedConn(conn)
			}
		})
	}
}

// CloseIdleConnections closes every connection that has been waiting
// for its next pipelined request for at least maxIdle, the ambient
// graceful-shutdown helper the teacher's Server exposes through its own
// idle-connection tracking.
func (s *Server) CloseIdleConnections(maxIdle time.Duration) {
	critical := CoarseTimeNow().Add(-maxIdle).UnixNano()
	var stale []net.Conn
	s.idleConns.forEach(func(item *idleConnListItem) {
		if item.connTime.Load() < critical {
			stale = append(stale, item.c)
		}
	})
	for _, c := range stale {
		c.Close()
	}
}
