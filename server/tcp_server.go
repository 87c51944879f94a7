package server

import (
	"log"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/suleymanbyzt/StormSocket"
	"github.com/suleymanbyzt/StormSocket/session"
	"github.com/suleymanbyzt/StormSocket/transport"
)

// TCPServer listens for raw TCP connections, applies the configured
// framer, and runs each accepted connection as a TCPSession (spec.md
// §4.10).
type TCPServer struct {
	cfg Config

	ln      net.Listener
	manager *session.Manager
	groups  *session.Group
	running atomic.Bool
	wg      sync.WaitGroup
}

// NewTCPServer constructs a TCPServer from cfg. Start begins accepting.
func NewTCPServer(cfg Config) *TCPServer {
	return &TCPServer{
		cfg:     cfg,
		manager: session.NewManager(),
		groups:  session.NewGroup(),
	}
}

// Sessions exposes the server's SessionManager, e.g. for Broadcast.
func (s *TCPServer) Sessions() *session.Manager { return s.manager }

// Groups exposes the server's SessionGroup registry.
func (s *TCPServer) Groups() *session.Group { return s.groups }

// Addr returns the listener's bound address. Useful when Endpoint used
// port 0 to request an ephemeral port.
func (s *TCPServer) Addr() net.Addr { return s.ln.Addr() }

// Start binds the listener and launches the accept loop in a new
// goroutine. Returns stormsocket.ErrServerRunning if already started.
func (s *TCPServer) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return stormsocket.ErrServerRunning
	}
	// "tcp" dual-stacks automatically when Endpoint is a wildcard IPv6
	// address (e.g. "[::]:9000"); DualMode documents the intent but Go's
	// listener picks the family from the address itself.
	ln, err := net.Listen("tcp", s.cfg.Endpoint)
	if err != nil {
		s.running.Store(false)
		return err
	}
	s.ln = ln
	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *TCPServer) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}
			if s.cfg.OnSocketError != nil && !transport.IsExpectedDisconnect(err) {
				s.cfg.OnSocketError(err)
			}
			return
		}
		go s.handleConn(conn)
	}
}

// handleConn carries a trace id through accept, TLS handshake, and session
// construction purely for structured log correlation: once the session
// exists, subsequent log lines key off its int64 id instead (spec.md §4.12).
func (s *TCPServer) handleConn(conn net.Conn) {
	traceID := uuid.NewString()

	if s.cfg.MaxConnections > 0 && s.manager.Count() >= s.cfg.MaxConnections {
		log.Printf("stormsocket: trace=%s reject: max connections reached", traceID)
		_ = conn.Close()
		return
	}

	transport.TuneSocket(conn, s.cfg.Transport)

	var tr transport.Transport
	if s.cfg.ServerTLS != nil {
		tr = transport.NewServerTLS(conn, *s.cfg.ServerTLS, s.cfg.Transport)
	} else {
		tr = transport.NewPlain(conn, s.cfg.Transport)
	}
	if err := tr.Handshake(); err != nil {
		log.Printf("stormsocket: trace=%s handshake failed: %v", traceID, err)
		_ = tr.Close()
		return
	}

	fr := s.cfg.Framer
	sess := session.NewTCPSession(tr, fr, s.cfg.SlowConsumerPolicy, s.onData, s.onError)

	if !s.manager.TryAdd(sess) {
		_ = sess.Close()
		return
	}
	log.Printf("stormsocket: trace=%s session=%d accepted", traceID, sess.ID())

	s.cfg.Pipeline.FireConnected(sess)
	if s.cfg.OnConnected != nil {
		s.cfg.OnConnected(sess)
	}

	sess.Run()

	_, _ = s.manager.TryRemove(sess.ID())
	s.groups.RemoveFromAll(sess)
	s.cfg.Pipeline.FireDisconnected(sess)
	if s.cfg.OnDisconnected != nil {
		s.cfg.OnDisconnected(sess)
	}
}

func (s *TCPServer) onData(sess *session.TCPSession, data []byte) {
	forwarded, keep := s.cfg.Pipeline.RunReceived(sess, data)
	if !keep {
		return
	}
	if s.cfg.OnDataReceived != nil {
		s.cfg.OnDataReceived(sess, forwarded)
	}
}

func (s *TCPServer) onError(sess *session.TCPSession, err error) {
	s.cfg.Pipeline.FireError(sess, err)
	if s.cfg.OnError != nil {
		s.cfg.OnError(sess, err)
	}
}

// Broadcast sends data to every session except excludeID, running each
// send through the pipeline's on_data_sending stage first (spec.md
// §4.9); a session whose send is dropped by the pipeline is skipped.
func (s *TCPServer) Broadcast(data []byte, excludeID int64) {
	s.manager.Range(func(sess session.Session) {
		if sess.ID() == excludeID {
			return
		}
		out, keep := s.cfg.Pipeline.RunSending(sess, data)
		if !keep {
			return
		}
		_ = sess.Send(out)
	})
}

// Stop cancels the accept loop, closes the listener, and closes every
// session (spec.md §4.10 "Shutdown").
func (s *TCPServer) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return stormsocket.ErrServerStopped
	}
	err := s.ln.Close()
	s.wg.Wait()
	s.manager.CloseAll()
	return err
}
