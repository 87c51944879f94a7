package server

import (
	"errors"
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/suleymanbyzt/StormSocket"
	"github.com/suleymanbyzt/StormSocket/internal/wsproto"
	"github.com/suleymanbyzt/StormSocket/session"
	"github.com/suleymanbyzt/StormSocket/transport"
)

// WSServer listens for TCP connections, performs the RFC 6455 upgrade
// handshake, and runs each accepted connection as a WSSession (spec.md
// §4.5, §4.10).
type WSServer struct {
	cfg WSConfig

	ln      net.Listener
	manager *session.Manager
	groups  *session.Group
	running atomic.Bool
	wg      sync.WaitGroup
}

// NewWSServer constructs a WSServer from cfg.
func NewWSServer(cfg WSConfig) *WSServer {
	return &WSServer{
		cfg:     cfg,
		manager: session.NewManager(),
		groups:  session.NewGroup(),
	}
}

// Sessions exposes the server's SessionManager.
func (s *WSServer) Sessions() *session.Manager { return s.manager }

// Groups exposes the server's SessionGroup registry.
func (s *WSServer) Groups() *session.Group { return s.groups }

// Addr returns the listener's bound address. Useful when Endpoint used
// port 0 to request an ephemeral port.
func (s *WSServer) Addr() net.Addr { return s.ln.Addr() }

// Start binds the listener and launches the accept loop.
func (s *WSServer) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return stormsocket.ErrServerRunning
	}
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

func (s *WSServer) acceptLoop() {
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

// handleConn carries a trace id through accept, TLS handshake, and upgrade
// purely for structured log correlation: once the session exists,
// subsequent log lines key off its int64 id instead (spec.md §4.12).
func (s *WSServer) handleConn(conn net.Conn) {
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

	if _, err := s.upgrade(tr, conn, conn.RemoteAddr()); err != nil {
		log.Printf("stormsocket: trace=%s upgrade failed: %v", traceID, err)
		_ = tr.Close()
		return
	}

	sess := session.NewWSSession(tr, session.WSConfig{
		Role:           session.RoleServer,
		MaxFrameSize:   s.cfg.MaxFrameSize,
		AutoPong:       s.cfg.AutoPong,
		PingInterval:   s.cfg.PingInterval,
		MaxMissedPongs: s.cfg.MaxMissedPongs,
		Policy:         s.cfg.SlowConsumerPolicy,
	}, session.WSSessionHandlers{
		OnMessage: s.onMessage,
		OnError:   s.onError,
	})

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

// upgrade reads bytes from tr until a complete upgrade request is
// parsed or handshake_timeout elapses, runs the authorization hook, and
// writes the accept/reject response (spec.md §4.5, §4.10 step 3).
func (s *WSServer) upgrade(tr transport.Transport, conn net.Conn, remote net.Addr) (*wsproto.UpgradeContext, error) {
	timeout := s.cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	deadline := time.Now().Add(timeout)
	_ = conn.SetReadDeadline(deadline)
	defer conn.SetReadDeadline(time.Time{})

	var buf []byte
	chunk := make([]byte, 4096)
	for {
		n, err := tr.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			req, perr := wsproto.ParseUpgradeRequest(buf, remote, s.cfg.AllowedOrigins)
			if perr == nil {
				return s.finishUpgrade(tr, req)
			}
			if perr != wsproto.ErrIncompleteRequest {
				_, _ = tr.Write(rejectResponseFor(perr))
				_ = tr.Flush()
				return nil, perr
			}
		}
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return nil, stormsocket.ErrHandshakeTimeout
			}
			return nil, err
		}
	}
}

func (s *WSServer) finishUpgrade(tr transport.Transport, req *wsproto.UpgradeRequest) (*wsproto.UpgradeContext, error) {
	ctx := wsproto.NewUpgradeContext(req)
	if s.cfg.OnConnecting != nil {
		s.cfg.OnConnecting(ctx)
	}
	if !ctx.Handled() {
		_ = ctx.Accept()
	}
	if !ctx.Accepted() {
		_, _ = tr.Write(wsproto.BuildRejectResponse(ctx.RejectStatus(), ctx.RejectReason()))
		_ = tr.Flush()
		return nil, errUpgradeRejected
	}
	if _, err := tr.Write(wsproto.BuildAcceptResponse(req.Key)); err != nil {
		return nil, err
	}
	if err := tr.Flush(); err != nil {
		return nil, err
	}
	return ctx, nil
}

var errUpgradeRejected = errors.New("stormsocket: upgrade rejected by authorization hook")

func rejectResponseFor(err error) []byte {
	if err == wsproto.ErrForbiddenOrigin {
		return wsproto.BuildForbiddenOriginResponse()
	}
	return wsproto.BuildErrorResponse(err)
}

func (s *WSServer) onMessage(sess *session.WSSession, data []byte, isText bool) {
	forwarded, keep := s.cfg.Pipeline.RunReceived(sess, data)
	if !keep {
		return
	}
	if s.cfg.OnMessageReceived != nil {
		s.cfg.OnMessageReceived(sess, forwarded, isText)
	}
}

func (s *WSServer) onError(sess *session.WSSession, err error) {
	s.cfg.Pipeline.FireError(sess, err)
	if s.cfg.OnError != nil {
		s.cfg.OnError(sess, err)
	}
}

// BroadcastText sends a Text frame to every session except excludeID,
// running each send through the pipeline's on_data_sending stage first
// (spec.md §4.9); a session whose send is dropped by the pipeline is
// skipped.
func (s *WSServer) BroadcastText(data []byte, excludeID int64) {
	for _, sess := range s.snapshotWS() {
		if sess.ID() == excludeID {
			continue
		}
		out, keep := s.cfg.Pipeline.RunSending(sess, data)
		if !keep {
			continue
		}
		_ = sess.SendText(out)
	}
}

// BroadcastBinary sends a Binary frame to every session except
// excludeID, running each send through the pipeline's on_data_sending
// stage first (spec.md §4.9); a session whose send is dropped by the
// pipeline is skipped.
func (s *WSServer) BroadcastBinary(data []byte, excludeID int64) {
	for _, sess := range s.snapshotWS() {
		if sess.ID() == excludeID {
			continue
		}
		out, keep := s.cfg.Pipeline.RunSending(sess, data)
		if !keep {
			continue
		}
		_ = sess.SendBinary(out)
	}
}

func (s *WSServer) snapshotWS() []*session.WSSession {
	var out []*session.WSSession
	s.manager.Range(func(sess session.Session) {
		if ws, ok := sess.(*session.WSSession); ok {
			out = append(out, ws)
		}
	})
	return out
}

// Stop cancels the accept loop, closes the listener, optimistically
// sends a GoingAway Close frame to every WebSocket session, then closes
// all sessions (spec.md §4.10 "Shutdown").
func (s *WSServer) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return stormsocket.ErrServerStopped
	}
	err := s.ln.Close()
	s.wg.Wait()
	for _, sess := range s.snapshotWS() {
		_ = sess.CloseWithStatus(wsproto.StatusGoingAway)
	}
	s.manager.CloseAll()
	return err
}
