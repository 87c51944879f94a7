package session

import (
	"errors"
	"time"

	"github.com/suleymanbyzt/StormSocket"
	"github.com/suleymanbyzt/StormSocket/heartbeat"
	"github.com/suleymanbyzt/StormSocket/internal/wsproto"
	"github.com/suleymanbyzt/StormSocket/transport"
)

// Role distinguishes server-originated sessions (unmasked outbound
// frames) from client-originated ones (masked outbound frames, per
// RFC 6455 §5.3).
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

// WSSessionHandlers are the callbacks the orchestrator (server or
// client) wires into a WSSession's frame loop.
type WSSessionHandlers struct {
	OnMessage      func(s *WSSession, data []byte, isText bool)
	OnError        func(s *WSSession, err error)
	OnClosedByPeer func(s *WSSession, status uint16)
	OnBackpressure func(s *WSSession)
}

// WSSession is a WebSocket connection: a Transport producing/consuming
// RFC 6455 frames, an optional heartbeat, and the shared session
// bookkeeping in base.
type WSSession struct {
	base

	tr           transport.Transport
	role         Role
	maxFrameSize int64
	autoPong     bool
	hb           *heartbeat.Heartbeat
	handlers     WSSessionHandlers

	readBuf []byte
}

// WSConfig configures a single WSSession.
type WSConfig struct {
	Role           Role
	MaxFrameSize   int64
	AutoPong       bool
	PingInterval   time.Duration
	MaxMissedPongs int64
	Policy         stormsocket.Policy
}

// NewWSSession constructs a session over tr. Heartbeat is created only
// when cfg.PingInterval > 0 (spec.md §4.6); callers start it by calling
// Run, which also runs the frame loop.
func NewWSSession(tr transport.Transport, cfg WSConfig, handlers WSSessionHandlers) *WSSession {
	maxFrame := cfg.MaxFrameSize
	if maxFrame <= 0 {
		maxFrame = wsproto.DefaultMaxFrameSize
	}
	s := &WSSession{
		base:         newBase(tr.RemoteAddr(), cfg.Policy, func() { _ = tr.Close() }),
		tr:           tr,
		role:         cfg.Role,
		maxFrameSize: maxFrame,
		autoPong:     cfg.AutoPong,
		handlers:     handlers,
	}
	if cfg.PingInterval > 0 {
		s.hb = heartbeat.New(cfg.PingInterval, cfg.MaxMissedPongs, s.sendPing, func() {
			s.Abort()
		})
	}
	return s
}

func (s *WSSession) masked() bool { return s.role == RoleClient }

func (s *WSSession) sendPing() error {
	return s.writeFrame(wsproto.OpcodePing, nil)
}

func (s *WSSession) writeFrame(opcode wsproto.Opcode, payload []byte) error {
	return s.writeLocked(func() (int, error) {
		encoded, err := wsproto.EncodeFrame(opcode, payload, s.masked())
		if err != nil {
			return 0, err
		}
		if _, err := s.tr.Write(encoded); err != nil {
			return 0, err
		}
		if err := s.tr.Flush(); err != nil {
			s.setBackpressured(s.tr.IsBackpressured())
			return 0, err
		}
		s.setBackpressured(s.tr.IsBackpressured())
		if s.Policy() == stormsocket.PolicyDisconnect && s.IsBackpressured() {
			defer s.Abort()
		}
		return len(payload), nil
	})
}

// Run starts the heartbeat (if configured) and drives the inbound frame
// decode loop until EOF, a protocol error, or Close completes.
func (s *WSSession) Run() {
	s.setState(stormsocket.StateConnected)
	if s.hb != nil {
		s.hb.Start()
	}
	defer func() {
		if s.hb != nil {
			s.hb.Stop()
		}
	}()

	chunk := make([]byte, 32*1024)
	for {
		n, err := s.tr.Read(chunk)
		if n > 0 {
			s.readBuf = append(s.readBuf, chunk[:n]...)
			if stop := s.drainFrames(); stop {
				return
			}
		}
		if err != nil {
			if !transport.IsExpectedDisconnect(err) && s.handlers.OnError != nil {
				s.handlers.OnError(s, err)
			}
			return
		}
	}
}

// drainFrames decodes and dispatches every complete frame currently
// buffered. It returns true if the loop should stop (protocol error or
// a Close frame was processed).
func (s *WSSession) drainFrames() bool {
	for {
		frame, consumed, err := wsproto.DecodeFrame(s.readBuf, s.maxFrameSize)
		if err != nil {
			var protoErr *wsproto.ProtocolError
			status := wsproto.StatusProtocolError
			if errors.As(err, &protoErr) {
				status = protoErr.Status
			}
			_ = s.writeFrame(wsproto.OpcodeClose, closeStatusPayload(status))
			if s.handlers.OnError != nil {
				s.handlers.OnError(s, err)
			}
			return true
		}
		if frame == nil {
			return false
		}
		s.readBuf = s.readBuf[consumed:]
		s.addBytesReceived(len(frame.Payload))
		if s.dispatch(frame) {
			return true
		}
	}
}

func (s *WSSession) dispatch(frame *wsproto.Frame) bool {
	switch frame.Opcode {
	case wsproto.OpcodeText, wsproto.OpcodeBinary:
		if s.handlers.OnMessage != nil {
			s.handlers.OnMessage(s, frame.Payload, frame.Opcode == wsproto.OpcodeText)
		}
		return false
	case wsproto.OpcodePing:
		if s.autoPong {
			_ = s.writeFrame(wsproto.OpcodePong, frame.Payload)
		}
		return false
	case wsproto.OpcodePong:
		if s.hb != nil {
			s.hb.OnPongReceived()
		}
		return false
	case wsproto.OpcodeClose:
		status := s.echoCloseStatus(wsproto.ParseCloseStatus(frame.Payload))
		if s.handlers.OnClosedByPeer != nil {
			s.handlers.OnClosedByPeer(s, status)
		}
		_ = s.writeFrame(wsproto.OpcodeClose, closeStatusPayload(status))
		// Tear down via the no-frame path: the echo above already
		// satisfies RFC 6455 §5.5.1's "at most one Close frame per
		// peer", so the public Close (which would emit a second one)
		// must not run.
		s.Abort()
		return true
	default:
		return false
	}
}

// echoCloseStatus coerces the peer's reported close status before it is
// echoed back: 1005 (no status given) and 1006 (abnormal closure, never
// legally sent on the wire) are normalized to 1000 (spec.md open
// question: Close echo normalization).
func (s *WSSession) echoCloseStatus(peerStatus uint16) uint16 {
	return wsproto.CoerceCloseStatus(peerStatus)
}

func closeStatusPayload(status uint16) []byte {
	return []byte{byte(status >> 8), byte(status)}
}

// SendText transmits data as a single Text frame, applying the
// session's slow-consumer policy.
func (s *WSSession) SendText(data []byte) error {
	return s.sendFrame(wsproto.OpcodeText, data)
}

// SendBinary transmits data as a single Binary frame, applying the
// session's slow-consumer policy.
func (s *WSSession) SendBinary(data []byte) error {
	return s.sendFrame(wsproto.OpcodeBinary, data)
}

// Send implements the Session interface by sending data as Binary.
func (s *WSSession) Send(data []byte) error {
	return s.SendBinary(data)
}

func (s *WSSession) sendFrame(opcode wsproto.Opcode, data []byte) error {
	if s.closeGuard.Load() {
		return stormsocket.ErrNotConnected
	}
	switch s.Policy() {
	case stormsocket.PolicyDrop:
		if s.IsBackpressured() {
			return nil
		}
	case stormsocket.PolicyDisconnect:
		if s.IsBackpressured() {
			s.Abort()
			return nil
		}
	}
	return s.writeFrame(opcode, data)
}

// Close performs the graceful WebSocket close handshake: emit a Close
// frame with the normal-closure status, flush, then close the
// transport. Idempotent via close_guard.
func (s *WSSession) Close() error {
	return s.closeWithStatus(wsproto.StatusNormalClosure)
}

// CloseWithStatus is Close with a caller-chosen status, used by the
// server on shutdown to send GoingAway (spec.md §4.10).
func (s *WSSession) CloseWithStatus(status uint16) error {
	return s.closeWithStatus(status)
}

func (s *WSSession) closeWithStatus(status uint16) error {
	if !s.tryClose() {
		return nil
	}
	s.setState(stormsocket.StateClosing)
	_ = s.writeFrame(wsproto.OpcodeClose, closeStatusPayload(status))
	err := s.tr.Close()
	s.setState(stormsocket.StateClosed)
	return err
}
