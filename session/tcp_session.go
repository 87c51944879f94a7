package session

import (
	"github.com/suleymanbyzt/StormSocket"
	"github.com/suleymanbyzt/StormSocket/framer"
	"github.com/suleymanbyzt/StormSocket/pipe"
	"github.com/suleymanbyzt/StormSocket/transport"
)

// TCPSession wraps a raw byte-stream connection: a Transport, a pluggable
// Framer, and the PipeConnection that drives the inbound loop.
type TCPSession struct {
	base

	tr   transport.Transport
	conn *pipe.Connection
}

// NewTCPSession constructs a session over tr using fr for framing.
// onData is invoked for every complete inbound message; onError is
// invoked at most once, when the inbound loop exits abnormally.
func NewTCPSession(tr transport.Transport, fr framer.Framer, policy stormsocket.Policy, onData func(*TCPSession, []byte), onError func(*TCPSession, error)) *TCPSession {
	s := &TCPSession{
		base: newBase(tr.RemoteAddr(), policy, func() { _ = tr.Close() }),
		tr:   tr,
	}
	s.conn = pipe.New(tr, fr, func(msg []byte) {
		s.addBytesReceived(len(msg))
		if onData != nil {
			onData(s, msg)
		}
	}, func(err error) {
		if onError != nil {
			onError(s, err)
		}
	})
	s.conn.OnBackpressureDetected = func() {
		s.setBackpressured(true)
		if s.Policy() == stormsocket.PolicyDisconnect {
			s.Abort()
		}
	}
	return s
}

// Run drives the inbound read loop until EOF or error. Callers run it in
// its own goroutine; it returns when the loop exits.
func (s *TCPSession) Run() {
	s.setState(stormsocket.StateConnected)
	s.conn.Run()
}

// Send transmits data, applying the session's slow-consumer policy
// (spec.md §4.7).
func (s *TCPSession) Send(data []byte) error {
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
	err := s.writeLocked(func() (int, error) {
		before := len(data)
		sendErr := s.conn.Send(data)
		s.setBackpressured(s.conn.IsBackpressured())
		if sendErr != nil {
			return 0, sendErr
		}
		return before, nil
	})
	return err
}

// Close performs a graceful shutdown: it is idempotent via close_guard
// and safe to call concurrently with the read loop.
func (s *TCPSession) Close() error {
	if !s.tryClose() {
		return nil
	}
	s.setState(stormsocket.StateClosing)
	err := s.tr.Close()
	s.setState(stormsocket.StateClosed)
	return err
}
