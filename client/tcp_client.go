package client

import (
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/suleymanbyzt/StormSocket"
	"github.com/suleymanbyzt/StormSocket/session"
	"github.com/suleymanbyzt/StormSocket/transport"
)

// TCPClient connects to a raw TCP endpoint and drives a TCPSession over
// the configured framer (spec.md §4.11).
type TCPClient struct {
	cfg Config

	mu      sync.Mutex
	sess    *session.TCPSession
	closing atomic.Bool
	stopCh  chan struct{}
	attempt int
}

// NewTCPClient constructs a TCPClient from cfg. Call Connect to dial.
func NewTCPClient(cfg Config) *TCPClient {
	return &TCPClient{cfg: cfg, stopCh: make(chan struct{})}
}

// Connect dials the endpoint (spec.md §4.11 "TCP connect"). With
// Reconnect disabled this blocks for a single attempt. With it enabled,
// Connect blocks until the first successful connect or until
// MaxAttempts retries are exhausted (spec.md §4.11 "Auto-reconnect");
// drops that happen afterward are retried in the background.
func (c *TCPClient) Connect() error {
	if !c.cfg.Reconnect.Enabled {
		sess, err := c.connectOnce()
		if err != nil {
			return err
		}
		go c.runSession(sess)
		return nil
	}

	firstResult := make(chan error, 1)
	go c.reconnectLoop(firstResult)
	return <-firstResult
}

func (c *TCPClient) reconnectLoop(firstResult chan error) {
	resolved := false
	complete := func(err error) {
		if !resolved {
			resolved = true
			firstResult <- err
		}
	}
	for {
		sess, err := c.connectOnce()
		if err == nil {
			complete(nil)
			c.attempt = 0
			c.runSession(sess)
		}

		select {
		case <-c.stopCh:
			return
		default:
		}

		c.attempt++
		if c.cfg.Reconnect.MaxAttempts > 0 && c.attempt > c.cfg.Reconnect.MaxAttempts {
			complete(stormsocket.ErrReconnectExceeded)
			if c.cfg.OnError != nil {
				c.cfg.OnError(c, stormsocket.ErrReconnectExceeded)
			}
			return
		}
		if c.cfg.OnReconnecting != nil {
			c.cfg.OnReconnecting(c.attempt, c.cfg.Reconnect.Delay)
		}
		select {
		case <-c.stopCh:
			return
		case <-time.After(c.cfg.Reconnect.Delay):
		}
	}
}

// connectOnce dials, optionally TLS-handshakes within ConnectTimeout, and
// builds the session, without running its read loop. A trace id carries
// the attempt through dial and handshake purely for log correlation; once
// the session exists, log lines key off its int64 id instead (spec.md
// §4.12).
func (c *TCPClient) connectOnce() (*session.TCPSession, error) {
	traceID := uuid.NewString()

	timeout := c.cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	conn, err := net.DialTimeout("tcp", c.cfg.Endpoint, timeout)
	if err != nil {
		log.Printf("stormsocket: trace=%s dial failed: %v", traceID, err)
		return nil, err
	}
	transport.TuneSocket(conn, c.cfg.Transport)

	var tr transport.Transport
	if c.cfg.ClientTLS != nil {
		tlsCfg := *c.cfg.ClientTLS
		if tlsCfg.ServerName == "" {
			if host, _, splitErr := net.SplitHostPort(c.cfg.Endpoint); splitErr == nil {
				tlsCfg.ServerName = host
			}
		}
		tr = transport.NewClientTLS(conn, tlsCfg, c.cfg.Transport)
	} else {
		tr = transport.NewPlain(conn, c.cfg.Transport)
	}
	_ = conn.SetDeadline(time.Now().Add(timeout))
	if err := tr.Handshake(); err != nil {
		log.Printf("stormsocket: trace=%s handshake failed: %v", traceID, err)
		_ = tr.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	sess := session.NewTCPSession(tr, c.cfg.Framer, stormsocket.PolicyWait, c.onData, c.onError)
	log.Printf("stormsocket: trace=%s session=%d connected", traceID, sess.ID())

	c.mu.Lock()
	c.sess = sess
	c.mu.Unlock()
	return sess, nil
}

// runSession fires the connected/disconnected lifecycle around the
// session's blocking read loop.
func (c *TCPClient) runSession(sess *session.TCPSession) {
	if c.cfg.OnConnected != nil {
		c.cfg.OnConnected(c)
	}
	sess.Run()
	if c.cfg.OnDisconnected != nil {
		c.cfg.OnDisconnected(c)
	}
}

func (c *TCPClient) onData(_ *session.TCPSession, data []byte) {
	if c.cfg.OnDataReceived != nil {
		c.cfg.OnDataReceived(c, data)
	}
}

func (c *TCPClient) onError(_ *session.TCPSession, err error) {
	if c.cfg.OnError != nil {
		c.cfg.OnError(c, err)
	}
}

// Send transmits data over the current session. Fails with
// ErrNotConnected if no session is established.
func (c *TCPClient) Send(data []byte) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return stormsocket.ErrNotConnected
	}
	return sess.Send(data)
}

// Close stops any in-progress reconnect loop and closes the current
// session.
func (c *TCPClient) Close() error {
	if c.closing.CompareAndSwap(false, true) {
		close(c.stopCh)
	}
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return nil
	}
	return sess.Close()
}
