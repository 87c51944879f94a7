package client

import (
	"errors"
	"log"
	"net"
	"net/url"
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

// WSClient connects to a WebSocket endpoint, performs the RFC 6455
// upgrade, and drives a WSSession (spec.md §4.11).
type WSClient struct {
	cfg WSConfig

	mu      sync.Mutex
	sess    *session.WSSession
	closing atomic.Bool
	stopCh  chan struct{}
	attempt int
}

// NewWSClient constructs a WSClient from cfg. Call Connect to dial.
func NewWSClient(cfg WSConfig) *WSClient {
	return &WSClient{cfg: cfg, stopCh: make(chan struct{})}
}

// Connect dials and upgrades (spec.md §4.11 "WS connect"). With
// Reconnect disabled this blocks for a single attempt. With it enabled,
// Connect blocks until the first successful connect or until
// MaxAttempts retries are exhausted; drops that happen afterward are
// retried in the background.
func (c *WSClient) Connect() error {
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

func (c *WSClient) reconnectLoop(firstResult chan error) {
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

// connectOnce dials, upgrades, and builds the session, without running
// its frame loop. A trace id carries the attempt through dial and upgrade
// purely for log correlation; once the session exists, log lines key off
// its int64 id instead (spec.md §4.12).
func (c *WSClient) connectOnce() (*session.WSSession, error) {
	traceID := uuid.NewString()

	u, err := url.Parse(c.cfg.URI)
	if err != nil {
		return nil, err
	}
	timeout := c.cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	deadline := time.Now().Add(timeout)

	host := u.Hostname()
	port := u.Port()
	useTLS := u.Scheme == "wss" || c.cfg.ClientTLS != nil
	if port == "" {
		if useTLS {
			port = "443"
		} else {
			port = "80"
		}
	}

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, port), timeout)
	if err != nil {
		log.Printf("stormsocket: trace=%s dial failed: %v", traceID, err)
		return nil, err
	}
	transport.TuneSocket(conn, c.cfg.Transport)

	var tr transport.Transport
	if useTLS {
		tlsCfg := transport.ClientTLSConfig{ServerName: host}
		if c.cfg.ClientTLS != nil {
			tlsCfg = *c.cfg.ClientTLS
			if tlsCfg.ServerName == "" {
				tlsCfg.ServerName = host
			}
		}
		tr = transport.NewClientTLS(conn, tlsCfg, c.cfg.Transport)
	} else {
		tr = transport.NewPlain(conn, c.cfg.Transport)
	}

	_ = conn.SetDeadline(deadline)
	if err := tr.Handshake(); err != nil {
		log.Printf("stormsocket: trace=%s handshake failed: %v", traceID, err)
		_ = tr.Close()
		return nil, err
	}

	key, err := wsproto.GenerateClientKey()
	if err != nil {
		_ = tr.Close()
		return nil, err
	}
	path := u.RequestURI()
	if path == "" {
		path = "/"
	}
	hostHeader := wsproto.HostHeaderValue(host, port, useTLS)
	req := wsproto.BuildClientRequest(hostHeader, path, key, c.cfg.ExtraHeaders)
	if _, err := tr.Write(req); err != nil {
		_ = tr.Close()
		return nil, err
	}
	if err := tr.Flush(); err != nil {
		_ = tr.Close()
		return nil, err
	}

	if err := readUpgradeResponse(tr, conn, deadline, key); err != nil {
		log.Printf("stormsocket: trace=%s upgrade failed: %v", traceID, err)
		_ = tr.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	sess := session.NewWSSession(tr, session.WSConfig{
		Role:           session.RoleClient,
		MaxFrameSize:   c.cfg.MaxFrameSize,
		AutoPong:       c.cfg.AutoPong,
		PingInterval:   c.cfg.PingInterval,
		MaxMissedPongs: c.cfg.MaxMissedPongs,
		Policy:         stormsocket.PolicyWait,
	}, session.WSSessionHandlers{
		OnMessage: c.onMessage,
		OnError:   c.onError,
	})
	log.Printf("stormsocket: trace=%s session=%d connected", traceID, sess.ID())

	c.mu.Lock()
	c.sess = sess
	c.mu.Unlock()
	return sess, nil
}

// runSession fires the connected/disconnected lifecycle around the
// session's blocking frame loop.
func (c *WSClient) runSession(sess *session.WSSession) {
	if c.cfg.OnConnected != nil {
		c.cfg.OnConnected(c)
	}
	sess.Run()
	if c.cfg.OnDisconnected != nil {
		c.cfg.OnDisconnected(c)
	}
}

// readUpgradeResponse reads until a full HTTP response line+headers are
// buffered, then validates the 101 Switching Protocols handshake
// (spec.md §4.11 "WS connect"), failing on EOF or an accept-key
// mismatch.
func readUpgradeResponse(tr transport.Transport, conn net.Conn, deadline time.Time, sentKey string) error {
	_ = conn.SetReadDeadline(deadline)
	defer conn.SetReadDeadline(time.Time{})

	var buf []byte
	chunk := make([]byte, 4096)
	for {
		n, err := tr.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			statusLine, headers, _, perr := wsproto.ParseServerResponse(buf)
			if perr == nil {
				return wsproto.ValidateServerResponse(statusLine, headers, sentKey)
			}
			if perr != wsproto.ErrIncompleteRequest {
				return perr
			}
		}
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return stormsocket.ErrConnectTimeout
			}
			return err
		}
	}
}

func (c *WSClient) onMessage(_ *session.WSSession, data []byte, isText bool) {
	if c.cfg.OnMessageReceived != nil {
		c.cfg.OnMessageReceived(c, data, isText)
	}
}

func (c *WSClient) onError(_ *session.WSSession, err error) {
	if c.cfg.OnError != nil {
		c.cfg.OnError(c, err)
	}
}

// SendText transmits a Text frame over the current session.
func (c *WSClient) SendText(data []byte) error {
	sess := c.current()
	if sess == nil {
		return stormsocket.ErrNotConnected
	}
	return sess.SendText(data)
}

// SendBinary transmits a Binary frame over the current session.
func (c *WSClient) SendBinary(data []byte) error {
	sess := c.current()
	if sess == nil {
		return stormsocket.ErrNotConnected
	}
	return sess.SendBinary(data)
}

// Send sends data as a single Binary frame.
func (c *WSClient) Send(data []byte) error {
	return c.SendBinary(data)
}

func (c *WSClient) current() *session.WSSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// Close stops any in-progress reconnect loop and closes the current
// session.
func (c *WSClient) Close() error {
	if c.closing.CompareAndSwap(false, true) {
		close(c.stopCh)
	}
	sess := c.current()
	if sess == nil {
		return nil
	}
	return sess.Close()
}
