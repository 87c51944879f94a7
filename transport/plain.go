package transport

import (
	"net"
)

// plainTransport is a Transport over a bare net.Conn — no TLS
// negotiation, Handshake is a no-op.
type plainTransport struct {
	conn net.Conn
	cfg  Config
	out  *bufferedOutbound
}

// NewPlain wraps conn (already accepted/dialed and socket-tuned by the
// caller) as a Transport.
func NewPlain(conn net.Conn, cfg Config) Transport {
	t := &plainTransport{
		conn: conn,
		cfg:  cfg,
		out:  newBufferedOutbound(cfg.MaxPendingSendBytes),
	}
	t.out.start(conn)
	return t
}

func (t *plainTransport) Handshake() error { return nil }

func (t *plainTransport) Read(p []byte) (int, error) {
	return t.conn.Read(p)
}

// Write enqueues p onto the bounded outbound queue, blocking while it is
// at or above the pause threshold, and reports the real enqueue outcome
// instead of always claiming success.
func (t *plainTransport) Write(p []byte) (int, error) {
	if err := t.out.enqueue(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (t *plainTransport) Flush() error {
	return t.out.flush()
}

func (t *plainTransport) Close() error {
	t.out.close()
	return t.conn.Close()
}

func (t *plainTransport) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }

func (t *plainTransport) IsBackpressured() bool { return t.out.isBackpressured() }
