package transport

import (
	"crypto/tls"
	"net"
)

// ServerTLSConfig configures the server-side TLS transport variant
// (spec.md §4.1 "Variants").
type ServerTLSConfig struct {
	Certificates      []tls.Certificate
	RequireClientCert bool
	MinVersion        uint16
}

// ToTLSConfig builds a *tls.Config for accepting connections.
func (c ServerTLSConfig) ToTLSConfig() *tls.Config {
	cfg := &tls.Config{
		Certificates: c.Certificates,
		MinVersion:   c.MinVersion,
	}
	if c.RequireClientCert {
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg
}

// ClientTLSConfig configures the client-side TLS transport variant:
// target host for SNI/name validation, allowed protocol versions, an
// optional custom certificate validator, and an optional client
// certificate.
type ClientTLSConfig struct {
	ServerName         string
	MinVersion         uint16
	MaxVersion         uint16
	InsecureSkipVerify bool
	VerifyConnection   func(tls.ConnectionState) error
	Certificates       []tls.Certificate
}

// ToTLSConfig builds a *tls.Config for dialing.
func (c ClientTLSConfig) ToTLSConfig() *tls.Config {
	return &tls.Config{
		ServerName:         c.ServerName,
		MinVersion:         c.MinVersion,
		MaxVersion:         c.MaxVersion,
		InsecureSkipVerify: c.InsecureSkipVerify,
		VerifyConnection:   c.VerifyConnection,
		Certificates:       c.Certificates,
	}
}

// tlsTransport is a Transport that performs the TLS handshake in
// Handshake(); once it succeeds, byte stream semantics are identical to
// the plaintext variant (spec.md §4.1).
type tlsTransport struct {
	conn *tls.Conn
	cfg  Config
	out  *bufferedOutbound
}

// NewServerTLS wraps an accepted net.Conn with a server-side TLS
// handshake.
func NewServerTLS(conn net.Conn, tlsCfg ServerTLSConfig, cfg Config) Transport {
	t := &tlsTransport{
		conn: tls.Server(conn, tlsCfg.ToTLSConfig()),
		cfg:  cfg,
		out:  newBufferedOutbound(cfg.MaxPendingSendBytes),
	}
	t.out.start(t.conn)
	return t
}

// NewClientTLS wraps a dialed net.Conn with a client-side TLS handshake.
func NewClientTLS(conn net.Conn, tlsCfg ClientTLSConfig, cfg Config) Transport {
	t := &tlsTransport{
		conn: tls.Client(conn, tlsCfg.ToTLSConfig()),
		cfg:  cfg,
		out:  newBufferedOutbound(cfg.MaxPendingSendBytes),
	}
	t.out.start(t.conn)
	return t
}

func (t *tlsTransport) Handshake() error {
	return t.conn.Handshake()
}

func (t *tlsTransport) Read(p []byte) (int, error) {
	return t.conn.Read(p)
}

// Write enqueues p onto the bounded outbound queue, blocking while it is
// at or above the pause threshold, and reports the real enqueue outcome
// instead of always claiming success.
func (t *tlsTransport) Write(p []byte) (int, error) {
	if err := t.out.enqueue(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (t *tlsTransport) Flush() error {
	return t.out.flush()
}

func (t *tlsTransport) Close() error {
	t.out.close()
	return t.conn.Close()
}

func (t *tlsTransport) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }

func (t *tlsTransport) IsBackpressured() bool { return t.out.isBackpressured() }
