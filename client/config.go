// Package client implements the connect orchestrator (spec.md §4.11):
// TCP and WebSocket dial, handshake, read/frame loop, send, and
// auto-reconnect.
package client

import (
	"time"

	"github.com/suleymanbyzt/StormSocket/framer"
	"github.com/suleymanbyzt/StormSocket/internal/wsproto"
	"github.com/suleymanbyzt/StormSocket/transport"
)

// ReconnectConfig is the spec.md §6 reconnect option group, shared by
// both client kinds.
type ReconnectConfig struct {
	Enabled     bool
	Delay       time.Duration
	MaxAttempts int
}

// Config is the TCP client option group (spec.md §6).
type Config struct {
	Endpoint       string
	ConnectTimeout time.Duration
	ClientTLS      *transport.ClientTLSConfig
	Framer         framer.Framer
	Transport      transport.Config
	Reconnect      ReconnectConfig

	OnConnected    func(c *TCPClient)
	OnDisconnected func(c *TCPClient)
	OnDataReceived func(c *TCPClient, data []byte)
	OnError        func(c *TCPClient, err error)
	OnReconnecting func(attempt int, delay time.Duration)
}

// DefaultConfig returns the spec.md §6 TCP client defaults.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 10 * time.Second,
		Framer:         framer.NewRaw(),
		Transport:      transport.DefaultConfig(),
		Reconnect:      ReconnectConfig{Delay: 2 * time.Second},
	}
}

// WSConfig is the WebSocket client option group (spec.md §6).
type WSConfig struct {
	URI            string
	ConnectTimeout time.Duration
	MaxFrameSize   int64
	ExtraHeaders   wsproto.Header
	ClientTLS      *transport.ClientTLSConfig
	Transport      transport.Config
	Reconnect      ReconnectConfig

	PingInterval   time.Duration
	MaxMissedPongs int64
	AutoPong       bool

	OnConnected       func(c *WSClient)
	OnDisconnected    func(c *WSClient)
	OnMessageReceived func(c *WSClient, data []byte, isText bool)
	OnError           func(c *WSClient, err error)
	OnReconnecting    func(attempt int, delay time.Duration)
}

// DefaultWSConfig returns the spec.md §6 WebSocket client defaults.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ConnectTimeout: 10 * time.Second,
		MaxFrameSize:   1 << 20,
		Transport:      transport.DefaultConfig(),
		Reconnect:      ReconnectConfig{Delay: 2 * time.Second},
		PingInterval:   30 * time.Second,
		MaxMissedPongs: 3,
		AutoPong:       true,
	}
}
