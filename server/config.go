// Package server implements the accept+lifecycle orchestrator (spec.md
// §4.10): listen, accept, handshake, session registration, middleware
// pipeline, broadcast, max-connection gating, and shutdown, for both raw
// TCP and WebSocket endpoints.
package server

import (
	"time"

	"github.com/suleymanbyzt/StormSocket"
	"github.com/suleymanbyzt/StormSocket/framer"
	"github.com/suleymanbyzt/StormSocket/internal/wsproto"
	"github.com/suleymanbyzt/StormSocket/middleware"
	"github.com/suleymanbyzt/StormSocket/session"
	"github.com/suleymanbyzt/StormSocket/transport"
)

// Config carries the server options from spec.md §6 "Configuration
// surface" shared by the TCP and WebSocket servers.
type Config struct {
	Endpoint           string
	Backlog            int
	DualMode           bool
	MaxConnections     int
	SlowConsumerPolicy stormsocket.Policy
	Transport          transport.Config
	ServerTLS          *transport.ServerTLSConfig
	Framer             framer.Framer
	Pipeline           *middleware.Pipeline

	OnConnected    func(s session.Session)
	OnDisconnected func(s session.Session)
	OnDataReceived func(s session.Session, data []byte)
	OnError        func(s session.Session, err error)
	OnSocketError  func(err error)
}

// DefaultConfig returns the spec.md §6 server-option defaults.
func DefaultConfig() Config {
	return Config{
		Backlog:            128,
		DualMode:           false,
		MaxConnections:     0,
		SlowConsumerPolicy: stormsocket.PolicyWait,
		Transport:          transport.DefaultConfig(),
		Framer:             framer.NewRaw(),
		Pipeline:           middleware.NewPipeline(),
	}
}

// WSConfig adds the WebSocket-specific options from spec.md §6.
type WSConfig struct {
	Config

	PingInterval     time.Duration
	MaxMissedPongs   int64
	AutoPong         bool
	MaxFrameSize     int64
	AllowedOrigins   []string
	HandshakeTimeout time.Duration

	// OnConnecting is the authorization hook (spec.md §4.5): invoked
	// with the parsed upgrade context after parse, before a session
	// exists. If it does not explicitly Accept or Reject, auto-accept.
	OnConnecting      func(ctx *wsproto.UpgradeContext)
	OnMessageReceived func(s session.Session, data []byte, isText bool)
}

// DefaultWSConfig returns the spec.md §6 WebSocket-option defaults
// layered over DefaultConfig.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		Config:           DefaultConfig(),
		PingInterval:     30 * time.Second,
		MaxMissedPongs:   3,
		AutoPong:         true,
		MaxFrameSize:     1 << 20,
		HandshakeTimeout: 5 * time.Second,
	}
}
