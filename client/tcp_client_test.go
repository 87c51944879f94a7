package client

import (
	"testing"
	"time"

	"github.com/suleymanbyzt/StormSocket/server"
	"github.com/suleymanbyzt/StormSocket/session"
)

func TestTCPClientConnectsSendsAndReceives(t *testing.T) {
	srvCfg := server.DefaultConfig()
	srvCfg.Endpoint = "127.0.0.1:0"
	srvCfg.OnDataReceived = func(s session.Session, data []byte) {
		_ = s.Send(data)
	}
	srv := server.NewTCPServer(srvCfg)
	if err := srv.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	defer srv.Stop()

	received := make(chan []byte, 1)
	cfg := DefaultConfig()
	cfg.Endpoint = srv.Addr().String()
	cfg.OnDataReceived = func(c *TCPClient, data []byte) {
		received <- append([]byte(nil), data...)
	}

	cl := NewTCPClient(cfg)
	if err := cl.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer cl.Close()

	if err := cl.Send([]byte("ping")); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case data := <-received:
		if string(data) != "ping" {
			t.Fatalf("got %q, want %q", data, "ping")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo")
	}
}

func TestTCPClientAttemptsReconnectAfterServerStop(t *testing.T) {
	srvCfg := server.DefaultConfig()
	srvCfg.Endpoint = "127.0.0.1:0"
	srv := server.NewTCPServer(srvCfg)
	if err := srv.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	addr := srv.Addr().String()

	reconnecting := make(chan int, 8)
	cfg := DefaultConfig()
	cfg.Endpoint = addr
	cfg.Reconnect.Enabled = true
	cfg.Reconnect.Delay = 10 * time.Millisecond
	cfg.Reconnect.MaxAttempts = 3
	cfg.OnReconnecting = func(attempt int, _ time.Duration) {
		reconnecting <- attempt
	}

	cl := NewTCPClient(cfg)
	if err := cl.Connect(); err != nil {
		t.Fatalf("initial connect: %v", err)
	}
	defer cl.Close()

	srv.Stop()

	select {
	case attempt := <-reconnecting:
		if attempt < 1 {
			t.Fatalf("got attempt %d, want >= 1", attempt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a reconnect attempt")
	}
}
