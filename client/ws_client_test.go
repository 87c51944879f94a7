package client

import (
	"testing"
	"time"

	"github.com/suleymanbyzt/StormSocket/server"
	"github.com/suleymanbyzt/StormSocket/session"
)

func TestWSClientConnectsAndEchoesText(t *testing.T) {
	srvCfg := server.DefaultWSConfig()
	srvCfg.Endpoint = "127.0.0.1:0"
	srvCfg.OnMessageReceived = func(s session.Session, data []byte, isText bool) {
		ws := s.(*session.WSSession)
		if isText {
			_ = ws.SendText(data)
		}
	}
	srv := server.NewWSServer(srvCfg)
	if err := srv.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	defer srv.Stop()

	received := make(chan string, 1)
	cfg := DefaultWSConfig()
	cfg.URI = "ws://" + srv.Addr().String() + "/"
	cfg.OnMessageReceived = func(c *WSClient, data []byte, isText bool) {
		if isText {
			received <- string(data)
		}
	}

	cl := NewWSClient(cfg)
	if err := cl.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer cl.Close()

	if err := cl.SendText([]byte("hello")); err != nil {
		t.Fatalf("send text: %v", err)
	}

	select {
	case got := <-received:
		if got != "hello" {
			t.Fatalf("got %q, want %q", got, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo")
	}
}

func TestWSClientFailsOnNonWebSocketPeer(t *testing.T) {
	srvCfg := server.DefaultConfig()
	srvCfg.Endpoint = "127.0.0.1:0"
	srv := server.NewTCPServer(srvCfg)
	if err := srv.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	defer srv.Stop()

	cfg := DefaultWSConfig()
	cfg.URI = "ws://" + srv.Addr().String() + "/"
	cfg.ConnectTimeout = 500 * time.Millisecond

	cl := NewWSClient(cfg)
	if err := cl.Connect(); err == nil {
		t.Fatal("expected Connect to fail against a non-WebSocket peer")
	}
}
