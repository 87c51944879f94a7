package server

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/suleymanbyzt/StormSocket/internal/wsproto"
	"github.com/suleymanbyzt/StormSocket/session"
)

func dialAndUpgrade(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	req := "GET / HTTP/1.1\r\n" +
		"Host: " + addr + "\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n\r\n"
	if _, err := conn.Write([]byte(req)); err != nil {
		t.Fatalf("write upgrade request: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)
	status, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if !strings.HasPrefix(status, "HTTP/1.1 101") {
		t.Fatalf("unexpected status line: %q", status)
	}
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read headers: %v", err)
		}
		if line == "\r\n" {
			break
		}
	}
	conn.SetReadDeadline(time.Time{})
	return conn
}

func TestWSServerUpgradeAndTextEcho(t *testing.T) {
	cfg := DefaultWSConfig()
	cfg.Endpoint = "127.0.0.1:0"
	cfg.OnMessageReceived = func(s session.Session, data []byte, isText bool) {
		ws := s.(*session.WSSession)
		if isText {
			_ = ws.SendText(data)
		}
	}

	srv := NewWSServer(cfg)
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.Stop()

	conn := dialAndUpgrade(t, srv.ln.Addr().String())
	defer conn.Close()

	payload := []byte("Hello WebSocket!")
	frame, err := wsproto.EncodeFrame(wsproto.OpcodeText, payload, true)
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read echoed frame: %v", err)
	}
	decoded, _, err := wsproto.DecodeFrame(buf[:n], 0)
	if err != nil {
		t.Fatalf("decode echoed frame: %v", err)
	}
	if decoded == nil || string(decoded.Payload) != string(payload) {
		t.Fatalf("got %v, want payload %q", decoded, payload)
	}
}

func TestWSServerRejectsForbiddenOrigin(t *testing.T) {
	cfg := DefaultWSConfig()
	cfg.Endpoint = "127.0.0.1:0"
	cfg.AllowedOrigins = []string{"https://allowed.example"}

	srv := NewWSServer(cfg)
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.Stop()

	conn, err := net.Dial("tcp", srv.ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	req := "GET / HTTP/1.1\r\n" +
		"Host: example\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n" +
		"Origin: https://evil.example\r\n\r\n"
	if _, err := conn.Write([]byte(req)); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)
	status, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if !strings.HasPrefix(status, "HTTP/1.1 403") {
		t.Fatalf("status = %q, want 403 Forbidden", status)
	}
}
