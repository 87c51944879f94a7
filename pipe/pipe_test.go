package pipe

import (
	"net"
	"testing"
	"time"

	"github.com/suleymanbyzt/StormSocket/framer"
	"github.com/suleymanbyzt/StormSocket/transport"
)

func TestConnectionDispatchesRawMessages(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	tr := transport.NewPlain(serverConn, transport.DefaultConfig())
	received := make(chan []byte, 1)
	conn := New(tr, framer.NewRaw(), func(msg []byte) {
		received <- msg
	}, nil)

	go conn.Run()

	go clientConn.Write([]byte("Hello StormSocket"))

	select {
	case msg := <-received:
		if string(msg) != "Hello StormSocket" {
			t.Fatalf("got %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for dispatched message")
	}
}

func TestConnectionDrainsMultipleLengthPrefixMessages(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	tr := transport.NewPlain(serverConn, transport.DefaultConfig())
	received := make(chan []byte, 8)
	conn := New(tr, framer.NewLengthPrefix(), func(msg []byte) {
		received <- msg
	}, nil)

	go conn.Run()

	lp := framer.NewLengthPrefix()
	go func() {
		lp.WriteFrame(writerConnFunc(clientConn.Write), []byte("first"))
		lp.WriteFrame(writerConnFunc(clientConn.Write), []byte("second"))
	}()

	for _, want := range []string{"first", "second"} {
		select {
		case msg := <-received:
			if string(msg) != want {
				t.Fatalf("got %q, want %q", msg, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

type writerConnFunc func([]byte) (int, error)

func (f writerConnFunc) Write(p []byte) (int, error) { return f(p) }

func TestConnectionSendFlushesFramedMessage(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	tr := transport.NewPlain(serverConn, transport.DefaultConfig())
	conn := New(tr, framer.NewLengthPrefix(), nil, nil)

	received := make(chan []byte, 1)
	go func() {
		lp := framer.NewLengthPrefix()
		buf := make([]byte, 0, 64)
		chunk := make([]byte, 64)
		for {
			n, err := clientConn.Read(chunk)
			if n > 0 {
				buf = append(buf, chunk[:n]...)
				if msg, _, decErr := lp.TryReadMessage(buf); decErr == nil && msg != nil {
					received <- msg
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	if err := conn.Send([]byte("framed payload")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case msg := <-received:
		if string(msg) != "framed payload" {
			t.Fatalf("got %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for sent message")
	}
}

func TestConnectionOnErrCalledOnInvalidFraming(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	tr := transport.NewPlain(serverConn, transport.DefaultConfig())
	errCh := make(chan error, 1)
	conn := New(tr, framer.NewLengthPrefix(), nil, func(err error) {
		errCh <- err
	})

	go conn.Run()

	// Negative length header: invalid framing per framer.ErrInvalidLength.
	go clientConn.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})

	select {
	case err := <-errCh:
		if err != framer.ErrInvalidLength {
			t.Fatalf("got %v, want ErrInvalidLength", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for onErr")
	}
}
