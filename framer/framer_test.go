package framer

import (
	"bytes"
	"testing"
)

func TestRawConsumesEverythingAvailable(t *testing.T) {
	r := NewRaw()
	msg, rest, err := r.TryReadMessage([]byte("hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(msg) != "hello" || len(rest) != 0 {
		t.Fatalf("got msg=%q rest=%q", msg, rest)
	}

	msg, rest, err = r.TryReadMessage(nil)
	if err != nil || msg != nil || len(rest) != 0 {
		t.Fatalf("empty buffer should yield (nil, empty, nil); got (%v, %v, %v)", msg, rest, err)
	}
}

func TestRawWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	if err := NewRaw().WriteFrame(&buf, []byte("abc")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "abc" {
		t.Fatalf("got %q", buf.String())
	}
}

func TestLengthPrefixRoundTrip(t *testing.T) {
	lp := NewLengthPrefix()
	var buf bytes.Buffer
	if err := lp.WriteFrame(&buf, []byte("Framed message!")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() != 4+15 {
		t.Fatalf("expected 19 wire bytes, got %d", buf.Len())
	}

	msg, rest, err := lp.TryReadMessage(buf.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(msg) != "Framed message!" {
		t.Fatalf("got %q", msg)
	}
	if len(rest) != 0 {
		t.Fatalf("expected no remainder, got %d bytes", len(rest))
	}
}

func TestLengthPrefixNeedsMoreBytes(t *testing.T) {
	lp := NewLengthPrefix()

	msg, rest, err := lp.TryReadMessage([]byte{0, 0, 0})
	if err != nil || msg != nil {
		t.Fatalf("partial header should need more bytes, got (%v, %v, %v)", msg, rest, err)
	}

	var hdr [4]byte
	hdr[3] = 5 // length 5, but only 2 payload bytes supplied
	buf := append(hdr[:], []byte{'h', 'i'}...)
	msg, rest, err = lp.TryReadMessage(buf)
	if err != nil || msg != nil {
		t.Fatalf("partial payload should need more bytes, got (%v, %v, %v)", msg, rest, err)
	}
	if !bytes.Equal(rest, buf) {
		t.Fatalf("buffer must be left intact when incomplete")
	}
}

func TestLengthPrefixBoundary16MiB(t *testing.T) {
	lp := NewLengthPrefix()

	ok := make([]byte, MaxLengthPrefixPayload)
	var buf bytes.Buffer
	if err := lp.WriteFrame(&buf, ok); err != nil {
		t.Fatalf("16 MiB payload must succeed: %v", err)
	}
	msg, _, err := lp.TryReadMessage(buf.Bytes())
	if err != nil || len(msg) != MaxLengthPrefixPayload {
		t.Fatalf("round-trip of 16 MiB payload failed: err=%v len=%d", err, len(msg))
	}

	tooBig := make([]byte, MaxLengthPrefixPayload+1)
	if err := lp.WriteFrame(&bytes.Buffer{}, tooBig); err != ErrInvalidLength {
		t.Fatalf("16 MiB + 1 on write must fail with ErrInvalidLength, got %v", err)
	}
}

func TestLengthPrefixNegativeLength(t *testing.T) {
	lp := NewLengthPrefix()
	buf := []byte{0xFF, 0xFF, 0xFF, 0xFF} // -1 as int32
	_, _, err := lp.TryReadMessage(buf)
	if err != ErrInvalidLength {
		t.Fatalf("negative length must fail with ErrInvalidLength, got %v", err)
	}
}

func TestDelimiterRoundTrip(t *testing.T) {
	d := NewDelimiter()
	var buf bytes.Buffer
	if err := d.WriteFrame(&buf, []byte("hello")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), []byte("hello\n")) {
		t.Fatalf("got %q", buf.Bytes())
	}

	msg, rest, err := d.TryReadMessage(buf.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(msg) != "hello" || len(rest) != 0 {
		t.Fatalf("got msg=%q rest=%q", msg, rest)
	}
}

func TestDelimiterNeedsMoreBytes(t *testing.T) {
	d := NewDelimiter()
	msg, rest, err := d.TryReadMessage([]byte("no delimiter yet"))
	if err != nil || msg != nil {
		t.Fatalf("missing delimiter should need more bytes, got (%v, %v, %v)", msg, rest, err)
	}
}

func TestDelimiterCustomByte(t *testing.T) {
	d := NewDelimiterByte(';')
	var buf bytes.Buffer
	_ = d.WriteFrame(&buf, []byte("a"))
	_ = d.WriteFrame(&buf, []byte("b"))

	msg, rest, err := d.TryReadMessage(buf.Bytes())
	if err != nil || string(msg) != "a" {
		t.Fatalf("got msg=%q err=%v", msg, err)
	}
	msg, rest, err = d.TryReadMessage(rest)
	if err != nil || string(msg) != "b" || len(rest) != 0 {
		t.Fatalf("got msg=%q rest=%q err=%v", msg, rest, err)
	}
}

func TestDelimiterEmptyMessage(t *testing.T) {
	d := NewDelimiter()
	msg, rest, err := d.TryReadMessage([]byte("\nrest"))
	if err != nil || msg == nil || len(msg) != 0 {
		t.Fatalf("leading delimiter should yield an empty message, got (%q, %q, %v)", msg, rest, err)
	}
	if string(rest) != "rest" {
		t.Fatalf("got rest=%q", rest)
	}
}
