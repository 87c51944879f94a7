package heartbeat

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestHeartbeatSendsPingsUntilStopped(t *testing.T) {
	var pings atomic.Int64
	hb := New(10*time.Millisecond, 100, func() error {
		pings.Add(1)
		return nil
	}, nil)
	hb.Start()
	time.Sleep(55 * time.Millisecond)
	hb.Stop()

	if got := pings.Load(); got < 3 {
		t.Fatalf("expected at least 3 pings, got %d", got)
	}
}

func TestHeartbeatTimeoutFiresOnceAfterMaxMissed(t *testing.T) {
	var timeouts atomic.Int64
	hb := New(5*time.Millisecond, 2, func() error { return nil }, func() {
		timeouts.Add(1)
	})
	hb.Start()
	time.Sleep(60 * time.Millisecond)
	hb.Stop()

	if got := timeouts.Load(); got != 1 {
		t.Fatalf("expected exactly 1 timeout, got %d", got)
	}
}

func TestOnPongReceivedResetsMissedCount(t *testing.T) {
	hb := New(5*time.Millisecond, 10, func() error { return nil }, nil)
	hb.Start()
	time.Sleep(25 * time.Millisecond)
	if hb.MissedPongs() == 0 {
		t.Fatalf("expected missed pongs to have incremented")
	}
	hb.OnPongReceived()
	if got := hb.MissedPongs(); got != 0 {
		t.Fatalf("expected missed pongs reset to 0, got %d", got)
	}
	hb.Stop()
}

func TestStopWithoutStartDoesNotBlock(t *testing.T) {
	hb := New(time.Second, 1, func() error { return nil }, nil)
	done := make(chan struct{})
	go func() {
		hb.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop without Start blocked")
	}
}
