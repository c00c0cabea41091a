package codec_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/snehjoshi/encodex/internal/codec"
)

func TestCountdown_FiresOnce(t *testing.T) {
	var c codec.Countdown
	var fired atomic.Int32
	done := make(chan struct{})
	c.Start(10*time.Millisecond, func() {
		fired.Add(1)
		close(done)
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("countdown never fired")
	}
	time.Sleep(20 * time.Millisecond)
	if n := fired.Load(); n != 1 {
		t.Fatalf("fired %d times", n)
	}
	if c.Stop() {
		t.Error("expired countdown still armed")
	}
}

func TestCountdown_StopPreventsFiring(t *testing.T) {
	var c codec.Countdown
	var fired atomic.Bool
	c.Start(30*time.Millisecond, func() { fired.Store(true) })
	if !c.Stop() {
		t.Fatal("Stop should report an armed countdown")
	}
	time.Sleep(60 * time.Millisecond)
	if fired.Load() {
		t.Fatal("stopped countdown fired")
	}
}

func TestCountdown_RestartReplaces(t *testing.T) {
	var c codec.Countdown
	var first, second atomic.Bool
	done := make(chan struct{})
	c.Start(20*time.Millisecond, func() { first.Store(true) })
	c.Start(30*time.Millisecond, func() {
		second.Store(true)
		close(done)
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("restarted countdown never fired")
	}
	if first.Load() {
		t.Fatal("replaced countdown fired")
	}
	if !second.Load() {
		t.Fatal("second callback did not run")
	}
}
