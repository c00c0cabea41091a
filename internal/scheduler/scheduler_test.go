package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/snehjoshi/encodex/internal/scheduler"
)

// ─── helpers ─────────────────────────────────────────────────────────────────

// collected gathers fired deadlines in a concurrency-safe way.
type collected struct {
	mu      sync.Mutex
	entries []string // "sessionID/messageID"
}

func (c *collected) fn(sessionID, messageID string) {
	c.mu.Lock()
	c.entries = append(c.entries, sessionID+"/"+messageID)
	c.mu.Unlock()
}

func (c *collected) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.entries...)
}

// waitForCount polls until n deadlines have fired or timeout elapses.
func waitForCount(t *testing.T, c *collected, n int, timeout time.Duration) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(c.snapshot()) >= n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func startScheduler(t *testing.T) (*scheduler.Scheduler, *collected) {
	t.Helper()
	s := scheduler.New()
	c := &collected{}
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx, c.fn)
	t.Cleanup(func() {
		cancel()
		s.Stop()
	})
	return s, c
}

// ─── Tests ───────────────────────────────────────────────────────────────────

func TestScheduler_PastDeadlineFiresPromptly(t *testing.T) {
	s, c := startScheduler(t)
	s.Schedule("sess", "msg_1", time.Now().Add(-time.Second))

	if !waitForCount(t, c, 1, 2*time.Second) {
		t.Fatal("expected the deadline to fire")
	}
	if got := c.snapshot()[0]; got != "sess/msg_1" {
		t.Errorf("want sess/msg_1, got %s", got)
	}
	if s.Len() != 0 {
		t.Errorf("fired deadline still pending")
	}
}

func TestScheduler_FutureDeadlineWaits(t *testing.T) {
	s, c := startScheduler(t)
	s.Schedule("sess", "msg_1", time.Now().Add(150*time.Millisecond))

	time.Sleep(50 * time.Millisecond)
	if n := len(c.snapshot()); n != 0 {
		t.Fatalf("fired too early (%d)", n)
	}
	if !waitForCount(t, c, 1, 2*time.Second) {
		t.Fatal("deadline never fired")
	}
}

func TestScheduler_FiresInDueOrder(t *testing.T) {
	s, c := startScheduler(t)
	now := time.Now()
	s.Schedule("a", "msg_3", now.Add(90*time.Millisecond))
	s.Schedule("a", "msg_1", now.Add(30*time.Millisecond))
	s.Schedule("a", "msg_2", now.Add(60*time.Millisecond))

	if !waitForCount(t, c, 3, 2*time.Second) {
		t.Fatalf("want 3 fired, got %v", c.snapshot())
	}
	want := []string{"a/msg_1", "a/msg_2", "a/msg_3"}
	for i, got := range c.snapshot() {
		if got != want[i] {
			t.Errorf("position %d: want %s, got %s", i, want[i], got)
		}
	}
}

func TestScheduler_Cancel(t *testing.T) {
	s, c := startScheduler(t)
	s.Schedule("sess", "msg_1", time.Now().Add(50*time.Millisecond))
	if !s.Cancel("sess", "msg_1") {
		t.Fatal("Cancel reported nothing pending")
	}
	if s.Cancel("sess", "msg_1") {
		t.Fatal("second Cancel should report nothing pending")
	}
	time.Sleep(120 * time.Millisecond)
	if n := len(c.snapshot()); n != 0 {
		t.Fatalf("cancelled deadline fired")
	}
}

func TestScheduler_CancelSession(t *testing.T) {
	s, c := startScheduler(t)
	due := time.Now().Add(60 * time.Millisecond)
	s.Schedule("gone", "msg_1", due)
	s.Schedule("gone", "msg_2", due)
	s.Schedule("stays", "msg_1", due)

	if n := s.CancelSession("gone"); n != 2 {
		t.Fatalf("want 2 cancelled, got %d", n)
	}
	if !waitForCount(t, c, 1, 2*time.Second) {
		t.Fatal("remaining deadline never fired")
	}
	time.Sleep(30 * time.Millisecond)
	got := c.snapshot()
	if len(got) != 1 || got[0] != "stays/msg_1" {
		t.Fatalf("want only stays/msg_1, got %v", got)
	}
}

func TestScheduler_RescheduleReplaces(t *testing.T) {
	s, c := startScheduler(t)
	s.Schedule("sess", "msg_1", time.Now().Add(time.Hour))
	s.Schedule("sess", "msg_1", time.Now().Add(20*time.Millisecond))
	if s.Len() != 1 {
		t.Fatalf("want 1 pending, got %d", s.Len())
	}
	if !waitForCount(t, c, 1, 2*time.Second) {
		t.Fatal("replacement deadline never fired")
	}
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	s := scheduler.New()
	s.Start(context.Background(), func(string, string) {})
	s.Schedule("sess", "msg_1", time.Now().Add(time.Hour))
	s.Stop()
	s.Stop()
}
