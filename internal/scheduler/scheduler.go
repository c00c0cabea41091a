package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// FireFunc is called once per deadline that comes due. It runs on the
// scheduler goroutine and must not block for long.
type FireFunc func(sessionID, messageID string)

// Scheduler holds pending self-destruct deadlines.
//
// Usage:
//
//	s := New()
//	s.Start(ctx, func(sessionID, messageID string) {
//	    // tell the session its message is gone
//	})
//	defer s.Stop()
//
//	s.Schedule(sess.ID, "msg_01...", time.Now().Add(3*time.Second))
//
// All methods are safe for concurrent use.
type Scheduler struct {
	mu    sync.Mutex
	h     minHeap
	byKey map[string]*item

	// notify wakes the goroutine when a new deadline may be earlier than the
	// one it is sleeping on. Capacity 1; extra signals are dropped.
	notify chan struct{}

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Scheduler. Call Start to begin firing.
func New() *Scheduler {
	h := make(minHeap, 0, 16)
	heap.Init(&h)
	return &Scheduler{
		h:      h,
		byKey:  make(map[string]*item),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func key(sessionID, messageID string) string { return sessionID + "/" + messageID }

// Schedule arms a deadline for messageID in sessionID. Scheduling the same
// pair again replaces the earlier deadline. A deadline in the past fires
// promptly.
func (s *Scheduler) Schedule(sessionID, messageID string, at time.Time) {
	k := key(sessionID, messageID)
	s.mu.Lock()
	if prev, ok := s.byKey[k]; ok {
		s.h.remove(prev.idx)
	}
	it := &item{key: k, sessionID: sessionID, messageID: messageID, dueMs: at.UnixMilli()}
	heap.Push(&s.h, it)
	s.byKey[k] = it
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Cancel disarms one deadline. It reports whether it was pending.
func (s *Scheduler) Cancel(sessionID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.byKey[key(sessionID, messageID)]
	if !ok {
		return false
	}
	s.h.remove(it.idx)
	delete(s.byKey, it.key)
	return true
}

// CancelSession disarms every deadline of sessionID and returns how many
// there were.
func (s *Scheduler) CancelSession(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, it := range s.byKey {
		if it.sessionID != sessionID {
			continue
		}
		s.h.remove(it.idx)
		delete(s.byKey, k)
		n++
	}
	return n
}

// Len returns the number of pending deadlines.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byKey)
}

// Start launches the firing goroutine. Call it exactly once.
func (s *Scheduler) Start(ctx context.Context, fire FireFunc) {
	s.wg.Add(1)
	go s.run(ctx, fire)
}

// Stop shuts the goroutine down and waits for it. Pending deadlines are
// dropped without firing.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	s.wg.Wait()
}

// ─── firing goroutine ────────────────────────────────────────────────────────

func (s *Scheduler) run(ctx context.Context, fire FireFunc) {
	defer s.wg.Done()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		s.mu.Lock()
		var wait time.Duration
		var due *item
		if s.h.Len() > 0 {
			root := s.h[0]
			wait = time.Until(time.UnixMilli(root.dueMs))
			if wait <= 0 {
				due = heap.Pop(&s.h).(*item)
				delete(s.byKey, due.key)
			}
		}
		empty := s.h.Len() == 0 && due == nil
		s.mu.Unlock()

		if due != nil {
			fire(due.sessionID, due.messageID)
			continue
		}

		var timerC <-chan time.Time
		if !empty {
			timer.Reset(wait)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-s.notify:
			// Re-evaluate from the top; the new root may be due sooner.
		case <-timerC:
		}
		if !empty && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}
}
