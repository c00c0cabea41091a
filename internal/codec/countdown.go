package codec

import (
	"sync"
	"time"
)

// Countdown is a cancellable one-shot timer for the self-destruct display.
// The zero value is ready to use.
type Countdown struct {
	mu    sync.Mutex
	timer *time.Timer
}

// Start arms the countdown. onExpire runs once, on its own goroutine, after
// d unless Stop is called first. Starting an armed countdown re-arms it.
func (c *Countdown) Start(d time.Duration, onExpire func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		c.mu.Lock()
		current := c.timer == t
		if current {
			c.timer = nil
		}
		c.mu.Unlock()
		if current {
			onExpire()
		}
	})
	c.timer = t
}

// Stop disarms the countdown and reports whether it was armed.
func (c *Countdown) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer == nil {
		return false
	}
	c.timer.Stop()
	c.timer = nil
	return true
}
