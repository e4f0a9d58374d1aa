package executor

import (
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// capture accumulates a stream up to limit bytes and discards the rest,
// so the writer never blocks on a full pipe.
type capture struct {
	mu        sync.Mutex
	buf       []byte
	limit     int
	truncated bool
}

func newCapture(limit int) *capture {
	return &capture{limit: limit}
}

func (c *capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	room := c.limit - len(c.buf)
	if room <= 0 {
		c.truncated = true
		return len(p), nil
	}
	if len(p) > room {
		c.buf = append(c.buf, p[:room]...)
		c.truncated = true
		return len(p), nil
	}
	c.buf = append(c.buf, p...)
	return len(p), nil
}

func (c *capture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.buf)
}

func (c *capture) Truncated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.truncated
}

// drain copies r into the capture until EOF or close. The returned channel
// is closed when copying stops.
func (c *capture) drain(r io.Reader) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = io.Copy(c, r)
	}()
	return done
}

// usageTracker keeps the maximum of every observation. Samplers and the
// final rusage read both feed it.
type usageTracker struct {
	memory atomic.Int64
	cpu    atomic.Int64
}

func (u *usageTracker) observeMemory(bytes int64) {
	for {
		cur := u.memory.Load()
		if bytes <= cur || u.memory.CompareAndSwap(cur, bytes) {
			return
		}
	}
}

func (u *usageTracker) observeProcessorTime(d time.Duration) {
	for {
		cur := u.cpu.Load()
		if int64(d) <= cur || u.cpu.CompareAndSwap(cur, int64(d)) {
			return
		}
	}
}

func (u *usageTracker) peakMemory() int64 {
	return u.memory.Load()
}

func (u *usageTracker) processorTime() time.Duration {
	return time.Duration(u.cpu.Load())
}
