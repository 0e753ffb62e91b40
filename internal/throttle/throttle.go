package throttle

import (
	"context"
	"sync"
	"time"
)

// Throttle is a sliding-window rate limiter: at most limit operations start
// inside any rolling window. Callers are released first come, first served.
// A single instance is meant to be shared by every caller of one quota.
type Throttle struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu     sync.Mutex
	starts []time.Time
	queue  []*waiter
}

type waiter struct {
	head chan struct{}
}

func New(limit int, window time.Duration) *Throttle {
	if limit < 1 {
		limit = 1
	}
	return &Throttle{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Execute blocks until a slot is free and then runs op. The operation is
// never dropped; it is skipped only when ctx ends while waiting.
func (t *Throttle) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := t.Wait(ctx); err != nil {
		return err
	}
	return op(ctx)
}

// Wait records a start for the caller once the window has room for it.
//
// Only the head of the queue watches the clock. It sleeps until the oldest
// recorded start leaves the window and re-checks the window on waking; the
// others block on their own channel until they are promoted to head.
func (t *Throttle) Wait(ctx context.Context) error {
	w := &waiter{head: make(chan struct{})}

	t.mu.Lock()
	t.queue = append(t.queue, w)
	if len(t.queue) == 1 {
		close(w.head)
	}
	t.mu.Unlock()

	select {
	case <-w.head:
	case <-ctx.Done():
		t.mu.Lock()
		t.leave(w)
		t.mu.Unlock()
		return ctx.Err()
	}

	for {
		t.mu.Lock()
		now := t.now()
		t.prune(now)
		if len(t.starts) < t.limit {
			t.starts = append(t.starts, now)
			t.leave(w)
			t.mu.Unlock()
			return nil
		}
		wait := t.starts[0].Add(t.window).Sub(now)
		t.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			t.mu.Lock()
			t.leave(w)
			t.mu.Unlock()
			return ctx.Err()
		}
	}
}

// Pending reports how many callers are queued.
func (t *Throttle) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// prune drops starts that are no longer inside (now - window, now].
func (t *Throttle) prune(now time.Time) {
	cutoff := now.Add(-t.window)
	i := 0
	for i < len(t.starts) && !t.starts[i].After(cutoff) {
		i++
	}
	if i > 0 {
		t.starts = append(t.starts[:0], t.starts[i:]...)
	}
}

// leave removes w from the queue and promotes the next head. Caller holds mu.
func (t *Throttle) leave(w *waiter) {
	for i, q := range t.queue {
		if q != w {
			continue
		}
		t.queue = append(t.queue[:i], t.queue[i+1:]...)
		if i == 0 && len(t.queue) > 0 {
			close(t.queue[0].head)
		}
		return
	}
}
