package throttle

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
)

const epsilon = 5 * time.Millisecond

func TestSequentialCallsRespectWindow(t *testing.T) {
	th := New(2, time.Second)
	var starts []time.Time

	for i := 0; i < 3; i++ {
		err := th.Execute(context.Background(), func(context.Context) error {
			starts = append(starts, time.Now())
			return nil
		})
		if err != nil {
			t.Fatalf("execute %d: %v", i, err)
		}
	}

	if len(starts) != 3 {
		t.Fatalf("expected 3 starts, got %d", len(starts))
	}
	if starts[2].Before(starts[0].Add(time.Second - epsilon)) {
		t.Fatalf("third call started too early: %v after first", starts[2].Sub(starts[0]))
	}
	if starts[1].Sub(starts[0]) > 100*time.Millisecond {
		t.Fatalf("second call should not wait")
	}
}

func TestConcurrentCallersNeverExceedLimit(t *testing.T) {
	const (
		limit   = 3
		window  = 100 * time.Millisecond
		callers = 10
	)
	th := New(limit, window)

	var mu sync.Mutex
	var starts []time.Time
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = th.Execute(context.Background(), func(context.Context) error {
				mu.Lock()
				starts = append(starts, time.Now())
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if len(starts) != callers {
		t.Fatalf("expected every operation to run, got %d", len(starts))
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	for i := limit; i < len(starts); i++ {
		if starts[i].Sub(starts[i-limit]) < window-epsilon {
			t.Fatalf("more than %d starts within %v at index %d", limit, window, i)
		}
	}
}

func TestWaitersReleasedInArrivalOrder(t *testing.T) {
	th := New(1, 100*time.Millisecond)
	if err := th.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_ = th.Execute(context.Background(), func(context.Context) error {
				mu.Lock()
				order = append(order, id)
				mu.Unlock()
				return nil
			})
		}(i)
		waitForPending(t, th, i+1)
	}
	wg.Wait()

	for i, id := range order {
		if id != i {
			t.Fatalf("expected FIFO release, got %v", order)
		}
	}
}

func TestCancelledWaiterLeavesQueue(t *testing.T) {
	th := New(1, time.Hour)
	if err := th.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ran := false
	err := th.Execute(ctx, func(context.Context) error {
		ran = true
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if ran {
		t.Fatalf("operation must not run after cancellation")
	}
	if th.Pending() != 0 {
		t.Fatalf("expected empty queue, got %d", th.Pending())
	}
}

func TestCancelledMiddleWaiterDoesNotBlockOthers(t *testing.T) {
	th := New(1, 100*time.Millisecond)
	if err := th.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	headDone := make(chan error, 1)
	go func() { headDone <- th.Wait(context.Background()) }()
	waitForPending(t, th, 1)

	ctx, cancel := context.WithCancel(context.Background())
	middleDone := make(chan error, 1)
	go func() { middleDone <- th.Wait(ctx) }()
	waitForPending(t, th, 2)

	tailDone := make(chan error, 1)
	go func() { tailDone <- th.Wait(context.Background()) }()
	waitForPending(t, th, 3)

	cancel()
	if err := <-middleDone; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancelled, got %v", err)
	}

	for name, ch := range map[string]chan error{"head": headDone, "tail": tailDone} {
		select {
		case err := <-ch:
			if err != nil {
				t.Fatalf("%s: %v", name, err)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s waiter never released", name)
		}
	}
}

func TestExecuteReturnsOperationError(t *testing.T) {
	th := New(1, time.Millisecond)
	want := errors.New("boom")
	if err := th.Execute(context.Background(), func(context.Context) error { return want }); !errors.Is(err, want) {
		t.Fatalf("expected operation error, got %v", err)
	}
}

func waitForPending(t *testing.T, th *Throttle, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for th.Pending() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %d queued callers", n)
		}
		time.Sleep(time.Millisecond)
	}
}
