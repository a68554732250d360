package admission

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSingleModeRejects(t *testing.T) {
	c := New(Config{Multi: false, OnBusy: Reject})

	slot, err := c.Acquire(context.Background())
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}

	_, err = c.Acquire(context.Background())
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("second Acquire: got %v, want ErrBusy", err)
	}

	slot.Release()

	slot2, err := c.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire after release failed: %v", err)
	}
	slot2.Release()
}

func TestSingleModeQueues(t *testing.T) {
	c := New(Config{Multi: false, OnBusy: Queue})

	slot, err := c.Acquire(context.Background())
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}

	acquired := make(chan *Slot)
	go func() {
		s, err := c.Acquire(context.Background())
		if err != nil {
			t.Errorf("queued Acquire failed: %v", err)
		}
		acquired <- s
	}()

	select {
	case <-acquired:
		t.Fatal("queued acquire should block while slot is held")
	case <-time.After(50 * time.Millisecond):
	}

	slot.Release()

	select {
	case s := <-acquired:
		s.Release()
	case <-time.After(time.Second):
		t.Fatal("queued acquire never woke up")
	}
}

func TestQueueIsFIFO(t *testing.T) {
	c := New(Config{Multi: false, OnBusy: Queue})

	first, err := c.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 1; i <= 3; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			s, err := c.Acquire(context.Background())
			if err != nil {
				t.Errorf("Acquire %d failed: %v", i, err)
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			s.Release()
		}()
		// Give each goroutine time to enqueue before the next.
		time.Sleep(20 * time.Millisecond)
	}

	first.Release()
	wg.Wait()

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("wake order = %v, want [1 2 3]", order)
	}
}

func TestQueuedAcquireCancellable(t *testing.T) {
	c := New(Config{Multi: false, OnBusy: Queue})

	slot, err := c.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer slot.Release()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Acquire(ctx)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled acquire never returned")
	}
}

func TestMultiModeUnbounded(t *testing.T) {
	c := New(Config{Multi: true})

	var slots []*Slot
	for i := 0; i < 10; i++ {
		s, err := c.Acquire(context.Background())
		if err != nil {
			t.Fatalf("Acquire %d failed: %v", i, err)
		}
		slots = append(slots, s)
	}

	if got := c.Active(); got != 10 {
		t.Errorf("Active = %d, want 10", got)
	}
	for _, s := range slots {
		s.Release()
	}
	if got := c.Active(); got != 0 {
		t.Errorf("Active after release = %d, want 0", got)
	}
}

func TestMultiModeBounded(t *testing.T) {
	c := New(Config{Multi: true, MaxSessions: 2, OnBusy: Reject})

	a, _ := c.Acquire(context.Background())
	b, _ := c.Acquire(context.Background())
	if _, err := c.Acquire(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("third acquire: got %v, want ErrBusy", err)
	}
	a.Release()
	b.Release()
}

func TestReleaseIdempotent(t *testing.T) {
	c := New(Config{Multi: false, OnBusy: Reject})

	slot, err := c.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	slot.Release()
	slot.Release()

	if got := c.Active(); got != 0 {
		t.Errorf("Active = %d after double release, want 0", got)
	}
}

func TestConcurrentChurn(t *testing.T) {
	c := New(Config{Multi: false, OnBusy: Queue})

	var peak int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := c.Acquire(context.Background())
			if err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			if n := atomic.AddInt32(&peak, 1); n > 1 {
				t.Errorf("%d slots held at once in single mode", n)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&peak, -1)
			s.Release()
		}()
	}
	wg.Wait()

	if got := c.Active(); got != 0 {
		t.Errorf("Active = %d after churn, want 0", got)
	}
}
