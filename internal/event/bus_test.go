package event

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBusSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var received Event
	var wg sync.WaitGroup
	wg.Add(1)

	unsub := bus.Subscribe(SessionOpened, func(e Event) {
		received = e
		wg.Done()
	})
	defer unsub()

	bus.Publish(Event{Type: SessionOpened, Data: "test-session"})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if received.Type != SessionOpened {
			t.Errorf("expected SessionOpened, got %v", received.Type)
		}
		if received.Data != "test-session" {
			t.Errorf("expected 'test-session', got %v", received.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBusSubscribeAll(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count int32
	var wg sync.WaitGroup
	wg.Add(3)

	unsub := bus.SubscribeAll(func(e Event) {
		atomic.AddInt32(&count, 1)
		wg.Done()
	})
	defer unsub()

	bus.Publish(Event{Type: SessionOpened})
	bus.Publish(Event{Type: SessionSynced})
	bus.Publish(Event{Type: SessionClosed})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if got := atomic.LoadInt32(&count); got != 3 {
			t.Errorf("expected 3 events, got %d", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for events")
	}
}

func TestBusPublishSync(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var order []Type
	bus.Subscribe(SessionClosed, func(e Event) {
		order = append(order, e.Type)
	})

	bus.PublishSync(Event{Type: SessionClosed})
	bus.PublishSync(Event{Type: SessionClosed})

	if len(order) != 2 {
		t.Fatalf("expected synchronous delivery of 2 events, got %d", len(order))
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count int32
	unsub := bus.Subscribe(SessionSynced, func(e Event) {
		atomic.AddInt32(&count, 1)
	})

	bus.PublishSync(Event{Type: SessionSynced})
	unsub()
	bus.PublishSync(Event{Type: SessionSynced})

	if got := atomic.LoadInt32(&count); got != 1 {
		t.Errorf("expected 1 delivery after unsubscribe, got %d", got)
	}
}

func TestBusClosedDropsPublishes(t *testing.T) {
	bus := NewBus()

	var count int32
	bus.Subscribe(SessionOpened, func(e Event) {
		atomic.AddInt32(&count, 1)
	})

	if err := bus.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	bus.PublishSync(Event{Type: SessionOpened})
	if got := atomic.LoadInt32(&count); got != 0 {
		t.Errorf("expected no deliveries after close, got %d", got)
	}
}
