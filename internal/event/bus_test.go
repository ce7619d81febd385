package event

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentfleet/conductor/pkg/types"
)

func TestBus_Subscribe(t *testing.T) {
	bus := NewBus()

	var received types.Event
	var wg sync.WaitGroup
	wg.Add(1)

	unsub := bus.Subscribe(types.EventSessionCreated, func(e types.Event) {
		received = e
		wg.Done()
	})
	defer unsub()

	bus.Publish(types.Event{Type: types.EventSessionCreated, Data: map[string]any{"name": "test-session"}})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if received.Type != types.EventSessionCreated {
			t.Errorf("expected EventSessionCreated, got %v", received.Type)
		}
		if received.Data["name"] != "test-session" {
			t.Errorf("expected 'test-session', got %v", received.Data["name"])
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()

	var count int32
	var wg sync.WaitGroup
	wg.Add(3)

	unsub := bus.SubscribeAll(func(e types.Event) {
		atomic.AddInt32(&count, 1)
		wg.Done()
	})
	defer unsub()

	bus.Publish(types.Event{Type: types.EventSessionCreated})
	bus.Publish(types.Event{Type: types.EventNodeCreated})
	bus.Publish(types.Event{Type: types.EventNodeDeleted})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if atomic.LoadInt32(&count) != 3 {
			t.Errorf("expected 3 events, got %d", count)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for events")
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	var count int32
	unsub := bus.Subscribe(types.EventSessionCreated, func(e types.Event) {
		atomic.AddInt32(&count, 1)
	})

	bus.PublishSync(types.Event{Type: types.EventSessionCreated})
	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("expected 1 event before unsub, got %d", count)
	}

	unsub()

	bus.PublishSync(types.Event{Type: types.EventSessionCreated})
	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("expected still 1 event after unsub, got %d", count)
	}
}

func TestBus_UnsubscribeGlobal(t *testing.T) {
	bus := NewBus()

	var count int32
	unsub := bus.SubscribeAll(func(e types.Event) {
		atomic.AddInt32(&count, 1)
	})

	bus.PublishSync(types.Event{Type: types.EventSessionCreated})
	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("expected 1 event before unsub, got %d", count)
	}

	unsub()

	bus.PublishSync(types.Event{Type: types.EventNodeCreated})
	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("expected still 1 event after unsub, got %d", count)
	}
}

func TestBus_PublishSync(t *testing.T) {
	bus := NewBus()

	var received []string
	var mu sync.Mutex

	bus.Subscribe(types.EventSessionCreated, func(e types.Event) {
		mu.Lock()
		received = append(received, e.Type)
		mu.Unlock()
	})
	bus.Subscribe(types.EventNodeBusy, func(e types.Event) {
		mu.Lock()
		received = append(received, e.Type)
		mu.Unlock()
	})

	bus.PublishSync(types.Event{Type: types.EventSessionCreated})
	bus.PublishSync(types.Event{Type: types.EventNodeBusy})

	mu.Lock()
	if len(received) != 2 {
		t.Errorf("expected 2 events, got %d", len(received))
	}
	mu.Unlock()
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := NewBus()

	var count int32
	var wg sync.WaitGroup
	wg.Add(3)

	for i := 0; i < 3; i++ {
		bus.Subscribe(types.EventSessionCreated, func(e types.Event) {
			atomic.AddInt32(&count, 1)
			wg.Done()
		})
	}

	bus.Publish(types.Event{Type: types.EventSessionCreated})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if atomic.LoadInt32(&count) != 3 {
			t.Errorf("expected 3 subscribers to receive event, got %d", count)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for events")
	}
}

func TestBus_NoSubscribers(t *testing.T) {
	bus := NewBus()

	bus.Publish(types.Event{Type: types.EventSessionCreated})
	bus.PublishSync(types.Event{Type: types.EventSessionCreated})
}

func TestBus_EventTypeFiltering(t *testing.T) {
	bus := NewBus()

	var sessionCount, nodeCount int32

	bus.Subscribe(types.EventSessionCreated, func(e types.Event) {
		atomic.AddInt32(&sessionCount, 1)
	})
	bus.Subscribe(types.EventNodeCreated, func(e types.Event) {
		atomic.AddInt32(&nodeCount, 1)
	})

	bus.PublishSync(types.Event{Type: types.EventSessionCreated})
	bus.PublishSync(types.Event{Type: types.EventSessionCreated})
	bus.PublishSync(types.Event{Type: types.EventNodeCreated})

	if atomic.LoadInt32(&sessionCount) != 2 {
		t.Errorf("expected 2 session events, got %d", sessionCount)
	}
	if atomic.LoadInt32(&nodeCount) != 1 {
		t.Errorf("expected 1 node event, got %d", nodeCount)
	}
}

func TestGlobalBus_Reset(t *testing.T) {
	var count int32
	Subscribe(types.EventSessionCreated, func(e types.Event) {
		atomic.AddInt32(&count, 1)
	})

	PublishSync(types.Event{Type: types.EventSessionCreated})
	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("expected 1 event before reset, got %d", count)
	}

	Reset()

	PublishSync(types.Event{Type: types.EventSessionCreated})
	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("expected still 1 event after reset, got %d", count)
	}
}

func TestBus_ConcurrentSubscribePublish(t *testing.T) {
	bus := NewBus()

	var count int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := bus.Subscribe(types.EventSessionCreated, func(e types.Event) {
				atomic.AddInt32(&count, 1)
			})
			defer unsub()

			for j := 0; j < 10; j++ {
				bus.Publish(types.Event{Type: types.EventSessionCreated})
			}
		}()
	}

	wg.Wait()
	time.Sleep(100 * time.Millisecond)

	if atomic.LoadInt32(&count) == 0 {
		t.Log("warning: no events received, but no panic occurred")
	}
}
