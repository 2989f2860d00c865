package event

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestBusDeliversToMatchingSubscribers(t *testing.T) {
	bus := NewBus()
	var got []Event
	bus.Subscribe(EventJobCompleted, func(_ context.Context, e Event) error {
		got = append(got, e)
		return nil
	})
	bus.Subscribe(EventJobFailed, func(_ context.Context, e Event) error {
		t.Errorf("failed handler saw %s event", e.Type)
		return nil
	})

	err := bus.Publish(context.Background(), Event{
		Type:    EventJobCompleted,
		Payload: JobEvent{JobID: "j1", Title: "done"},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("delivered %d events", len(got))
	}
	if got[0].Timestamp.IsZero() {
		t.Errorf("timestamp not stamped")
	}
	if got[0].Payload.JobID != "j1" || got[0].Payload.Title != "done" {
		t.Errorf("payload = %+v", got[0].Payload)
	}
}

func TestBusHandlerErrorDoesNotStopDelivery(t *testing.T) {
	bus := NewBus()
	var second bool
	bus.Subscribe(EventJobCreated, func(context.Context, Event) error {
		return errors.New("handler broke")
	})
	bus.Subscribe(EventJobCreated, func(context.Context, Event) error {
		second = true
		return nil
	})

	if err := bus.Publish(context.Background(), Event{Type: EventJobCreated}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !second {
		t.Fatalf("second handler skipped after first errored")
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	var calls int
	unsub := bus.Subscribe(EventJobCreated, func(context.Context, Event) error {
		calls++
		return nil
	})

	bus.Publish(context.Background(), Event{Type: EventJobCreated})
	unsub()
	bus.Publish(context.Background(), Event{Type: EventJobCreated})

	if calls != 1 {
		t.Fatalf("handler called %d times after unsubscribe", calls)
	}
}

func TestBusConcurrentPublish(t *testing.T) {
	bus := NewBus()
	c := NewStatsCollector(bus)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Publish(context.Background(), Event{Type: EventJobCreated})
			}
		}()
	}
	wg.Wait()

	if got := c.Snapshot().Submitted; got != 1000 {
		t.Fatalf("submitted = %d", got)
	}
}

func TestStatsSnapshot(t *testing.T) {
	bus := NewBus()
	c := NewStatsCollector(bus)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		bus.Publish(ctx, Event{Type: EventJobCreated})
	}
	for i := 0; i < 2; i++ {
		bus.Publish(ctx, Event{Type: EventJobCompleted})
	}
	bus.Publish(ctx, Event{Type: EventJobFailed})
	bus.Publish(ctx, Event{Type: EventJobDiscarded})

	s := c.Snapshot()
	if s.Submitted != 5 || s.Completed != 2 || s.Failed != 1 || s.Discarded != 1 {
		t.Fatalf("snapshot = %+v", s)
	}
	// A discarded outcome is terminal for accounting: it must not leave a
	// phantom in-flight entry behind.
	if s.InFlight != 1 {
		t.Fatalf("in-flight = %d, want 1", s.InFlight)
	}
}
