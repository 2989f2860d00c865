package event

import (
	"context"
	"sync/atomic"
)

// StatsCollector accumulates process-lifetime conversion counters from the bus.
// It is a read-mostly snapshot for the stats endpoint, not durable state.
type StatsCollector struct {
	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	discarded atomic.Int64
}

// NewStatsCollector subscribes a collector to the conversion lifecycle events.
func NewStatsCollector(bus Bus) *StatsCollector {
	c := &StatsCollector{}
	bus.Subscribe(EventJobCreated, func(_ context.Context, _ Event) error {
		c.submitted.Add(1)
		return nil
	})
	bus.Subscribe(EventJobCompleted, func(_ context.Context, _ Event) error {
		c.completed.Add(1)
		return nil
	})
	bus.Subscribe(EventJobFailed, func(_ context.Context, _ Event) error {
		c.failed.Add(1)
		return nil
	})
	bus.Subscribe(EventJobDiscarded, func(_ context.Context, _ Event) error {
		c.discarded.Add(1)
		return nil
	})
	return c
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Discarded int64 `json:"discarded"`
	InFlight  int64 `json:"in_flight"`
}

func (c *StatsCollector) Snapshot() Snapshot {
	s := Snapshot{
		Submitted: c.submitted.Load(),
		Completed: c.completed.Load(),
		Failed:    c.failed.Load(),
		Discarded: c.discarded.Load(),
	}
	// Every submission ends as exactly one of completed, failed or discarded,
	// so the remainder is still in flight.
	s.InFlight = s.Submitted - s.Completed - s.Failed - s.Discarded
	return s
}
