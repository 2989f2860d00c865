package event

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Handler consumes one lifecycle event. Handler errors are logged and
// dropped: a broken subscriber must never affect the conversion that
// emitted the event.
type Handler func(ctx context.Context, ev Event) error

// Bus fans conversion lifecycle events out to in-process subscribers.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(t EventType, h Handler) (unsubscribe func())
}

// NewBus returns a synchronous in-process bus. Handlers run on the
// publisher's goroutine, in subscription order.
func NewBus() Bus {
	return &memoryBus{handlers: make(map[EventType][]registration)}
}

type registration struct {
	token   uint64
	handler Handler
}

type memoryBus struct {
	mu        sync.RWMutex
	handlers  map[EventType][]registration
	lastToken uint64
}

func (b *memoryBus) Publish(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	// Snapshot under the read lock so a handler can unsubscribe itself
	// (or anything else) mid-delivery without deadlocking.
	b.mu.RLock()
	regs := append([]registration(nil), b.handlers[ev.Type]...)
	b.mu.RUnlock()

	for _, r := range regs {
		if err := r.handler(ctx, ev); err != nil {
			log.Error().Err(err).
				Str("event", string(ev.Type)).
				Str("job_id", ev.Payload.JobID).
				Msg("event handler error")
		}
	}
	return nil
}

func (b *memoryBus) Subscribe(t EventType, h Handler) func() {
	b.mu.Lock()
	b.lastToken++
	token := b.lastToken
	b.handlers[t] = append(b.handlers[t], registration{token: token, handler: h})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		regs := b.handlers[t]
		for i, r := range regs {
			if r.token == token {
				b.handlers[t] = append(regs[:i], regs[i+1:]...)
				return
			}
		}
	}
}
