// Package dispatch owns the conversion job lifecycle: it accepts a validated
// submission, persists the initial record, detaches the conversion from the
// caller and reconciles the converter's outcome into durable state exactly
// once. Every processing job reaches a terminal state, bounded by the
// per-job timeout.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/montygracey/mediaconverter/internal/core/convert"
	"github.com/montygracey/mediaconverter/internal/core/event"
	"github.com/montygracey/mediaconverter/internal/core/job"
)

const storeRetryDelay = 500 * time.Millisecond

type SubmitRequest struct {
	URL     string
	Source  job.Source
	Format  job.Format
	OwnerID string
}

type Dispatcher struct {
	store   job.Store
	invoker convert.Invoker
	bus     event.Bus
	sem     chan struct{}
	timeout time.Duration

	// detached from request contexts; cancelled only on Shutdown
	base   context.Context
	cancel context.CancelFunc

	wg       sync.WaitGroup
	inFlight atomic.Int64
}

type Options struct {
	MaxConcurrent int
	Timeout       time.Duration
}

func New(store job.Store, invoker convert.Invoker, bus event.Bus, opts Options) *Dispatcher {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	base, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		store:   store,
		invoker: invoker,
		bus:     bus,
		sem:     make(chan struct{}, opts.MaxConcurrent),
		timeout: opts.Timeout,
		base:    base,
		cancel:  cancel,
	}
}

// Submit validates the request, creates the job in the processing state and
// returns it immediately; the conversion itself runs on a detached worker.
// Validation failures are synchronous and never create a record.
func (d *Dispatcher) Submit(ctx context.Context, req SubmitRequest) (*job.Job, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	j := job.New(req.URL, req.Source, req.Format, req.OwnerID)
	if err := d.store.Create(ctx, j); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	d.bus.Publish(ctx, event.Event{
		Type: event.EventJobCreated,
		Payload: event.JobEvent{
			JobID:   j.ID,
			OwnerID: j.OwnerID,
			Source:  string(j.Source),
			URL:     j.URL,
		},
	})

	log.Info().Str("job_id", j.ID).Str("source", string(j.Source)).Str("url", j.URL).Msg("conversion accepted")

	d.wg.Add(1)
	d.inFlight.Add(1)
	go d.run(*j)

	return j, nil
}

// run executes one conversion on the detached context. It must not let any
// fault escape: whatever happens, the job ends up terminal.
func (d *Dispatcher) run(j job.Job) {
	defer d.wg.Done()
	defer d.inFlight.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("job_id", j.ID).Interface("panic", r).Msg("conversion worker panicked")
			d.reconcile(j, convert.Outcome{Success: false, Error: "internal conversion fault"})
		}
	}()

	// Bounded worker pool: submissions beyond the cap queue here instead of
	// spawning unbounded external processes.
	select {
	case d.sem <- struct{}{}:
		defer func() { <-d.sem }()
	case <-d.base.Done():
		d.reconcile(j, convert.Outcome{Success: false, Error: "service shutting down"})
		return
	}

	invCtx, cancel := context.WithTimeout(d.base, d.timeout)
	defer cancel()

	outcome, err := d.invoker.Invoke(invCtx, convert.Request{
		URL:    j.URL,
		Source: j.Source,
		Format: j.Format,
		JobID:  j.ID,
	})
	if err != nil {
		// Launch/supervision fault; resolved into job state, never raised.
		log.Error().Err(err).Str("job_id", j.ID).Msg("converter invocation failed")
		outcome = convert.Outcome{Success: false, Error: "conversion failed to start"}
	}

	d.reconcile(j, outcome)
}

// reconcile applies the guarded terminal write and publishes the matching
// event. Store errors are retried once (the write is idempotent); a missing
// row means the owner deleted the job mid-flight and the outcome is dropped.
func (d *Dispatcher) reconcile(j job.Job, outcome convert.Outcome) {
	status := job.StatusFailed
	title := outcome.Error
	artifactRef := ""
	if outcome.Success {
		status = job.StatusCompleted
		title = outcome.Title
		artifactRef = outcome.ArtifactRef
		if title == "" {
			title = "Untitled"
		}
	} else if title == "" {
		title = "Conversion failed"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := d.store.UpdateTerminal(ctx, j.ID, status, title, artifactRef)
	if err != nil && !errors.Is(err, job.ErrNotFound) && !errors.Is(err, job.ErrAlreadyTerminal) {
		time.Sleep(storeRetryDelay)
		err = d.store.UpdateTerminal(ctx, j.ID, status, title, artifactRef)
	}

	switch {
	case err == nil:
	case errors.Is(err, job.ErrNotFound):
		// Owner deleted the job while the converter was running; benign.
		log.Debug().Str("job_id", j.ID).Msg("job gone before terminal update, outcome discarded")
		d.bus.Publish(ctx, event.Event{
			Type:    event.EventJobDiscarded,
			Payload: event.JobEvent{JobID: j.ID, OwnerID: j.OwnerID},
		})
		return
	case errors.Is(err, job.ErrAlreadyTerminal):
		log.Debug().Str("job_id", j.ID).Msg("duplicate terminal update ignored")
		return
	default:
		log.Error().Err(err).Str("job_id", j.ID).Msg("terminal update failed, job state may lag")
		return
	}

	evType := event.EventJobCompleted
	if status == job.StatusFailed {
		evType = event.EventJobFailed
	}
	d.bus.Publish(ctx, event.Event{
		Type: evType,
		Payload: event.JobEvent{
			JobID:       j.ID,
			OwnerID:     j.OwnerID,
			Title:       title,
			ArtifactRef: artifactRef,
			Error:       outcome.Error,
		},
	})

	log.Info().Str("job_id", j.ID).Str("status", string(status)).Str("title", title).Msg("conversion finished")
}

// Shutdown stops accepting converter work and waits for in-flight workers
// to finish reconciling, up to ctx's deadline.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.cancel()
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InFlight reports the number of conversions not yet reconciled.
func (d *Dispatcher) InFlight() int64 { return d.inFlight.Load() }
