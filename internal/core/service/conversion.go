// Package service is the read-side gateway polling clients consume: status
// lookups, history, deletion and the artifact readiness/fetch pair.
package service

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/montygracey/mediaconverter/internal/core/artifact"
	"github.com/montygracey/mediaconverter/internal/core/dispatch"
	"github.com/montygracey/mediaconverter/internal/core/event"
	"github.com/montygracey/mediaconverter/internal/core/job"
)

type ConversionService struct {
	store      job.Store
	artifacts  *artifact.Dir
	dispatcher *dispatch.Dispatcher
	bus        event.Bus
}

func NewConversionService(store job.Store, artifacts *artifact.Dir, dispatcher *dispatch.Dispatcher, bus event.Bus) *ConversionService {
	return &ConversionService{
		store:      store,
		artifacts:  artifacts,
		dispatcher: dispatcher,
		bus:        bus,
	}
}

// Submit forwards to the dispatcher; the returned job is already persisted
// in the processing state and the response never waits on the converter.
func (s *ConversionService) Submit(ctx context.Context, req dispatch.SubmitRequest) (*job.Job, error) {
	return s.dispatcher.Submit(ctx, req)
}

// Status returns the current job projection for its owner.
func (s *ConversionService) Status(ctx context.Context, id, ownerID string) (*job.Job, error) {
	return s.store.Get(ctx, id, ownerID)
}

// List returns the owner's jobs, newest first.
func (s *ConversionService) List(ctx context.Context, ownerID string) ([]*job.Job, error) {
	return s.store.ListByOwner(ctx, ownerID)
}

// Delete removes the record and best-effort removes its artifact. A running
// conversion is not cancelled; its eventual outcome lands on a missing row
// and is discarded by the dispatcher.
func (s *ConversionService) Delete(ctx context.Context, id, ownerID string) error {
	j, err := s.store.Get(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id, ownerID); err != nil {
		return err
	}
	if j.ArtifactRef != "" {
		if err := s.artifacts.Remove(ctx, j.ArtifactRef); err != nil {
			log.Warn().Err(err).Str("job_id", id).Str("artifact", j.ArtifactRef).Msg("artifact cleanup failed")
		}
	}
	s.bus.Publish(ctx, event.Event{
		Type:    event.EventJobDeleted,
		Payload: event.JobEvent{JobID: id, OwnerID: ownerID},
	})
	return nil
}

// ArtifactReady reports whether the named artifact is actually present and
// fetchable. This is the authoritative gate before a download: completed
// status can be visible to a reader before the file write is.
func (s *ConversionService) ArtifactReady(ctx context.Context, ref string) (bool, error) {
	ok, err := s.artifacts.Exists(ctx, ref)
	if err != nil {
		return false, fmt.Errorf("readiness check: %w", err)
	}
	return ok, nil
}

// OpenArtifact streams a stored artifact. Idempotent; mutates nothing.
func (s *ConversionService) OpenArtifact(ctx context.Context, ref string) (*os.File, artifact.Metadata, error) {
	return s.artifacts.Open(ctx, ref)
}

// Counts returns the owner's job totals from the store.
func (s *ConversionService) Counts(ctx context.Context, ownerID string) (job.Counts, error) {
	return s.store.Counts(ctx, ownerID)
}
