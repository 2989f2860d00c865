package job

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a conversion job.
// Transitions are monotonic: processing -> completed | failed, nothing after.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Source is the platform a conversion URL belongs to.
type Source string

const (
	SourceYouTube    Source = "youtube"
	SourceSoundCloud Source = "soundcloud"
)

// Format is the conversion output format.
type Format string

const FormatMP3 Format = "mp3"

var (
	ErrNotFound        = errors.New("job not found")
	ErrAlreadyTerminal = errors.New("job already in terminal state")
)

// Job is one submitted conversion request and its tracked lifecycle state.
// ID, URL, Source, Format, OwnerID and CreatedAt are immutable after creation;
// Status, Title and ArtifactRef are mutated exactly once by the dispatcher.
type Job struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Source      Source    `json:"source"`
	Format      Format    `json:"format"`
	Status      Status    `json:"status"`
	Title       string    `json:"title"`
	ArtifactRef string    `json:"artifact_ref,omitempty"`
	OwnerID     string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// New creates a fresh job in the processing state with a placeholder title.
func New(url string, source Source, format Format, ownerID string) *Job {
	return &Job{
		ID:        uuid.New().String(),
		URL:       url,
		Source:    source,
		Format:    format,
		Status:    StatusProcessing,
		Title:     "Processing...",
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC(),
	}
}

// Counts summarizes an owner's jobs by state.
type Counts struct {
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Total      int64 `json:"total"`
}

// Store is the durable record of every job; the single source of truth.
//
// All owner-scoped reads and deletes report cross-owner rows as ErrNotFound so
// job existence is never disclosed to another principal. UpdateTerminal is a
// guarded write: it applies only while the stored row is still processing and
// reports ErrAlreadyTerminal otherwise, which makes duplicate or late
// completion callbacks harmless.
type Store interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context, id, ownerID string) (*Job, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*Job, error)
	UpdateTerminal(ctx context.Context, id string, status Status, title, artifactRef string) error
	Delete(ctx context.Context, id, ownerID string) error
	Counts(ctx context.Context, ownerID string) (Counts, error)
}
