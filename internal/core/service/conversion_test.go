package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/montygracey/mediaconverter/internal/core/artifact"
	"github.com/montygracey/mediaconverter/internal/core/convert"
	"github.com/montygracey/mediaconverter/internal/core/dispatch"
	"github.com/montygracey/mediaconverter/internal/core/event"
	"github.com/montygracey/mediaconverter/internal/core/job"
)

type fixedInvoker struct {
	outcome convert.Outcome
}

func (f fixedInvoker) Invoke(context.Context, convert.Request) (convert.Outcome, error) {
	return f.outcome, nil
}

type fixture struct {
	svc   *ConversionService
	store job.Store
	dir   *artifact.Dir
	disp  *dispatch.Dispatcher
	bus   event.Bus
}

func newFixture(t *testing.T, inv convert.Invoker) *fixture {
	t.Helper()
	store := job.NewMemoryStore()
	dir, err := artifact.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("artifact dir: %v", err)
	}
	bus := event.NewBus()
	disp := dispatch.New(store, inv, bus, dispatch.Options{})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		disp.Shutdown(ctx)
	})
	return &fixture{
		svc:   NewConversionService(store, dir, disp, bus),
		store: store,
		dir:   dir,
		disp:  disp,
		bus:   bus,
	}
}

func submitAndWait(t *testing.T, fx *fixture, ownerID string) *job.Job {
	t.Helper()
	ctx := context.Background()
	j, err := fx.svc.Submit(ctx, dispatch.SubmitRequest{
		URL:     "https://youtu.be/dQw4w9WgXcQ",
		Source:  job.SourceYouTube,
		Format:  job.FormatMP3,
		OwnerID: ownerID,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, err := fx.store.Get(ctx, j.ID, ownerID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status.Terminal() {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job never terminal")
	return nil
}

func TestStatusScopedToOwner(t *testing.T) {
	fx := newFixture(t, fixedInvoker{convert.Outcome{Success: false, Error: "nope"}})
	j := submitAndWait(t, fx, "owner-a")

	if _, err := fx.svc.Status(context.Background(), j.ID, "owner-b"); !errors.Is(err, job.ErrNotFound) {
		t.Fatalf("cross-owner status: %v", err)
	}
	got, err := fx.svc.Status(context.Background(), j.ID, "owner-a")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if got.Status != job.StatusFailed {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestArtifactReadyIndependentOfStatus(t *testing.T) {
	fx := newFixture(t, fixedInvoker{})
	store := fx.store

	// Terminal record claims an artifact that is not on disk yet.
	j := job.New("https://youtu.be/x", job.SourceYouTube, job.FormatMP3, "owner-a")
	if err := store.Create(context.Background(), j); err != nil {
		t.Fatalf("create: %v", err)
	}
	ref := j.ID + ".mp3"
	if err := store.UpdateTerminal(context.Background(), j.ID, job.StatusCompleted, "Song", ref); err != nil {
		t.Fatalf("terminal: %v", err)
	}

	ready, err := fx.svc.ArtifactReady(context.Background(), ref)
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	if ready {
		t.Fatalf("artifact reported ready before the file exists")
	}

	if err := os.WriteFile(filepath.Join(fx.dir.BasePath(), ref), []byte("audio"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	ready, err = fx.svc.ArtifactReady(context.Background(), ref)
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	if !ready {
		t.Fatalf("artifact not ready after the file landed")
	}
}

func TestDeleteRemovesRecordAndArtifact(t *testing.T) {
	fx := newFixture(t, fixedInvoker{})
	ctx := context.Background()

	j := job.New("https://youtu.be/x", job.SourceYouTube, job.FormatMP3, "owner-a")
	if err := fx.store.Create(ctx, j); err != nil {
		t.Fatalf("create: %v", err)
	}
	ref := j.ID + ".mp3"
	if err := fx.store.UpdateTerminal(ctx, j.ID, job.StatusCompleted, "Song", ref); err != nil {
		t.Fatalf("terminal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(fx.dir.BasePath(), ref), []byte("audio"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	if err := fx.svc.Delete(ctx, j.ID, "owner-a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := fx.svc.Status(ctx, j.ID, "owner-a"); !errors.Is(err, job.ErrNotFound) {
		t.Fatalf("record survived delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(fx.dir.BasePath(), ref)); !os.IsNotExist(err) {
		t.Fatalf("artifact survived delete: %v", err)
	}
}

func TestDeleteMissingJob(t *testing.T) {
	fx := newFixture(t, fixedInvoker{})
	err := fx.svc.Delete(context.Background(), "nope", "owner-a")
	if !errors.Is(err, job.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenArtifactStreams(t *testing.T) {
	fx := newFixture(t, fixedInvoker{})
	if err := os.WriteFile(filepath.Join(fx.dir.BasePath(), "j.mp3"), []byte("abc"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	f, meta, err := fx.svc.OpenArtifact(context.Background(), "j.mp3")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	f.Close()
	if meta.Size != 3 {
		t.Fatalf("size = %d", meta.Size)
	}
}
