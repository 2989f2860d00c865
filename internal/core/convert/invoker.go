// Package convert wraps the external media converter behind a small
// capability interface so the actual download mechanism stays swappable.
//
// The external program contract, shared with the bundled converter script:
// it is invoked as `<program> [args...] <url> <format> <jobID>` and must emit
// exactly one JSON object line on stdout before exiting:
//
//	{"success": bool, "title": "...", "filename": "...", "error": "..."}
//
// Anything else the program prints is diagnostics and is never parsed.
package convert

import (
	"context"

	"github.com/montygracey/mediaconverter/internal/core/job"
)

// Request identifies one conversion to perform.
type Request struct {
	URL    string
	Source job.Source
	Format job.Format
	JobID  string
}

// Outcome is the converter's structured result. A false Success always comes
// with a non-empty Error; ArtifactRef is only meaningful on success.
type Outcome struct {
	Success     bool   `json:"success"`
	Title       string `json:"title"`
	ArtifactRef string `json:"filename"`
	Error       string `json:"error"`
}

// Invoker runs one external conversion per call, off the caller's path.
//
// Implementations must classify every external failure mode (crash, garbage
// output, timeout) into a failure Outcome rather than an error; the returned
// error is reserved for faults launching or supervising the process itself.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (Outcome, error)
}
