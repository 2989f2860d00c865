package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/montygracey/mediaconverter/internal/api/middleware"
	"github.com/montygracey/mediaconverter/internal/core/artifact"
	"github.com/montygracey/mediaconverter/internal/core/job"
	"github.com/montygracey/mediaconverter/internal/core/service"
	"github.com/montygracey/mediaconverter/internal/fileserver"
)

type FilesHandler struct {
	svc         *service.ConversionService
	signer      *fileserver.Signer
	linkExpiry  time.Duration
	fileBaseURL string
}

func NewFilesHandler(svc *service.ConversionService, signer *fileserver.Signer, linkExpiry time.Duration, fileBaseURL string) *FilesHandler {
	return &FilesHandler{
		svc:         svc,
		signer:      signer,
		linkExpiry:  linkExpiry,
		fileBaseURL: fileBaseURL,
	}
}

// --- Input / DTO types ---

type ReadyInput struct {
	Filename string `path:"filename" doc:"Artifact filename"`
}

type ReadyDTO struct {
	Exists bool `json:"exists" doc:"Whether the artifact is present and fetchable"`
}

type LinkDTO struct {
	URL       string    `json:"url" doc:"Download URL"`
	ExpiresAt time.Time `json:"expires_at" doc:"Link expiry time"`
}

// --- Handlers ---

// Ready probes artifact storage directly. Clients call this after observing
// a completed status and before downloading, so a status read that raced the
// file write never turns into a broken fetch.
func (h *FilesHandler) Ready(ctx context.Context, input *ReadyInput) (*DataOutput[ReadyDTO], error) {
	exists, err := h.svc.ArtifactReady(ctx, input.Filename)
	if err != nil {
		if errors.Is(err, artifact.ErrInvalidRef) {
			return nil, huma.Error422UnprocessableEntity("invalid filename")
		}
		return nil, huma.Error500InternalServerError("readiness check failed")
	}
	return OK(ReadyDTO{Exists: exists}), nil
}

// GenerateLink returns an expiring signed URL for a completed conversion's
// artifact. Ownership is checked here; the file server trusts the token.
func (h *FilesHandler) GenerateLink(ctx context.Context, input *ConversionIDInput) (*DataOutput[LinkDTO], error) {
	ownerID := middleware.GetUserID(ctx)

	j, err := h.svc.Status(ctx, input.ID, ownerID)
	if err != nil {
		return nil, huma.Error404NotFound("conversion not found")
	}
	if j.Status != job.StatusCompleted || j.ArtifactRef == "" {
		return nil, huma.Error409Conflict("conversion has no downloadable artifact")
	}

	ready, err := h.svc.ArtifactReady(ctx, j.ArtifactRef)
	if err != nil || !ready {
		return nil, huma.Error409Conflict("artifact is not ready yet")
	}

	expiry := time.Now().Add(h.linkExpiry)
	token := h.signer.Sign(j.ID, j.ArtifactRef, ownerID, expiry)

	return OK(LinkDTO{
		URL:       h.fileBaseURL + "/dl/" + token + "/" + j.ArtifactRef,
		ExpiresAt: expiry,
	}), nil
}
