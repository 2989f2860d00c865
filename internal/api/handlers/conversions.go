package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/montygracey/mediaconverter/internal/api/middleware"
	"github.com/montygracey/mediaconverter/internal/core/dispatch"
	"github.com/montygracey/mediaconverter/internal/core/job"
	"github.com/montygracey/mediaconverter/internal/core/service"
)

type ConversionsHandler struct {
	svc *service.ConversionService
}

func NewConversionsHandler(svc *service.ConversionService) *ConversionsHandler {
	return &ConversionsHandler{svc: svc}
}

// --- Input types ---

type SubmitInput struct {
	Body struct {
		URL    string `json:"url" minLength:"1" doc:"Media URL to convert"`
		Source string `json:"source" enum:"youtube,soundcloud" doc:"Source platform"`
		Format string `json:"format" enum:"mp3" default:"mp3" doc:"Output format"`
	}
}

type ConversionIDInput struct {
	ID string `path:"id" doc:"Conversion ID"`
}

// --- DTO types ---

type ConversionDTO struct {
	ID          string    `json:"id" doc:"Conversion ID"`
	URL         string    `json:"url" doc:"Source URL"`
	Source      string    `json:"source" doc:"Source platform"`
	Format      string    `json:"format" doc:"Output format"`
	Status      string    `json:"status" doc:"processing, completed or failed"`
	Title       string    `json:"title" doc:"Media title (placeholder while processing)"`
	ArtifactRef string    `json:"artifact_ref,omitempty" doc:"Output filename, present once completed"`
	CreatedAt   time.Time `json:"created_at" doc:"Submission time"`
}

func newConversionDTO(j *job.Job) ConversionDTO {
	return ConversionDTO{
		ID:          j.ID,
		URL:         j.URL,
		Source:      string(j.Source),
		Format:      string(j.Format),
		Status:      string(j.Status),
		Title:       j.Title,
		ArtifactRef: j.ArtifactRef,
		CreatedAt:   j.CreatedAt,
	}
}

// --- Handlers ---

// Submit accepts the conversion and returns while it is still processing;
// clients poll Get until a terminal status shows up.
func (h *ConversionsHandler) Submit(ctx context.Context, input *SubmitInput) (*DataOutput[ConversionDTO], error) {
	ownerID := middleware.GetUserID(ctx)

	j, err := h.svc.Submit(ctx, dispatch.SubmitRequest{
		URL:     input.Body.URL,
		Source:  job.Source(input.Body.Source),
		Format:  job.Format(input.Body.Format),
		OwnerID: ownerID,
	})
	if err != nil {
		if errors.Is(err, dispatch.ErrInvalidRequest) {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		return nil, huma.Error500InternalServerError("failed to submit conversion")
	}

	return OK(newConversionDTO(j)), nil
}

func (h *ConversionsHandler) List(ctx context.Context, _ *EmptyInput) (*DataOutput[[]ConversionDTO], error) {
	ownerID := middleware.GetUserID(ctx)

	jobs, err := h.svc.List(ctx, ownerID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list conversions")
	}

	dtos := make([]ConversionDTO, 0, len(jobs))
	for _, j := range jobs {
		dtos = append(dtos, newConversionDTO(j))
	}
	return OK(dtos), nil
}

func (h *ConversionsHandler) Get(ctx context.Context, input *ConversionIDInput) (*DataOutput[ConversionDTO], error) {
	ownerID := middleware.GetUserID(ctx)

	j, err := h.svc.Status(ctx, input.ID, ownerID)
	if err != nil {
		return nil, huma.Error404NotFound("conversion not found")
	}
	return OK(newConversionDTO(j)), nil
}

func (h *ConversionsHandler) Delete(ctx context.Context, input *ConversionIDInput) (*MsgOutput, error) {
	ownerID := middleware.GetUserID(ctx)

	if err := h.svc.Delete(ctx, input.ID, ownerID); err != nil {
		if errors.Is(err, job.ErrNotFound) {
			return nil, huma.Error404NotFound("conversion not found")
		}
		return nil, huma.Error500InternalServerError("failed to delete conversion")
	}
	return Msg("conversion deleted"), nil
}
