package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/montygracey/mediaconverter/internal/api/middleware"
	"github.com/montygracey/mediaconverter/internal/core/event"
	"github.com/montygracey/mediaconverter/internal/core/job"
	"github.com/montygracey/mediaconverter/internal/core/service"
)

type StatsHandler struct {
	svc       *service.ConversionService
	collector *event.StatsCollector
}

func NewStatsHandler(svc *service.ConversionService, collector *event.StatsCollector) *StatsHandler {
	return &StatsHandler{svc: svc, collector: collector}
}

type StatsDTO struct {
	User    job.Counts     `json:"user" doc:"Caller's conversion totals"`
	Process event.Snapshot `json:"process" doc:"Process-lifetime counters"`
}

func (h *StatsHandler) Get(ctx context.Context, _ *EmptyInput) (*DataOutput[StatsDTO], error) {
	userID := middleware.GetUserID(ctx)

	counts, err := h.svc.Counts(ctx, userID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load stats")
	}

	return OK(StatsDTO{
		User:    counts,
		Process: h.collector.Snapshot(),
	}), nil
}
