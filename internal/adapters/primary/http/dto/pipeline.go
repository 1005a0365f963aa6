package dto

import (
	"time"

	"github.com/google/uuid"

	"serving-optimizer/internal/core/domain"
	"serving-optimizer/internal/core/services"
)

// ============================================================================
// Pipeline Run DTOs
// ============================================================================

type CreateRunRequest struct {
	ModelName     string            `json:"model_name" binding:"required,max=100"`
	Version       int64             `json:"version" binding:"min=0"`
	SavedModelDir string            `json:"saved_model_dir"`
	Publish       bool              `json:"publish"`
	Labels        map[string]string `json:"labels"`
}

func (r *CreateRunRequest) ToRunRequest() services.RunRequest {
	return services.RunRequest{
		ModelName:     r.ModelName,
		Version:       r.Version,
		SavedModelDir: r.SavedModelDir,
		Publish:       r.Publish,
		Labels:        r.Labels,
	}
}

type StageResponse struct {
	Name       domain.StageName   `json:"name"`
	Status     domain.StageStatus `json:"status"`
	Artifact   *domain.Artifact   `json:"artifact,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
	DurationMs float64            `json:"duration_ms"`
	Error      string             `json:"error,omitempty"`
}

type RunResponse struct {
	ID               uuid.UUID            `json:"id"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
	ModelName        string               `json:"model_name"`
	Version          int64                `json:"version"`
	Status           domain.RunStatus     `json:"status"`
	Stages           []StageResponse      `json:"stages"`
	FrozenSummary    *domain.GraphSummary `json:"frozen_summary,omitempty"`
	OptimizedSummary *domain.GraphSummary `json:"optimized_summary,omitempty"`
	SizeRatio        float64              `json:"size_ratio,omitempty"`
	PublishedURI     string               `json:"published_uri,omitempty"`
	LastError        string               `json:"last_error,omitempty"`
	Labels           map[string]string    `json:"labels"`
}

type ListRunsResponse struct {
	Items      []RunResponse `json:"items"`
	Total      int           `json:"total"`
	PageSize   int           `json:"page_size"`
	NextOffset int           `json:"next_offset"`
}

func ToRunResponse(run *domain.PipelineRun) RunResponse {
	stages := make([]StageResponse, 0, len(run.Stages))
	for _, s := range run.Stages {
		stages = append(stages, StageResponse{
			Name:       s.Name,
			Status:     s.Status,
			Artifact:   s.Artifact,
			StartedAt:  s.StartedAt,
			FinishedAt: s.FinishedAt,
			DurationMs: millis(s.Duration()),
			Error:      s.Error,
		})
	}
	return RunResponse{
		ID:               run.ID,
		CreatedAt:        run.CreatedAt,
		UpdatedAt:        run.UpdatedAt,
		ModelName:        run.ModelName,
		Version:          run.Version,
		Status:           run.Status,
		Stages:           stages,
		FrozenSummary:    run.FrozenSummary,
		OptimizedSummary: run.OptimizedSummary,
		SizeRatio:        run.SizeRatio(),
		PublishedURI:     run.PublishedURI,
		LastError:        run.LastError,
		Labels:           run.Labels,
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
