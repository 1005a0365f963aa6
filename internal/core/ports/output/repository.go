package ports

import (
	"context"

	"github.com/google/uuid"

	"serving-optimizer/internal/core/domain"
)

type RunListFilter struct {
	ModelName string
	Status    string
	Limit     int
	Offset    int
}

type BenchmarkListFilter struct {
	ModelName string
	Limit     int
	Offset    int
}

type PipelineRunRepository interface {
	Create(ctx context.Context, run *domain.PipelineRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error)
	Update(ctx context.Context, run *domain.PipelineRun) error
	List(ctx context.Context, filter RunListFilter) ([]*domain.PipelineRun, int, error)
}

type BenchmarkRepository interface {
	Create(ctx context.Context, result *domain.BenchmarkResult) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BenchmarkResult, error)
	List(ctx context.Context, filter BenchmarkListFilter) ([]*domain.BenchmarkResult, int, error)
}
