package testutil

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"serving-optimizer/internal/core/domain"
	ports "serving-optimizer/internal/core/ports/output"
)

// MockPipelineRunRepo is a mock of PipelineRunRepository.
type MockPipelineRunRepo struct {
	mock.Mock
}

func (m *MockPipelineRunRepo) Create(ctx context.Context, run *domain.PipelineRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockPipelineRunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PipelineRun), args.Error(1)
}

func (m *MockPipelineRunRepo) Update(ctx context.Context, run *domain.PipelineRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockPipelineRunRepo) List(ctx context.Context, filter ports.RunListFilter) ([]*domain.PipelineRun, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.PipelineRun), args.Int(1), args.Error(2)
}

// MockBenchmarkRepo is a mock of BenchmarkRepository.
type MockBenchmarkRepo struct {
	mock.Mock
}

func (m *MockBenchmarkRepo) Create(ctx context.Context, result *domain.BenchmarkResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockBenchmarkRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.BenchmarkResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BenchmarkResult), args.Error(1)
}

func (m *MockBenchmarkRepo) List(ctx context.Context, filter ports.BenchmarkListFilter) ([]*domain.BenchmarkResult, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.BenchmarkResult), args.Int(1), args.Error(2)
}
