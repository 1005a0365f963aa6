package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"serving-optimizer/internal/core/domain"
	ports "serving-optimizer/internal/core/ports/output"
)

// BenchmarkRequest describes a latency benchmark against the REST endpoint
type BenchmarkRequest struct {
	ModelName     string
	Version       int64 // 0 targets the latest loaded version
	Requests      int
	Warmup        int
	Rate          float64 // requests per second, 0 sends back to back
	SignatureName string
	OutputKey     string
	Instances     []json.RawMessage
	ClassLabels   []int64 // expected class per instance, enables accuracy
	PipelineRunID *uuid.UUID
	Labels        map[string]string
}

type BenchmarkService struct {
	client  ports.PredictionClient
	repo    ports.BenchmarkRepository
	metrics ports.MetricsRecorder
}

func NewBenchmarkService(
	client ports.PredictionClient,
	repo ports.BenchmarkRepository,
	metrics ports.MetricsRecorder,
) *BenchmarkService {
	return &BenchmarkService{client: client, repo: repo, metrics: metrics}
}

// Run issues the requests one after another and aborts on the first failure.
// There are no retries: a failed request invalidates the measurement.
func (s *BenchmarkService) Run(ctx context.Context, req BenchmarkRequest) (result *domain.BenchmarkResult, err error) {
	if err := validateBenchmark(req); err != nil {
		return nil, err
	}

	result, err = domain.NewBenchmarkResult(req.ModelName, req.Version, s.client.PredictURL(req.ModelName, req.Version))
	if err != nil {
		return nil, err
	}
	result.Requests = req.Requests
	result.BatchSize = len(req.Instances)
	result.PipelineRunID = req.PipelineRunID
	for k, v := range req.Labels {
		result.Labels[k] = v
	}

	ctx, span := tracer().Start(ctx, "benchmark.run", trace.WithAttributes(
		attribute.String("model", req.ModelName),
		attribute.Int("requests", req.Requests),
	))
	defer func() { endSpan(span, err) }()

	predict := &domain.PredictRequest{
		SignatureName: req.SignatureName,
		Instances:     req.Instances,
	}

	for i := 0; i < req.Warmup; i++ {
		if _, err := s.client.Predict(ctx, req.ModelName, req.Version, predict); err != nil {
			return nil, fmt.Errorf("warmup request %d: %w", i+1, err)
		}
	}

	var limiter *rate.Limiter
	if req.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(req.Rate), 1)
	}

	samples := make([]time.Duration, 0, req.Requests)
	var last *domain.PredictResponse
	start := time.Now()
	for i := 0; i < req.Requests; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		t0 := time.Now()
		resp, err := s.client.Predict(ctx, req.ModelName, req.Version, predict)
		d := time.Since(t0)
		if err != nil {
			s.metrics.ObserveRequest(req.ModelName, d, false)
			return nil, fmt.Errorf("request %d of %d: %w", i+1, req.Requests, err)
		}
		s.metrics.ObserveRequest(req.ModelName, d, true)
		samples = append(samples, d)
		last = resp
	}
	result.Elapsed = time.Since(start)
	result.Latency = domain.ComputeLatencyStats(samples)

	if len(req.ClassLabels) > 0 {
		acc, err := domain.Accuracy(last.Predictions, req.ClassLabels, req.OutputKey)
		if err != nil {
			return nil, fmt.Errorf("score predictions: %w", err)
		}
		result.Accuracy = &acc
	}

	if s.repo != nil {
		if err := s.repo.Create(ctx, result); err != nil {
			return nil, err
		}
	}
	s.metrics.ObserveBenchmark(result)

	fields := log.Fields{
		"model":      result.ModelName,
		"requests":   result.Requests,
		"mean":       result.Latency.Mean,
		"p50":        result.Latency.P50,
		"p99":        result.Latency.P99,
		"throughput": fmt.Sprintf("%.1f/s", result.Throughput()),
	}
	if result.Accuracy != nil {
		fields["accuracy"] = *result.Accuracy
	}
	log.WithFields(fields).Info("benchmark finished")

	return result, nil
}

func (s *BenchmarkService) Get(ctx context.Context, id uuid.UUID) (*domain.BenchmarkResult, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *BenchmarkService) List(ctx context.Context, filter ports.BenchmarkListFilter) ([]*domain.BenchmarkResult, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	return s.repo.List(ctx, filter)
}

func validateBenchmark(req BenchmarkRequest) error {
	if err := domain.ValidateModelName(req.ModelName); err != nil {
		return err
	}
	if req.Version < 0 {
		return domain.ErrInvalidVersion
	}
	if req.Requests <= 0 || req.Warmup < 0 {
		return domain.ErrInvalidRequestCount
	}
	if req.Rate < 0 {
		return domain.ErrInvalidRate
	}
	if len(req.Instances) == 0 {
		return domain.ErrNoInstances
	}
	if len(req.ClassLabels) > 0 && len(req.ClassLabels) != len(req.Instances) {
		return domain.ErrLabelMismatch
	}
	return nil
}
