package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"serving-optimizer/internal/config"
	"serving-optimizer/internal/core/domain"
	"serving-optimizer/internal/core/services"
)

// ============================================================================
// Benchmark DTOs
// ============================================================================

type CreateBenchmarkRequest struct {
	ModelName     string            `json:"model_name" binding:"required,max=100"`
	Version       int64             `json:"version" binding:"min=0"`
	Requests      int               `json:"requests" binding:"min=0"`
	Warmup        *int              `json:"warmup" binding:"omitempty,min=0"`
	Rate          *float64          `json:"rate" binding:"omitempty,min=0"`
	SignatureName string            `json:"signature_name"`
	OutputKey     string            `json:"output_key"`
	Instances     []json.RawMessage `json:"instances" binding:"required,min=1"`
	ClassLabels   []int64           `json:"class_labels"`
	PipelineRunID *uuid.UUID        `json:"pipeline_run_id"`
	Labels        map[string]string `json:"labels"`
}

// ToBenchmarkRequest fills unset knobs from the configured defaults.
func (r *CreateBenchmarkRequest) ToBenchmarkRequest(defaults config.BenchmarkConfig) services.BenchmarkRequest {
	req := services.BenchmarkRequest{
		ModelName:     r.ModelName,
		Version:       r.Version,
		Requests:      r.Requests,
		Warmup:        defaults.Warmup,
		Rate:          defaults.Rate,
		SignatureName: r.SignatureName,
		OutputKey:     r.OutputKey,
		Instances:     r.Instances,
		ClassLabels:   r.ClassLabels,
		PipelineRunID: r.PipelineRunID,
		Labels:        r.Labels,
	}
	if req.Requests == 0 {
		req.Requests = defaults.Requests
	}
	if r.Warmup != nil {
		req.Warmup = *r.Warmup
	}
	if r.Rate != nil {
		req.Rate = *r.Rate
	}
	if req.SignatureName == "" {
		req.SignatureName = defaults.SignatureName
	}
	if req.OutputKey == "" {
		req.OutputKey = defaults.OutputKey
	}
	return req
}

type LatencyResponse struct {
	Count  int     `json:"count"`
	MeanMs float64 `json:"mean_ms"`
	MinMs  float64 `json:"min_ms"`
	MaxMs  float64 `json:"max_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

type BenchmarkResponse struct {
	ID            uuid.UUID         `json:"id"`
	CreatedAt     time.Time         `json:"created_at"`
	ModelName     string            `json:"model_name"`
	Version       int64             `json:"version,omitempty"`
	Endpoint      string            `json:"endpoint"`
	Requests      int               `json:"requests"`
	BatchSize     int               `json:"batch_size"`
	ElapsedMs     float64           `json:"elapsed_ms"`
	ThroughputRPS float64           `json:"throughput_rps"`
	Latency       LatencyResponse   `json:"latency"`
	Accuracy      *float64          `json:"accuracy,omitempty"`
	PipelineRunID *uuid.UUID        `json:"pipeline_run_id,omitempty"`
	Labels        map[string]string `json:"labels"`
}

type ListBenchmarksResponse struct {
	Items      []BenchmarkResponse `json:"items"`
	Total      int                 `json:"total"`
	PageSize   int                 `json:"page_size"`
	NextOffset int                 `json:"next_offset"`
}

func ToBenchmarkResponse(b *domain.BenchmarkResult) BenchmarkResponse {
	return BenchmarkResponse{
		ID:            b.ID,
		CreatedAt:     b.CreatedAt,
		ModelName:     b.ModelName,
		Version:       b.Version,
		Endpoint:      b.Endpoint,
		Requests:      b.Requests,
		BatchSize:     b.BatchSize,
		ElapsedMs:     millis(b.Elapsed),
		ThroughputRPS: b.Throughput(),
		Latency: LatencyResponse{
			Count:  b.Latency.Count,
			MeanMs: millis(b.Latency.Mean),
			MinMs:  millis(b.Latency.Min),
			MaxMs:  millis(b.Latency.Max),
			P50Ms:  millis(b.Latency.P50),
			P95Ms:  millis(b.Latency.P95),
			P99Ms:  millis(b.Latency.P99),
		},
		Accuracy:      b.Accuracy,
		PipelineRunID: b.PipelineRunID,
		Labels:        b.Labels,
	}
}
