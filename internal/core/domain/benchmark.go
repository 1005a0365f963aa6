package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// PredictRequest is the REST predict body of the model server
type PredictRequest struct {
	SignatureName string            `json:"signature_name,omitempty"`
	Instances     []json.RawMessage `json:"instances"`
}

// PredictResponse is the REST predict reply of the model server
type PredictResponse struct {
	Predictions []json.RawMessage `json:"predictions"`
}

// LatencyStats summarises per-request wall-clock latencies
type LatencyStats struct {
	Count int           `json:"count"`
	Total time.Duration `json:"total_ns"`
	Mean  time.Duration `json:"mean_ns"`
	Min   time.Duration `json:"min_ns"`
	Max   time.Duration `json:"max_ns"`
	P50   time.Duration `json:"p50_ns"`
	P95   time.Duration `json:"p95_ns"`
	P99   time.Duration `json:"p99_ns"`
}

// ComputeLatencyStats uses nearest-rank percentiles over the sorted samples.
func ComputeLatencyStats(samples []time.Duration) LatencyStats {
	if len(samples) == 0 {
		return LatencyStats{}
	}

	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, s := range sorted {
		total += s
	}

	return LatencyStats{
		Count: len(sorted),
		Total: total,
		Mean:  total / time.Duration(len(sorted)),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		P50:   percentile(sorted, 50),
		P95:   percentile(sorted, 95),
		P99:   percentile(sorted, 99),
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

// BenchmarkResult is one latency measurement against a serving endpoint
type BenchmarkResult struct {
	ID            uuid.UUID         `json:"id"`
	CreatedAt     time.Time         `json:"created_at"`
	ModelName     string            `json:"model_name"`
	Version       int64             `json:"version,omitempty"`
	Endpoint      string            `json:"endpoint"`
	Requests      int               `json:"requests"`
	BatchSize     int               `json:"batch_size"`
	Elapsed       time.Duration     `json:"elapsed_ns"`
	Latency       LatencyStats      `json:"latency"`
	Accuracy      *float64          `json:"accuracy,omitempty"`
	PipelineRunID *uuid.UUID        `json:"pipeline_run_id,omitempty"`
	Labels        map[string]string `json:"labels"`
}

// NewBenchmarkResult creates a new BenchmarkResult with validation
func NewBenchmarkResult(modelName string, version int64, endpoint string) (*BenchmarkResult, error) {
	if err := ValidateModelName(modelName); err != nil {
		return nil, err
	}
	if version < 0 {
		return nil, ErrInvalidVersion
	}
	return &BenchmarkResult{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		ModelName: modelName,
		Version:   version,
		Endpoint:  endpoint,
		Labels:    make(map[string]string),
	}, nil
}

// Throughput is requests per second over the measured wall-clock time
func (b *BenchmarkResult) Throughput() float64 {
	if b.Elapsed <= 0 {
		return 0
	}
	return float64(b.Requests) / b.Elapsed.Seconds()
}

// InstanceSet is the input file of a benchmark: the instances of one predict
// request and, optionally, the expected class of each instance.
type InstanceSet struct {
	Instances []json.RawMessage `json:"instances"`
	Labels    []int64           `json:"labels,omitempty"`
}

// ParseInstanceSet decodes and validates an instance file.
func ParseInstanceSet(data []byte) (*InstanceSet, error) {
	var set InstanceSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("decode instances: %w", err)
	}
	if len(set.Instances) == 0 {
		return nil, ErrNoInstances
	}
	if len(set.Labels) > 0 && len(set.Labels) != len(set.Instances) {
		return nil, ErrLabelMismatch
	}
	return &set, nil
}
