package ports

import (
	"context"
	"time"
)

// TimeRange for metric queries
type TimeRange struct {
	Start time.Time
	End   time.Time
	Step  time.Duration // e.g., 1m, 5m, 1h
}

// DataPoint represents a single metric value at a point in time
type DataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// DeploymentMetrics aggregated server-side performance of a cluster deployment
type DeploymentMetrics struct {
	DeploymentName string  `json:"deployment_name"`
	Requests       int64   `json:"requests"`
	LatencyP50     float64 `json:"latency_p50_ms"`
	LatencyP99     float64 `json:"latency_p99_ms"`
	ErrorRate      float64 `json:"error_rate_percent"`
}

// PrometheusClient queries serving-side metrics from a Prometheus server
type PrometheusClient interface {
	QueryLatencyP50(ctx context.Context, deploymentName string, tr TimeRange) ([]DataPoint, error)
	QueryLatencyP99(ctx context.Context, deploymentName string, tr TimeRange) ([]DataPoint, error)
	QueryRequestRate(ctx context.Context, deploymentName string, tr TimeRange) ([]DataPoint, error)
	QueryErrorRate(ctx context.Context, deploymentName string, tr TimeRange) ([]DataPoint, error)
	QueryDeploymentMetrics(ctx context.Context, deploymentName string, tr TimeRange) (*DeploymentMetrics, error)

	// Health check
	IsAvailable() bool
}
