package ports

import (
	"time"

	"serving-optimizer/internal/core/domain"
)

// MetricsRecorder exports pipeline and benchmark measurements
type MetricsRecorder interface {
	ObserveStage(modelName string, stage domain.StageName, status domain.StageStatus, d time.Duration)
	ObserveRequest(modelName string, d time.Duration, success bool)
	ObserveBenchmark(result *domain.BenchmarkResult)
	ObserveArtifactSize(modelName string, kind domain.ArtifactKind, bytes int64)
}
