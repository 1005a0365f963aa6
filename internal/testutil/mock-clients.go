package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"serving-optimizer/internal/core/domain"
	ports "serving-optimizer/internal/core/ports/output"
)

// MockCommandRunner is a mock of CommandRunner.
type MockCommandRunner struct {
	mock.Mock
}

func (m *MockCommandRunner) Run(ctx context.Context, inv ports.ToolInvocation) (*ports.ToolOutput, error) {
	args := m.Called(ctx, inv)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.ToolOutput), args.Error(1)
}

// MockGraphToolchain is a mock of GraphToolchain.
type MockGraphToolchain struct {
	mock.Mock
}

func (m *MockGraphToolchain) Export(ctx context.Context, modelName, exportDir string) error {
	return m.Called(ctx, modelName, exportDir).Error(0)
}

func (m *MockGraphToolchain) Freeze(ctx context.Context, savedModelDir, outputFile string) error {
	return m.Called(ctx, savedModelDir, outputFile).Error(0)
}

func (m *MockGraphToolchain) Optimize(ctx context.Context, inGraph, outGraph string) error {
	return m.Called(ctx, inGraph, outGraph).Error(0)
}

func (m *MockGraphToolchain) Summarize(ctx context.Context, graphFile string) (*domain.GraphSummary, error) {
	args := m.Called(ctx, graphFile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GraphSummary), args.Error(1)
}

func (m *MockGraphToolchain) Reexport(ctx context.Context, graphFile, exportDir string) error {
	return m.Called(ctx, graphFile, exportDir).Error(0)
}

func (m *MockGraphToolchain) CanSummarize() bool {
	return m.Called().Bool(0)
}

// MockPredictionClient is a mock of PredictionClient.
type MockPredictionClient struct {
	mock.Mock
}

func (m *MockPredictionClient) Predict(ctx context.Context, modelName string, version int64, req *domain.PredictRequest) (*domain.PredictResponse, error) {
	args := m.Called(ctx, modelName, version, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PredictResponse), args.Error(1)
}

func (m *MockPredictionClient) ModelStatus(ctx context.Context, modelName string) ([]ports.ModelVersionStatus, error) {
	args := m.Called(ctx, modelName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.ModelVersionStatus), args.Error(1)
}

func (m *MockPredictionClient) PredictURL(modelName string, version int64) string {
	return m.Called(modelName, version).String(0)
}

// MockServerProcess is a mock of ServerProcess.
type MockServerProcess struct {
	mock.Mock
}

func (m *MockServerProcess) Start(ctx context.Context, opts ports.ServerOptions) error {
	return m.Called(ctx, opts).Error(0)
}

func (m *MockServerProcess) Stop(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockServerProcess) Running() bool {
	return m.Called().Bool(0)
}

// MockKServeClient is a mock of KServeClient.
type MockKServeClient struct {
	mock.Mock
}

func (m *MockKServeClient) Deploy(ctx context.Context, deployment *domain.Deployment) (*ports.KServeDeployment, error) {
	args := m.Called(ctx, deployment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.KServeDeployment), args.Error(1)
}

func (m *MockKServeClient) Undeploy(ctx context.Context, namespace, name string) error {
	return m.Called(ctx, namespace, name).Error(0)
}

func (m *MockKServeClient) GetStatus(ctx context.Context, namespace, name string) (*ports.KServeStatus, error) {
	args := m.Called(ctx, namespace, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.KServeStatus), args.Error(1)
}

func (m *MockKServeClient) IsAvailable() bool {
	return m.Called().Bool(0)
}

// MockPublisher is a mock of ArtifactPublisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, localDir, modelName string, version int64) (string, error) {
	args := m.Called(ctx, localDir, modelName, version)
	return args.String(0), args.Error(1)
}

func (m *MockPublisher) BaseURI(modelName string) string {
	return m.Called(modelName).String(0)
}

func (m *MockPublisher) IsAvailable() bool {
	return m.Called().Bool(0)
}

// MockPrometheusClient is a mock of PrometheusClient.
type MockPrometheusClient struct {
	mock.Mock
}

func (m *MockPrometheusClient) points(args mock.Arguments) ([]ports.DataPoint, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.DataPoint), args.Error(1)
}

func (m *MockPrometheusClient) QueryLatencyP50(ctx context.Context, name string, tr ports.TimeRange) ([]ports.DataPoint, error) {
	return m.points(m.Called(ctx, name, tr))
}

func (m *MockPrometheusClient) QueryLatencyP99(ctx context.Context, name string, tr ports.TimeRange) ([]ports.DataPoint, error) {
	return m.points(m.Called(ctx, name, tr))
}

func (m *MockPrometheusClient) QueryRequestRate(ctx context.Context, name string, tr ports.TimeRange) ([]ports.DataPoint, error) {
	return m.points(m.Called(ctx, name, tr))
}

func (m *MockPrometheusClient) QueryErrorRate(ctx context.Context, name string, tr ports.TimeRange) ([]ports.DataPoint, error) {
	return m.points(m.Called(ctx, name, tr))
}

func (m *MockPrometheusClient) QueryDeploymentMetrics(ctx context.Context, name string, tr ports.TimeRange) (*ports.DeploymentMetrics, error) {
	args := m.Called(ctx, name, tr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.DeploymentMetrics), args.Error(1)
}

func (m *MockPrometheusClient) IsAvailable() bool {
	return m.Called().Bool(0)
}

// RecordingMetrics is a MetricsRecorder that keeps what it was given.
type RecordingMetrics struct {
	mu         sync.Mutex
	Stages     map[domain.StageName]domain.StageStatus
	Requests   int
	Failures   int
	Benchmarks []*domain.BenchmarkResult
	Sizes      map[domain.ArtifactKind]int64
}

func NewRecordingMetrics() *RecordingMetrics {
	return &RecordingMetrics{
		Stages: make(map[domain.StageName]domain.StageStatus),
		Sizes:  make(map[domain.ArtifactKind]int64),
	}
}

func (r *RecordingMetrics) ObserveStage(_ string, stage domain.StageName, status domain.StageStatus, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Stages[stage] = status
}

func (r *RecordingMetrics) ObserveRequest(_ string, _ time.Duration, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Requests++
	if !success {
		r.Failures++
	}
}

func (r *RecordingMetrics) ObserveBenchmark(result *domain.BenchmarkResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Benchmarks = append(r.Benchmarks, result)
}

func (r *RecordingMetrics) ObserveArtifactSize(_ string, kind domain.ArtifactKind, bytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sizes[kind] = bytes
}
