package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"serving-optimizer/internal/core/domain"
	"serving-optimizer/internal/testutil"
)

func instances(n int) []json.RawMessage {
	out := make([]json.RawMessage, n)
	for i := range out {
		out[i] = json.RawMessage(`[0.0, 1.0]`)
	}
	return out
}

func newBenchmarkFixture() (*BenchmarkService, *testutil.MockPredictionClient, *testutil.MockBenchmarkRepo, *testutil.RecordingMetrics) {
	client := new(testutil.MockPredictionClient)
	repo := new(testutil.MockBenchmarkRepo)
	metrics := testutil.NewRecordingMetrics()
	client.On("PredictURL", "mnist", int64(0)).Return("http://localhost:8501/v1/models/mnist:predict")
	return NewBenchmarkService(client, repo, metrics), client, repo, metrics
}

func TestBenchmarkService_Run(t *testing.T) {
	svc, client, repo, metrics := newBenchmarkFixture()
	resp := &domain.PredictResponse{Predictions: []json.RawMessage{
		json.RawMessage(`[0.1, 0.9]`),
		json.RawMessage(`[0.8, 0.2]`),
	}}
	client.On("Predict", mock.Anything, "mnist", int64(0), mock.AnythingOfType("*domain.PredictRequest")).Return(resp, nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.BenchmarkResult")).Return(nil)

	result, err := svc.Run(context.Background(), BenchmarkRequest{
		ModelName:   "mnist",
		Requests:    10,
		Warmup:      2,
		Instances:   instances(2),
		ClassLabels: []int64{1, 1},
	})
	require.NoError(t, err)

	client.AssertNumberOfCalls(t, "Predict", 12)
	assert.Equal(t, 10, result.Latency.Count)
	assert.Equal(t, 2, result.BatchSize)
	assert.Equal(t, "http://localhost:8501/v1/models/mnist:predict", result.Endpoint)
	require.NotNil(t, result.Accuracy)
	assert.InDelta(t, 0.5, *result.Accuracy, 1e-9)
	assert.LessOrEqual(t, result.Latency.Min, result.Latency.P50)
	assert.LessOrEqual(t, result.Latency.P50, result.Latency.P99)

	assert.Equal(t, 10, metrics.Requests)
	assert.Len(t, metrics.Benchmarks, 1)
	repo.AssertCalled(t, "Create", mock.Anything, result)
}

func TestBenchmarkService_Run_AbortsOnFailure(t *testing.T) {
	svc, client, repo, metrics := newBenchmarkFixture()
	ok := &domain.PredictResponse{Predictions: []json.RawMessage{json.RawMessage(`[1]`)}}
	client.On("Predict", mock.Anything, "mnist", int64(0), mock.Anything).Return(ok, nil).Times(3)
	client.On("Predict", mock.Anything, "mnist", int64(0), mock.Anything).Return(nil, domain.ErrPredictFailed).Once()

	_, err := svc.Run(context.Background(), BenchmarkRequest{ModelName: "mnist", Requests: 10, Instances: instances(1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPredictFailed)
	assert.Contains(t, err.Error(), "request 4 of 10")

	client.AssertNumberOfCalls(t, "Predict", 4)
	assert.Equal(t, 1, metrics.Failures)
	assert.Empty(t, metrics.Benchmarks)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestBenchmarkService_Run_WarmupFailure(t *testing.T) {
	svc, client, _, metrics := newBenchmarkFixture()
	client.On("Predict", mock.Anything, "mnist", int64(0), mock.Anything).Return(nil, domain.ErrPredictFailed)

	_, err := svc.Run(context.Background(), BenchmarkRequest{ModelName: "mnist", Requests: 5, Warmup: 1, Instances: instances(1)})
	assert.ErrorIs(t, err, domain.ErrPredictFailed)
	assert.Contains(t, err.Error(), "warmup")
	assert.Equal(t, 0, metrics.Requests)
}

func TestBenchmarkService_Run_Validation(t *testing.T) {
	svc, client, _, _ := newBenchmarkFixture()

	tests := []struct {
		name string
		req  BenchmarkRequest
		want error
	}{
		{"bad name", BenchmarkRequest{ModelName: "", Requests: 1, Instances: instances(1)}, domain.ErrInvalidModelName},
		{"zero requests", BenchmarkRequest{ModelName: "mnist", Instances: instances(1)}, domain.ErrInvalidRequestCount},
		{"negative warmup", BenchmarkRequest{ModelName: "mnist", Requests: 1, Warmup: -1, Instances: instances(1)}, domain.ErrInvalidRequestCount},
		{"negative rate", BenchmarkRequest{ModelName: "mnist", Requests: 1, Rate: -1, Instances: instances(1)}, domain.ErrInvalidRate},
		{"no instances", BenchmarkRequest{ModelName: "mnist", Requests: 1}, domain.ErrNoInstances},
		{"label mismatch", BenchmarkRequest{ModelName: "mnist", Requests: 1, Instances: instances(2), ClassLabels: []int64{1}}, domain.ErrLabelMismatch},
		{"negative version", BenchmarkRequest{ModelName: "mnist", Version: -1, Requests: 1, Instances: instances(1)}, domain.ErrInvalidVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Run(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	client.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBenchmarkService_Run_Cancelled(t *testing.T) {
	svc, client, _, _ := newBenchmarkFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Run(ctx, BenchmarkRequest{ModelName: "mnist", Requests: 3, Instances: instances(1)})
	assert.ErrorIs(t, err, context.Canceled)
	client.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBenchmarkService_Run_Paced(t *testing.T) {
	svc, client, repo, _ := newBenchmarkFixture()
	resp := &domain.PredictResponse{Predictions: []json.RawMessage{json.RawMessage(`[0.1, 0.9]`)}}
	client.On("Predict", mock.Anything, "mnist", int64(0), mock.Anything).Return(resp, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	result, err := svc.Run(context.Background(), BenchmarkRequest{
		ModelName: "mnist",
		Requests:  4,
		Rate:      100,
		Instances: instances(1),
	})
	require.NoError(t, err)

	// first request passes the limiter at once, the other three wait 10ms each
	assert.GreaterOrEqual(t, result.Elapsed, 25*time.Millisecond)
	assert.Equal(t, 4, result.Latency.Count)
}
