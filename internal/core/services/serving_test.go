package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"serving-optimizer/internal/adapters/secondary/filesystem"
	"serving-optimizer/internal/core/domain"
	ports "serving-optimizer/internal/core/ports/output"
	"serving-optimizer/internal/testutil"
)

type servingFixture struct {
	layout    *filesystem.Layout
	process   *testutil.MockServerProcess
	client    *testutil.MockPredictionClient
	kserve    *testutil.MockKServeClient
	prom      *testutil.MockPrometheusClient
	publisher *testutil.MockPublisher
	svc       *ServingService
}

func newServingFixture(t *testing.T) *servingFixture {
	t.Helper()
	root := t.TempDir()
	layout, err := filesystem.NewLayout(filepath.Join(root, "models"), filepath.Join(root, "work"))
	require.NoError(t, err)

	f := &servingFixture{
		layout:    layout,
		process:   new(testutil.MockServerProcess),
		client:    new(testutil.MockPredictionClient),
		kserve:    new(testutil.MockKServeClient),
		prom:      new(testutil.MockPrometheusClient),
		publisher: new(testutil.MockPublisher),
	}
	f.svc = NewServingService(f.process, f.client, layout, f.kserve, f.prom, f.publisher, ServingOptions{
		GRPCPort:       8500,
		RESTPort:       8501,
		EnableBatching: true,
		ReadyTimeout:   200 * time.Millisecond,
		PollInterval:   10 * time.Millisecond,
	})
	return f
}

func (f *servingFixture) addVersion(t *testing.T, version int64) {
	t.Helper()
	dir := f.layout.VersionDir("mnist", version)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "saved_model.pb"), []byte("x"), 0o644))
}

func TestServingService_Start(t *testing.T) {
	f := newServingFixture(t)
	f.addVersion(t, 1)

	f.process.On("Start", mock.Anything, ports.ServerOptions{
		ModelName:      "mnist",
		ModelBasePath:  f.layout.ModelDir("mnist"),
		GRPCPort:       8500,
		RESTPort:       8501,
		EnableBatching: true,
	}).Return(nil)
	f.process.On("Running").Return(true)
	f.client.On("ModelStatus", mock.Anything, "mnist").Return(nil, errors.New("connection refused")).Once()
	f.client.On("ModelStatus", mock.Anything, "mnist").Return([]ports.ModelVersionStatus{{Version: "1", State: "LOADING"}}, nil).Once()
	f.client.On("ModelStatus", mock.Anything, "mnist").Return([]ports.ModelVersionStatus{{Version: "1", State: "AVAILABLE"}}, nil)

	require.NoError(t, f.svc.Start(context.Background(), "mnist"))
	f.client.AssertNumberOfCalls(t, "ModelStatus", 3)
	f.process.AssertNotCalled(t, "Stop", mock.Anything)
}

func TestServingService_Start_NoVersions(t *testing.T) {
	f := newServingFixture(t)

	err := f.svc.Start(context.Background(), "mnist")
	assert.ErrorIs(t, err, domain.ErrModelNotFound)
	f.process.AssertNotCalled(t, "Start", mock.Anything, mock.Anything)
}

func TestServingService_Start_NeverReady(t *testing.T) {
	f := newServingFixture(t)
	f.addVersion(t, 1)

	f.process.On("Start", mock.Anything, mock.Anything).Return(nil)
	f.process.On("Running").Return(true)
	f.process.On("Stop", mock.Anything).Return(nil)
	f.client.On("ModelStatus", mock.Anything, "mnist").Return([]ports.ModelVersionStatus{{Version: "1", State: "LOADING"}}, nil)

	err := f.svc.Start(context.Background(), "mnist")
	assert.ErrorIs(t, err, domain.ErrServerNotReady)
	f.process.AssertCalled(t, "Stop", mock.Anything)
}

func TestServingService_Start_ProcessExited(t *testing.T) {
	f := newServingFixture(t)
	f.addVersion(t, 1)

	f.process.On("Start", mock.Anything, mock.Anything).Return(nil)
	f.process.On("Running").Return(false)
	f.process.On("Stop", mock.Anything).Return(domain.ErrServerNotRunning)
	f.client.On("ModelStatus", mock.Anything, "mnist").Return(nil, errors.New("connection refused"))

	err := f.svc.Start(context.Background(), "mnist")
	assert.ErrorIs(t, err, domain.ErrServerNotReady)
	assert.Contains(t, err.Error(), "exited")
}

func TestServingService_Deploy(t *testing.T) {
	f := newServingFixture(t)
	f.kserve.On("IsAvailable").Return(true)
	f.publisher.On("IsAvailable").Return(true)
	f.publisher.On("BaseURI", "mnist").Return("gs://bucket/models/mnist")
	f.kserve.On("Deploy", mock.Anything, mock.MatchedBy(func(d *domain.Deployment) bool {
		return d.Name == "mnist" && d.StorageURI == "gs://bucket/models/mnist" && d.Labels["team"] == "ml"
	})).Return(&ports.KServeDeployment{ExternalID: "uid-1"}, nil)

	d, err := f.svc.Deploy(context.Background(), DeployRequest{ModelName: "mnist", Labels: map[string]string{"team": "ml"}})
	require.NoError(t, err)
	assert.Equal(t, "uid-1", d.ExternalID)
	assert.Equal(t, domain.DeploymentPending, d.State)
}

func TestServingService_Deploy_Unavailable(t *testing.T) {
	f := newServingFixture(t)
	f.kserve.On("IsAvailable").Return(false)

	_, err := f.svc.Deploy(context.Background(), DeployRequest{ModelName: "mnist", StorageURI: "gs://b/m"})
	assert.ErrorIs(t, err, domain.ErrKServeNotAvailable)

	assert.ErrorIs(t, f.svc.Undeploy(context.Background(), "", "mnist"), domain.ErrKServeNotAvailable)
}

func TestServingService_Deploy_NoStorageURI(t *testing.T) {
	f := newServingFixture(t)
	f.kserve.On("IsAvailable").Return(true)
	f.publisher.On("IsAvailable").Return(false)

	_, err := f.svc.Deploy(context.Background(), DeployRequest{ModelName: "mnist"})
	assert.ErrorIs(t, err, domain.ErrInvalidStorageURI)
}

func TestServingService_GetDeployment(t *testing.T) {
	tests := []struct {
		name   string
		status *ports.KServeStatus
		want   domain.DeploymentState
	}{
		{"ready", &ports.KServeStatus{Ready: true, URL: "http://mnist.example.com"}, domain.DeploymentReady},
		{"failed", &ports.KServeStatus{Error: "image pull backoff"}, domain.DeploymentFailed},
		{"pending", &ports.KServeStatus{}, domain.DeploymentPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServingFixture(t)
			f.kserve.On("IsAvailable").Return(true)
			f.kserve.On("GetStatus", mock.Anything, "serving", "mnist").Return(tt.status, nil)

			d, err := f.svc.GetDeployment(context.Background(), "serving", "mnist")
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.State)
			assert.Equal(t, tt.status.URL, d.URL)
		})
	}
}

func TestServingService_DeploymentMetrics(t *testing.T) {
	f := newServingFixture(t)
	f.prom.On("QueryDeploymentMetrics", mock.Anything, "mnist", mock.MatchedBy(func(tr ports.TimeRange) bool {
		return tr.End.Sub(tr.Start) == time.Hour
	})).Return(&ports.DeploymentMetrics{DeploymentName: "mnist", Requests: 10}, nil)

	m, err := f.svc.DeploymentMetrics(context.Background(), "mnist", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(10), m.Requests)

	f.svc.prom = nil
	m, err = f.svc.DeploymentMetrics(context.Background(), "mnist", time.Hour)
	require.NoError(t, err)
	assert.Nil(t, m)
}
