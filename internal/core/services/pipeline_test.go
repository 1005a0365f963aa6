package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"serving-optimizer/internal/adapters/secondary/filesystem"
	"serving-optimizer/internal/core/domain"
	ports "serving-optimizer/internal/core/ports/output"
	"serving-optimizer/internal/testutil"
)

type pipelineFixture struct {
	layout    *filesystem.Layout
	tools     *testutil.MockGraphToolchain
	repo      *testutil.MockPipelineRunRepo
	publisher *testutil.MockPublisher
	metrics   *testutil.RecordingMetrics
	svc       *PipelineService
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	root := t.TempDir()
	layout, err := filesystem.NewLayout(filepath.Join(root, "models"), filepath.Join(root, "work"))
	require.NoError(t, err)

	f := &pipelineFixture{
		layout:    layout,
		tools:     new(testutil.MockGraphToolchain),
		repo:      new(testutil.MockPipelineRunRepo),
		publisher: new(testutil.MockPublisher),
		metrics:   testutil.NewRecordingMetrics(),
	}
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.PipelineRun")).Return(nil)
	f.repo.On("Update", mock.Anything, mock.AnythingOfType("*domain.PipelineRun")).Return(nil)

	f.svc = NewPipelineService(NewGraphService(f.tools, layout), layout, f.repo, f.publisher, f.metrics)
	return f
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

// expectTools makes every mocked tool write a plausible artifact.
func (f *pipelineFixture) expectTools(t *testing.T) {
	f.tools.On("Export", mock.Anything, "mnist", mock.Anything).Run(func(args mock.Arguments) {
		writeFile(t, filepath.Join(args.String(2), "1700000000", "saved_model.pb"), 300)
	}).Return(nil)
	f.tools.On("Freeze", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		writeFile(t, args.String(2), 400)
	}).Return(nil)
	f.tools.On("Optimize", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		writeFile(t, args.String(2), 100)
	}).Return(nil)
	f.tools.On("Reexport", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		writeFile(t, filepath.Join(args.String(2), "saved_model.pb"), 120)
	}).Return(nil)
}

func TestPipelineService_Run(t *testing.T) {
	f := newPipelineFixture(t)
	f.expectTools(t)
	f.tools.On("CanSummarize").Return(true)
	f.tools.On("Summarize", mock.Anything, mock.MatchedBy(func(p string) bool {
		return filepath.Base(p) == "frozen_model.pb"
	})).Return(&domain.GraphSummary{NodeCount: 120}, nil)
	f.tools.On("Summarize", mock.Anything, mock.MatchedBy(func(p string) bool {
		return filepath.Base(p) == "optimized_model.pb"
	})).Return(&domain.GraphSummary{NodeCount: 80}, nil)

	// an existing version makes the run pick the next one
	writeFile(t, filepath.Join(f.layout.VersionDir("mnist", 4), "saved_model.pb"), 10)

	run, err := f.svc.Run(context.Background(), RunRequest{ModelName: "mnist"})
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusSucceeded, run.Status)
	assert.Equal(t, int64(5), run.Version)
	assert.Equal(t, 120, run.FrozenSummary.NodeCount)
	assert.Equal(t, 80, run.OptimizedSummary.NodeCount)
	assert.Equal(t, 0.25, run.SizeRatio())

	export, ok := run.Stage(domain.StageExport)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(f.layout.WorkDir("mnist"), "export", "1700000000"), export.Artifact.Path)

	reexport, _ := run.Stage(domain.StageReexport)
	assert.Equal(t, f.layout.VersionDir("mnist", 5), reexport.Artifact.Path)

	publish, _ := run.Stage(domain.StagePublish)
	assert.Equal(t, domain.StageStatusSkipped, publish.Status)

	assert.Equal(t, domain.StageStatusSucceeded, f.metrics.Stages[domain.StageOptimize])
	assert.Equal(t, int64(100), f.metrics.Sizes[domain.ArtifactOptimizedGraph])

	f.tools.AssertCalled(t, "Freeze", mock.Anything,
		filepath.Join(f.layout.WorkDir("mnist"), "export", "1700000000"),
		filepath.Join(f.layout.WorkDir("mnist"), "frozen_model.pb"))

	m, err := f.layout.ReadManifest("mnist")
	require.NoError(t, err)
	assert.Equal(t, "SUCCEEDED", m.Status)
}

func TestPipelineService_Run_ExplicitVersionAndPublish(t *testing.T) {
	f := newPipelineFixture(t)
	f.expectTools(t)
	f.tools.On("CanSummarize").Return(false)
	f.publisher.On("IsAvailable").Return(true)
	f.publisher.On("Publish", mock.Anything, f.layout.VersionDir("mnist", 7), "mnist", int64(7)).
		Return("gs://bucket/models/mnist", nil)

	run, err := f.svc.Run(context.Background(), RunRequest{ModelName: "mnist", Version: 7, Publish: true})
	require.NoError(t, err)

	assert.Equal(t, int64(7), run.Version)
	assert.Equal(t, "gs://bucket/models/mnist", run.PublishedURI)
	assert.Nil(t, run.FrozenSummary)
	f.tools.AssertNotCalled(t, "Summarize", mock.Anything, mock.Anything)
}

func TestPipelineService_Run_SkipExport(t *testing.T) {
	f := newPipelineFixture(t)
	f.expectTools(t)
	f.tools.On("CanSummarize").Return(false)

	run, err := f.svc.Run(context.Background(), RunRequest{ModelName: "mnist", SavedModelDir: "/data/saved"})
	require.NoError(t, err)

	export, _ := run.Stage(domain.StageExport)
	assert.Equal(t, domain.StageStatusSkipped, export.Status)
	f.tools.AssertNotCalled(t, "Export", mock.Anything, mock.Anything, mock.Anything)
	f.tools.AssertCalled(t, "Freeze", mock.Anything, "/data/saved", mock.Anything)
}

func TestPipelineService_Run_StopsAtFailingStage(t *testing.T) {
	f := newPipelineFixture(t)
	f.tools.On("Export", mock.Anything, "mnist", mock.Anything).Run(func(args mock.Arguments) {
		writeFile(t, filepath.Join(args.String(2), "saved_model.pb"), 300)
	}).Return(nil)
	f.tools.On("Freeze", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		writeFile(t, args.String(2), 400)
	}).Return(nil)
	toolErr := errors.New("transform_graph: exit status 1")
	f.tools.On("CanSummarize").Return(false)
	f.tools.On("Optimize", mock.Anything, mock.Anything, mock.Anything).Return(toolErr)

	run, err := f.svc.Run(context.Background(), RunRequest{ModelName: "mnist"})
	require.Error(t, err)
	assert.ErrorIs(t, err, toolErr)

	require.NotNil(t, run)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Contains(t, run.LastError, "exit status 1")
	optimize, _ := run.Stage(domain.StageOptimize)
	assert.Equal(t, domain.StageStatusFailed, optimize.Status)
	_, reached := run.Stage(domain.StageReexport)
	assert.False(t, reached)
	assert.Equal(t, domain.StageStatusFailed, f.metrics.Stages[domain.StageOptimize])
	f.tools.AssertNotCalled(t, "Reexport", mock.Anything, mock.Anything, mock.Anything)
}

func TestPipelineService_Run_ReexportFailureKeepsLayout(t *testing.T) {
	f := newPipelineFixture(t)
	f.tools.On("Export", mock.Anything, "mnist", mock.Anything).Run(func(args mock.Arguments) {
		writeFile(t, filepath.Join(args.String(2), "saved_model.pb"), 300)
	}).Return(nil)
	f.tools.On("Freeze", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		writeFile(t, args.String(2), 400)
	}).Return(nil)
	f.tools.On("Optimize", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		writeFile(t, args.String(2), 100)
	}).Return(nil)
	f.tools.On("CanSummarize").Return(false)
	f.tools.On("Reexport", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("converter crashed"))

	run, err := f.svc.Run(context.Background(), RunRequest{ModelName: "mnist"})
	require.Error(t, err)
	assert.Equal(t, domain.RunStatusFailed, run.Status)

	versions, err := f.layout.ListVersions("mnist")
	require.NoError(t, err)
	assert.Empty(t, versions)
	next, err := f.layout.NextVersion("mnist")
	require.NoError(t, err)
	assert.Equal(t, int64(1), next)

	entries, err := os.ReadDir(f.layout.ModelDir("mnist"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPipelineService_Run_MissingArtifact(t *testing.T) {
	f := newPipelineFixture(t)
	f.tools.On("Export", mock.Anything, "mnist", mock.Anything).Run(func(args mock.Arguments) {
		writeFile(t, filepath.Join(args.String(2), "saved_model.pb"), 300)
	}).Return(nil)
	// the tool succeeds but writes nothing
	f.tools.On("Freeze", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	run, err := f.svc.Run(context.Background(), RunRequest{ModelName: "mnist"})
	assert.ErrorIs(t, err, domain.ErrArtifactMissing)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
}

func TestPipelineService_Run_PublisherUnavailable(t *testing.T) {
	f := newPipelineFixture(t)
	f.expectTools(t)
	f.tools.On("CanSummarize").Return(false)
	f.publisher.On("IsAvailable").Return(false)

	run, err := f.svc.Run(context.Background(), RunRequest{ModelName: "mnist", Publish: true})
	assert.ErrorIs(t, err, domain.ErrPublisherNotAvailable)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	// the version was still written
	versions, err := f.layout.ListVersions("mnist")
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestPipelineService_Run_InvalidModelName(t *testing.T) {
	f := newPipelineFixture(t)
	_, err := f.svc.Run(context.Background(), RunRequest{ModelName: "../etc"})
	assert.ErrorIs(t, err, domain.ErrInvalidModelName)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPipelineService_Start(t *testing.T) {
	f := newPipelineFixture(t)
	f.expectTools(t)
	f.tools.On("CanSummarize").Return(false)

	run, err := f.svc.Start(context.Background(), RunRequest{ModelName: "mnist"})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusPending, run.Status)

	f.svc.Wait()
	versions, err := f.layout.ListVersions("mnist")
	require.NoError(t, err)
	assert.Len(t, versions, 1)

	// the model is free again once the background run finished
	_, err = f.svc.Start(context.Background(), RunRequest{ModelName: "mnist"})
	require.NoError(t, err)
	f.svc.Wait()
}

func TestPipelineService_RunInProgress(t *testing.T) {
	f := newPipelineFixture(t)
	f.svc.active["mnist"] = uuid.New()

	_, err := f.svc.Run(context.Background(), RunRequest{ModelName: "mnist"})
	assert.ErrorIs(t, err, domain.ErrRunInProgress)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPipelineService_List(t *testing.T) {
	f := newPipelineFixture(t)
	f.repo.On("List", mock.Anything, ports.RunListFilter{ModelName: "mnist", Limit: 100}).
		Return([]*domain.PipelineRun{}, 0, nil)

	_, _, err := f.svc.List(context.Background(), ports.RunListFilter{ModelName: "mnist", Limit: 500})
	require.NoError(t, err)

	_, _, err = f.svc.List(context.Background(), ports.RunListFilter{Status: "DONE"})
	assert.Error(t, err)
}
