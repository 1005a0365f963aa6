package badgerstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serving-optimizer/internal/config"
	"serving-optimizer/internal/core/domain"
	ports "serving-optimizer/internal/core/ports/output"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(config.StoreConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(config.StoreConfig{})
	assert.Error(t, err)
}

func TestOpen_Persistent(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(config.StoreConfig{Path: dir})
	require.NoError(t, err)

	repo := NewPipelineRunRepository(s)
	run, err := domain.NewPipelineRun("mnist", 1)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), run))
	require.NoError(t, s.Close())

	s, err = Open(config.StoreConfig{Path: dir})
	require.NoError(t, err)
	defer s.Close()

	got, err := NewPipelineRunRepository(s).GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, "mnist", got.ModelName)
}

func TestRunRepo_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewPipelineRunRepository(openTestStore(t))

	run, err := domain.NewPipelineRun("mnist", 0)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, run))
	assert.Error(t, repo.Create(ctx, run))

	run.Start()
	run.BeginStage(domain.StageFreeze)
	run.CompleteStage(domain.StageFreeze, &domain.Artifact{Kind: domain.ArtifactFrozenGraph, Path: "/w/frozen.pb", SizeBytes: 42})
	run.Version = 3
	require.NoError(t, repo.Update(ctx, run))

	got, err := repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusRunning, got.Status)
	assert.Equal(t, int64(3), got.Version)
	stage, ok := got.Stage(domain.StageFreeze)
	require.True(t, ok)
	assert.Equal(t, int64(42), stage.Artifact.SizeBytes)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrRunNotFound))

	other, _ := domain.NewPipelineRun("mnist", 0)
	assert.ErrorIs(t, repo.Update(ctx, other), domain.ErrRunNotFound)
}

func TestRunRepo_List(t *testing.T) {
	ctx := context.Background()
	repo := NewPipelineRunRepository(openTestStore(t))

	base := time.Now()
	for i, name := range []string{"mnist", "mnist", "fashion"} {
		run, err := domain.NewPipelineRun(name, 0)
		require.NoError(t, err)
		run.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if i == 1 {
			run.MarkFailed("boom")
		}
		require.NoError(t, repo.Create(ctx, run))
	}

	all, total, err := repo.List(ctx, ports.RunListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, "fashion", all[0].ModelName)

	mnist, total, err := repo.List(ctx, ports.RunListFilter{ModelName: "mnist"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, mnist, 2)

	failed, total, err := repo.List(ctx, ports.RunListFilter{Status: "FAILED"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "boom", failed[0].LastError)

	page, total, err := repo.List(ctx, ports.RunListFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, "mnist", page[0].ModelName)

	empty, _, err := repo.List(ctx, ports.RunListFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestBenchmarkRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewBenchmarkRepository(openTestStore(t))

	acc := 0.97
	b, err := domain.NewBenchmarkResult("mnist", 2, "http://localhost:8501/v1/models/mnist:predict")
	require.NoError(t, err)
	b.Requests = 100
	b.Elapsed = 2 * time.Second
	b.Latency = domain.ComputeLatencyStats([]time.Duration{time.Millisecond, 3 * time.Millisecond})
	b.Accuracy = &acc
	require.NoError(t, repo.Create(ctx, b))

	got, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Latency, got.Latency)
	require.NotNil(t, got.Accuracy)
	assert.Equal(t, 0.97, *got.Accuracy)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrBenchmarkNotFound)

	list, total, err := repo.List(ctx, ports.BenchmarkListFilter{ModelName: "fashion"})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, list)
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4}
	assert.Equal(t, []int{2, 3}, paginate(items, 2, 1))
	assert.Equal(t, []int{1, 2, 3, 4}, paginate(items, 0, 0))
	assert.Equal(t, []int{}, paginate(items, 2, 4))
}
