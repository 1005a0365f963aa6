package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"serving-optimizer/internal/adapters/secondary/filesystem"
	"serving-optimizer/internal/core/domain"
	"serving-optimizer/internal/testutil"
)

func newGraphFixture(t *testing.T) (*GraphService, *filesystem.Layout, *testutil.MockGraphToolchain) {
	t.Helper()
	root := t.TempDir()
	layout, err := filesystem.NewLayout(filepath.Join(root, "models"), filepath.Join(root, "work"))
	require.NoError(t, err)
	tools := new(testutil.MockGraphToolchain)
	return NewGraphService(tools, layout), layout, tools
}

func TestGraphService_Export_ResetsDir(t *testing.T) {
	svc, _, tools := newGraphFixture(t)
	stale := filepath.Join(svc.ExportDir("mnist"), "1600000000", "saved_model.pb")
	writeFile(t, stale, 10)

	tools.On("Export", mock.Anything, "mnist", svc.ExportDir("mnist")).Run(func(args mock.Arguments) {
		assert.NoFileExists(t, stale)
		writeFile(t, filepath.Join(args.String(2), "saved_model.pb"), 50)
	}).Return(nil)

	art, err := svc.Export(context.Background(), "mnist")
	require.NoError(t, err)
	assert.Equal(t, domain.ArtifactSavedModel, art.Kind)
	assert.Equal(t, svc.ExportDir("mnist"), art.Path)
	assert.Equal(t, int64(50), art.SizeBytes)
}

func TestGraphService_Export_ToolFailure(t *testing.T) {
	svc, _, tools := newGraphFixture(t)
	tools.On("Export", mock.Anything, "mnist", mock.Anything).Return(domain.ErrToolFailed)

	_, err := svc.Export(context.Background(), "mnist")
	assert.ErrorIs(t, err, domain.ErrToolFailed)
}

func TestGraphService_FreezeAndOptimize(t *testing.T) {
	svc, _, tools := newGraphFixture(t)
	frozen := filepath.Join(t.TempDir(), "nested", "frozen.pb")
	optimized := filepath.Join(t.TempDir(), "optimized.pb")

	tools.On("Freeze", mock.Anything, "/saved", frozen).Run(func(args mock.Arguments) {
		// the parent directory exists before the tool runs
		assert.DirExists(t, filepath.Dir(frozen))
		writeFile(t, frozen, 1000)
	}).Return(nil)
	tools.On("Optimize", mock.Anything, frozen, optimized).Run(func(args mock.Arguments) {
		writeFile(t, optimized, 260)
	}).Return(nil)

	art, err := svc.Freeze(context.Background(), "/saved", frozen)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), art.SizeBytes)

	art, err = svc.Optimize(context.Background(), frozen, optimized)
	require.NoError(t, err)
	assert.Equal(t, domain.ArtifactOptimizedGraph, art.Kind)
	assert.Equal(t, int64(260), art.SizeBytes)
}

func TestGraphService_Reexport(t *testing.T) {
	svc, layout, tools := newGraphFixture(t)
	versionDir := layout.VersionDir("mnist", 1)
	writeFile(t, filepath.Join(versionDir, "stale.txt"), 1)

	staging := layout.StagingDir(versionDir)
	tools.On("Reexport", mock.Anything, "/opt.pb", staging).Run(func(args mock.Arguments) {
		writeFile(t, filepath.Join(staging, "saved_model.pb"), 70)
		writeFile(t, filepath.Join(staging, "variables", "variables.index"), 5)
	}).Return(nil)

	art, err := svc.Reexport(context.Background(), "/opt.pb", versionDir)
	require.NoError(t, err)
	assert.Equal(t, domain.ArtifactServingModel, art.Kind)
	assert.Equal(t, versionDir, art.Path)
	assert.Equal(t, int64(75), art.SizeBytes)
	assert.FileExists(t, filepath.Join(versionDir, "variables", "variables.index"))
	assert.NoFileExists(t, filepath.Join(versionDir, "stale.txt"))
	assert.NoDirExists(t, staging)
}

func TestGraphService_Reexport_FailureLeavesNoVersion(t *testing.T) {
	svc, layout, tools := newGraphFixture(t)
	versionDir := layout.VersionDir("mnist", 1)
	tools.On("Reexport", mock.Anything, "/opt.pb", layout.StagingDir(versionDir)).Run(func(args mock.Arguments) {
		writeFile(t, filepath.Join(args.String(2), "saved_model.pb"), 10)
	}).Return(errors.New("converter crashed"))

	_, err := svc.Reexport(context.Background(), "/opt.pb", versionDir)
	require.Error(t, err)

	assert.NoDirExists(t, versionDir)
	assert.NoDirExists(t, layout.StagingDir(versionDir))
	versions, err := layout.ListVersions("mnist")
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestGraphService_Reexport_EmptyOutput(t *testing.T) {
	svc, layout, tools := newGraphFixture(t)
	versionDir := layout.VersionDir("mnist", 2)
	tools.On("Reexport", mock.Anything, "/opt.pb", mock.Anything).Return(nil)

	_, err := svc.Reexport(context.Background(), "/opt.pb", versionDir)
	assert.ErrorIs(t, err, domain.ErrArtifactMissing)
	assert.NoDirExists(t, versionDir)
}

func TestGraphService_Describe(t *testing.T) {
	svc, _, tools := newGraphFixture(t)
	tools.On("CanSummarize").Return(true)
	tools.On("Summarize", mock.Anything, "/g.pb").Return(&domain.GraphSummary{NodeCount: 12}, nil)

	assert.True(t, svc.CanDescribe())
	summary, err := svc.Describe(context.Background(), "/g.pb")
	require.NoError(t, err)
	assert.Equal(t, 12, summary.NodeCount)
}
