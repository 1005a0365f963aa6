package ports

import "serving-optimizer/internal/core/domain"

// ModelStore owns the on-disk layout: {base}/{model}/{version}/ for serving
// and {work}/{model}/ for intermediate artifacts.
type ModelStore interface {
	BasePath() string
	ModelDir(modelName string) string
	VersionDir(modelName string, version int64) string
	WorkDir(modelName string) string

	// ResetDir removes path if it exists and recreates it empty
	ResetDir(path string) error

	// EnsureDir creates path and its parents when missing
	EnsureDir(path string) error

	// StagingDir is the hidden sibling a directory is built in before Promote
	StagingDir(dir string) string

	// Promote replaces dir with stagingDir in a single rename
	Promote(stagingDir, dir string) error

	// RemoveDir deletes path and everything below it
	RemoveDir(path string) error

	// ListVersions returns numeric version directories in ascending order
	ListVersions(modelName string) ([]domain.ModelVersion, error)

	// NextVersion is the highest existing version plus one, or 1
	NextVersion(modelName string) (int64, error)

	// Size is the size of a file, or the recursive size of a directory
	Size(path string) (int64, error)

	// ResolveSavedModel returns exportDir or its newest SavedModel subdirectory
	ResolveSavedModel(exportDir string) (string, error)

	// WriteManifest records a finished run next to its intermediate artifacts
	WriteManifest(run *domain.PipelineRun) (string, error)
}

// VersionEventOp tells whether a version appeared or disappeared
type VersionEventOp string

const (
	VersionAdded   VersionEventOp = "ADDED"
	VersionRemoved VersionEventOp = "REMOVED"
)

// VersionEvent is emitted by a VersionWatcher
type VersionEvent struct {
	ModelName string         `json:"model_name"`
	Version   int64          `json:"version"`
	Op        VersionEventOp `json:"op"`
}

// VersionWatcher reports version directories appearing under a model dir
type VersionWatcher interface {
	Watch(modelDir, modelName string, events chan<- VersionEvent) error
	Close() error
}
