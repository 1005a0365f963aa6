package domain

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Value Objects
// ============================================================================

// RunStatus represents the state of a PipelineRun
type RunStatus string

const (
	RunStatusPending   RunStatus = "PENDING"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
)

// IsValid checks if the status is valid
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusSucceeded, RunStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the run can no longer change.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed
}

// StageName identifies a pipeline stage
type StageName string

const (
	StageExport   StageName = "export"
	StageFreeze   StageName = "freeze"
	StageOptimize StageName = "optimize"
	StageReexport StageName = "reexport"
	StagePublish  StageName = "publish"
)

// StageStatus represents the state of a single stage
type StageStatus string

const (
	StageStatusRunning   StageStatus = "RUNNING"
	StageStatusSucceeded StageStatus = "SUCCEEDED"
	StageStatusFailed    StageStatus = "FAILED"
	StageStatusSkipped   StageStatus = "SKIPPED"
)

// StageResult records one stage execution
type StageResult struct {
	Name       StageName   `json:"name"`
	Status     StageStatus `json:"status"`
	Artifact   *Artifact   `json:"artifact,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Duration is zero until the stage has finished.
func (r StageResult) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ============================================================================
// Entities
// ============================================================================

// PipelineRun is one pass of export, freeze, optimize and re-export for a model
type PipelineRun struct {
	ID               uuid.UUID         `json:"id"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	ModelName        string            `json:"model_name"`
	Version          int64             `json:"version"`
	Status           RunStatus         `json:"status"`
	Stages           []StageResult     `json:"stages"`
	FrozenSummary    *GraphSummary     `json:"frozen_summary,omitempty"`
	OptimizedSummary *GraphSummary     `json:"optimized_summary,omitempty"`
	PublishedURI     string            `json:"published_uri,omitempty"`
	LastError        string            `json:"last_error,omitempty"`
	Labels           map[string]string `json:"labels"`
}

// NewPipelineRun creates a new PipelineRun with validation
func NewPipelineRun(modelName string, version int64) (*PipelineRun, error) {
	if err := ValidateModelName(modelName); err != nil {
		return nil, err
	}
	if version < 0 {
		return nil, ErrInvalidVersion
	}

	now := time.Now()
	return &PipelineRun{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
		ModelName: modelName,
		Version:   version,
		Status:    RunStatusPending,
		Stages:    []StageResult{},
		Labels:    make(map[string]string),
	}, nil
}

// Start marks the run as running
func (r *PipelineRun) Start() {
	r.Status = RunStatusRunning
	r.UpdatedAt = time.Now()
}

// BeginStage appends a running stage
func (r *PipelineRun) BeginStage(name StageName) {
	now := time.Now()
	r.Stages = append(r.Stages, StageResult{
		Name:      name,
		Status:    StageStatusRunning,
		StartedAt: now,
	})
	r.UpdatedAt = now
}

// CompleteStage marks the latest stage with this name as succeeded
func (r *PipelineRun) CompleteStage(name StageName, artifact *Artifact) {
	r.finishStage(name, StageStatusSucceeded, artifact, "")
}

// FailStage marks the latest stage with this name as failed and fails the run
func (r *PipelineRun) FailStage(name StageName, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	r.finishStage(name, StageStatusFailed, nil, msg)
	r.MarkFailed(msg)
}

// SkipStage records a stage that was not executed
func (r *PipelineRun) SkipStage(name StageName) {
	now := time.Now()
	r.Stages = append(r.Stages, StageResult{
		Name:       name,
		Status:     StageStatusSkipped,
		StartedAt:  now,
		FinishedAt: &now,
	})
	r.UpdatedAt = now
}

func (r *PipelineRun) finishStage(name StageName, status StageStatus, artifact *Artifact, msg string) {
	now := time.Now()
	for i := len(r.Stages) - 1; i >= 0; i-- {
		if r.Stages[i].Name != name {
			continue
		}
		r.Stages[i].Status = status
		r.Stages[i].Artifact = artifact
		r.Stages[i].FinishedAt = &now
		r.Stages[i].Error = msg
		break
	}
	r.UpdatedAt = now
}

// Stage returns the latest result for the given stage
func (r *PipelineRun) Stage(name StageName) (StageResult, bool) {
	for i := len(r.Stages) - 1; i >= 0; i-- {
		if r.Stages[i].Name == name {
			return r.Stages[i], true
		}
	}
	return StageResult{}, false
}

// MarkSucceeded completes the run
func (r *PipelineRun) MarkSucceeded() {
	r.Status = RunStatusSucceeded
	r.LastError = ""
	r.UpdatedAt = time.Now()
}

// MarkFailed records run failure
func (r *PipelineRun) MarkFailed(err string) {
	r.Status = RunStatusFailed
	r.LastError = err
	r.UpdatedAt = time.Now()
}

// SizeRatio is the optimized graph size divided by the frozen graph size.
// Zero when either stage has no artifact.
func (r *PipelineRun) SizeRatio() float64 {
	frozen, ok := r.Stage(StageFreeze)
	if !ok || frozen.Artifact == nil || frozen.Artifact.SizeBytes == 0 {
		return 0
	}
	optimized, ok := r.Stage(StageOptimize)
	if !ok || optimized.Artifact == nil {
		return 0
	}
	return float64(optimized.Artifact.SizeBytes) / float64(frozen.Artifact.SizeBytes)
}
