package domain

import "errors"

// ============================================================================
// Model & Version Errors
// ============================================================================

var (
	ErrInvalidModelName = errors.New("model name is required and may only contain letters, digits, '.', '_' and '-'")
	ErrInvalidVersion   = errors.New("version must be a positive integer")
	ErrVersionNotFound  = errors.New("model version not found")
	ErrModelNotFound    = errors.New("model not found under base path")
)

// ============================================================================
// Pipeline Errors
// ============================================================================

// Not found errors
var (
	ErrRunNotFound = errors.New("pipeline run not found")
)

// Validation errors
var (
	ErrInvalidRunStatus = errors.New("invalid run status")
)

// Conflict errors
var (
	ErrRunInProgress = errors.New("a pipeline run for this model is already in progress")
)

// Tool errors
var (
	ErrToolNotConfigured = errors.New("external tool is not configured")
	ErrToolFailed        = errors.New("external tool failed")
	ErrArtifactMissing   = errors.New("expected artifact was not produced")
)

// ============================================================================
// Serving Errors
// ============================================================================

var (
	ErrServerNotReady       = errors.New("model server did not become ready")
	ErrServerRunning        = errors.New("model server is already running")
	ErrServerNotRunning     = errors.New("model server is not running")
	ErrServerUnreachable    = errors.New("model server is unreachable")
	ErrPredictFailed        = errors.New("predict request failed")
	ErrKServeNotAvailable   = errors.New("kserve integration is not available")
	ErrDeploymentNotFound   = errors.New("deployment not found")
	ErrInvalidStorageURI    = errors.New("storage URI is required for a cluster deployment")
	ErrDeploymentNameExists = errors.New("deployment with this name already exists")
)

// ============================================================================
// Benchmark Errors
// ============================================================================

var (
	ErrBenchmarkNotFound   = errors.New("benchmark result not found")
	ErrNoInstances         = errors.New("benchmark requires at least one instance")
	ErrInvalidRequestCount = errors.New("request count must be positive")
	ErrInvalidRate         = errors.New("request rate must not be negative")
	ErrLabelMismatch       = errors.New("label count does not match prediction count")
)

// ============================================================================
// Storage Errors
// ============================================================================

var (
	ErrPublisherNotAvailable = errors.New("artifact publisher is not configured")
)
