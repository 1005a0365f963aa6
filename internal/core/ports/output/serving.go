package ports

import (
	"context"

	"serving-optimizer/internal/core/domain"
)

// ServerOptions are the fixed flags of the model server
type ServerOptions struct {
	ModelName      string
	ModelBasePath  string // absolute {base}/{model}
	GRPCPort       int
	RESTPort       int
	EnableBatching bool
}

// ServerProcess runs the external model server binary
type ServerProcess interface {
	Start(ctx context.Context, opts ServerOptions) error
	Stop(ctx context.Context) error
	Running() bool
}

// ModelVersionStatus is one entry of the server's model status reply
type ModelVersionStatus struct {
	Version      string `json:"version"`
	State        string `json:"state"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// PredictionClient talks to the model server REST API
type PredictionClient interface {
	// Predict posts instances; version 0 means the latest loaded version
	Predict(ctx context.Context, modelName string, version int64, req *domain.PredictRequest) (*domain.PredictResponse, error)

	// ModelStatus returns the state of every version the server knows
	ModelStatus(ctx context.Context, modelName string) ([]ModelVersionStatus, error)

	// PredictURL is the endpoint Predict posts to
	PredictURL(modelName string, version int64) string
}
