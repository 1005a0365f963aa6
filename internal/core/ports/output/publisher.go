package ports

import "context"

// ArtifactPublisher copies a version directory to remote storage
type ArtifactPublisher interface {
	// Publish uploads localDir and returns the URI of the model base path
	Publish(ctx context.Context, localDir, modelName string, version int64) (string, error)

	// BaseURI is the remote model base path for modelName
	BaseURI(modelName string) string

	IsAvailable() bool
}
