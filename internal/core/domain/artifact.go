package domain

type ArtifactKind string

const (
	ArtifactSavedModel     ArtifactKind = "saved_model"
	ArtifactFrozenGraph    ArtifactKind = "frozen_graph"
	ArtifactOptimizedGraph ArtifactKind = "optimized_graph"
	ArtifactServingModel   ArtifactKind = "serving_model"
)

// Artifact is a file or directory written by an external tool.
type Artifact struct {
	Kind      ArtifactKind `json:"kind"`
	Path      string       `json:"path"`
	SizeBytes int64        `json:"size_bytes"`
}
