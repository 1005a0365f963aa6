package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"serving-optimizer/internal/core/domain"
)

const manifestFile = "run.yaml"

// Manifest is the human-readable record of a pipeline run kept in the work dir.
type Manifest struct {
	RunID        string            `yaml:"run_id"`
	Model        string            `yaml:"model"`
	Version      int64             `yaml:"version"`
	Status       string            `yaml:"status"`
	CreatedAt    time.Time         `yaml:"created_at"`
	PublishedURI string            `yaml:"published_uri,omitempty"`
	Error        string            `yaml:"error,omitempty"`
	SizeRatio    float64           `yaml:"size_ratio,omitempty"`
	Stages       []ManifestStage   `yaml:"stages"`
	Nodes        map[string]int    `yaml:"nodes,omitempty"` // frozen/optimized node counts
	Labels       map[string]string `yaml:"labels,omitempty"`
}

type ManifestStage struct {
	Name      string `yaml:"name"`
	Status    string `yaml:"status"`
	Duration  string `yaml:"duration"`
	Artifact  string `yaml:"artifact,omitempty"`
	SizeBytes int64  `yaml:"size_bytes,omitempty"`
	Error     string `yaml:"error,omitempty"`
}

func newManifest(run *domain.PipelineRun) *Manifest {
	m := &Manifest{
		RunID:        run.ID.String(),
		Model:        run.ModelName,
		Version:      run.Version,
		Status:       string(run.Status),
		CreatedAt:    run.CreatedAt.UTC(),
		PublishedURI: run.PublishedURI,
		Error:        run.LastError,
		SizeRatio:    run.SizeRatio(),
		Labels:       run.Labels,
	}
	for _, st := range run.Stages {
		ms := ManifestStage{
			Name:     string(st.Name),
			Status:   string(st.Status),
			Duration: st.Duration().Round(time.Millisecond).String(),
			Error:    st.Error,
		}
		if st.Artifact != nil {
			ms.Artifact = st.Artifact.Path
			ms.SizeBytes = st.Artifact.SizeBytes
		}
		m.Stages = append(m.Stages, ms)
	}
	if run.FrozenSummary != nil || run.OptimizedSummary != nil {
		m.Nodes = map[string]int{}
		if run.FrozenSummary != nil {
			m.Nodes["frozen"] = run.FrozenSummary.NodeCount
		}
		if run.OptimizedSummary != nil {
			m.Nodes["optimized"] = run.OptimizedSummary.NodeCount
		}
	}
	return m
}

func (l *Layout) WriteManifest(run *domain.PipelineRun) (string, error) {
	dir := l.WorkDir(run.ModelName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}

	data, err := yaml.Marshal(newManifest(run))
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}

	path := filepath.Join(dir, manifestFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// ReadManifest loads the manifest of the last run of modelName.
func (l *Layout) ReadManifest(modelName string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(l.WorkDir(modelName), manifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}
