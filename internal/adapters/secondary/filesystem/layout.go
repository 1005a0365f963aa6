package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	log "github.com/sirupsen/logrus"

	"serving-optimizer/internal/core/domain"
	ports "serving-optimizer/internal/core/ports/output"
)

// Layout is the versioned directory convention of the model server:
// {base}/{model}/{version}/ with intermediate artifacts under {work}/{model}/.
type Layout struct {
	basePath string
	workDir  string
}

// NewLayout resolves both roots to absolute paths, since the model server is
// started with an absolute model_base_path.
func NewLayout(basePath, workDir string) (*Layout, error) {
	base, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve base path: %w", err)
	}
	work, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("resolve work dir: %w", err)
	}
	return &Layout{basePath: base, workDir: work}, nil
}

func (l *Layout) BasePath() string {
	return l.basePath
}

func (l *Layout) ModelDir(modelName string) string {
	return filepath.Join(l.basePath, modelName)
}

func (l *Layout) VersionDir(modelName string, version int64) string {
	return filepath.Join(l.basePath, modelName, domain.FormatVersion(version))
}

func (l *Layout) WorkDir(modelName string) string {
	return filepath.Join(l.workDir, modelName)
}

func (l *Layout) ResetDir(path string) error {
	if _, err := os.Stat(path); err == nil {
		log.WithField("path", path).Info("removing existing directory")
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("remove directory: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat directory: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return nil
}

func (l *Layout) EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return nil
}

// StagingDir names a dot-prefixed sibling of dir. Neither ListVersions nor the
// model server treat it as a version, and a rename from it stays on one volume.
func (l *Layout) StagingDir(dir string) string {
	return filepath.Join(filepath.Dir(dir), "."+filepath.Base(dir)+".staging")
}

func (l *Layout) Promote(stagingDir, dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove directory: %w", err)
	}
	if err := os.Rename(stagingDir, dir); err != nil {
		return fmt.Errorf("promote %s: %w", filepath.Base(dir), err)
	}
	return nil
}

func (l *Layout) RemoveDir(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove directory: %w", err)
	}
	return nil
}

func (l *Layout) ListVersions(modelName string) ([]domain.ModelVersion, error) {
	if err := domain.ValidateModelName(modelName); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(l.ModelDir(modelName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []domain.ModelVersion{}, nil
		}
		return nil, fmt.Errorf("read model dir: %w", err)
	}

	versions := make([]domain.ModelVersion, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		v, err := domain.ParseVersion(e.Name())
		if err != nil {
			continue
		}
		path := filepath.Join(l.ModelDir(modelName), e.Name())
		size, err := l.Size(path)
		if err != nil {
			return nil, err
		}
		versions = append(versions, domain.ModelVersion{
			ModelName: modelName,
			Version:   v,
			Path:      path,
			SizeBytes: size,
		})
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i].Version < versions[j].Version })
	return versions, nil
}

func (l *Layout) NextVersion(modelName string) (int64, error) {
	versions, err := l.ListVersions(modelName)
	if err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return 1, nil
	}
	return versions[len(versions)-1].Version + 1, nil
}

func (l *Layout) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat artifact: %w", err)
	}
	if !info.IsDir() {
		return info.Size(), nil
	}

	var total int64
	err = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk artifact: %w", err)
	}
	return total, nil
}

// ResolveSavedModel finds the SavedModel written into exportDir. Estimator
// exports nest it in a timestamped subdirectory; the newest one wins.
func (l *Layout) ResolveSavedModel(exportDir string) (string, error) {
	if hasSavedModel(exportDir) {
		return exportDir, nil
	}

	entries, err := os.ReadDir(exportDir)
	if err != nil {
		return "", fmt.Errorf("read export dir: %w", err)
	}

	newest := ""
	for _, e := range entries {
		if !e.IsDir() || !hasSavedModel(filepath.Join(exportDir, e.Name())) {
			continue
		}
		if newest == "" || newerName(e.Name(), newest) {
			newest = e.Name()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no saved model under %s: %w", exportDir, domain.ErrArtifactMissing)
	}
	return filepath.Join(exportDir, newest), nil
}

func hasSavedModel(dir string) bool {
	for _, name := range []string{"saved_model.pb", "saved_model.pbtxt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// newerName compares timestamp directory names numerically when both parse.
func newerName(a, b string) bool {
	av, aerr := domain.ParseVersion(a)
	bv, berr := domain.ParseVersion(b)
	if aerr == nil && berr == nil {
		return av > bv
	}
	return a > b
}

// Ensure interface compliance
var _ ports.ModelStore = (*Layout)(nil)
