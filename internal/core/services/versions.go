package services

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serving-optimizer/internal/core/domain"
	ports "serving-optimizer/internal/core/ports/output"
)

// WatcherFactory creates a fresh watcher per Watch call
type WatcherFactory func() (ports.VersionWatcher, error)

// VersionService inspects and publishes the numbered version directories
// under {base}/{model}.
type VersionService struct {
	store      ports.ModelStore
	publisher  ports.ArtifactPublisher
	newWatcher WatcherFactory
}

func NewVersionService(store ports.ModelStore, publisher ports.ArtifactPublisher, newWatcher WatcherFactory) *VersionService {
	return &VersionService{store: store, publisher: publisher, newWatcher: newWatcher}
}

func (s *VersionService) List(_ context.Context, modelName string) ([]domain.ModelVersion, error) {
	return s.store.ListVersions(modelName)
}

func (s *VersionService) Next(_ context.Context, modelName string) (int64, error) {
	if err := domain.ValidateModelName(modelName); err != nil {
		return 0, err
	}
	return s.store.NextVersion(modelName)
}

// Get returns an existing version or ErrVersionNotFound
func (s *VersionService) Get(_ context.Context, modelName string, version int64) (*domain.ModelVersion, error) {
	if version <= 0 {
		return nil, domain.ErrInvalidVersion
	}
	versions, err := s.store.ListVersions(modelName)
	if err != nil {
		return nil, err
	}
	for i := range versions {
		if versions[i].Version == version {
			return &versions[i], nil
		}
	}
	return nil, domain.ErrVersionNotFound
}

// Publish uploads an existing version directory and returns the model base URI.
func (s *VersionService) Publish(ctx context.Context, modelName string, version int64) (string, error) {
	if s.publisher == nil || !s.publisher.IsAvailable() {
		return "", domain.ErrPublisherNotAvailable
	}
	v, err := s.Get(ctx, modelName, version)
	if err != nil {
		return "", err
	}
	return s.publisher.Publish(ctx, v.Path, modelName, version)
}

// Watch reports versions appearing and disappearing until ctx is done. The
// model directory is created if it does not exist yet.
func (s *VersionService) Watch(ctx context.Context, modelName string, events chan<- ports.VersionEvent) error {
	if err := domain.ValidateModelName(modelName); err != nil {
		return err
	}
	dir := s.store.ModelDir(modelName)
	if err := s.store.EnsureDir(dir); err != nil {
		return err
	}

	w, err := s.newWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		if err := w.Close(); err != nil {
			log.WithError(err).Debug("close version watcher")
		}
	}()

	log.WithField("dir", dir).Info("watching model versions")
	return w.Watch(dir, modelName, events)
}
