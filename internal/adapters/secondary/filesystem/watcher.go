package filesystem

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"serving-optimizer/internal/core/domain"
	ports "serving-optimizer/internal/core/ports/output"
)

// Watcher reports version directories created or removed under a model dir.
type Watcher struct {
	fsw *fsnotify.Watcher
}

func NewWatcher() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{fsw: fsw}, nil
}

// Watch blocks, forwarding version events until Close is called.
func (w *Watcher) Watch(modelDir, modelName string, events chan<- ports.VersionEvent) error {
	if err := w.fsw.Add(modelDir); err != nil {
		return fmt.Errorf("watch %s: %w", modelDir, err)
	}

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if out, ok := toVersionEvent(ev, modelName); ok {
				events <- out
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).WithField("dir", modelDir).Warn("version watcher error")
		}
	}
}

func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func toVersionEvent(ev fsnotify.Event, modelName string) (ports.VersionEvent, bool) {
	v, err := domain.ParseVersion(filepath.Base(ev.Name))
	if err != nil {
		return ports.VersionEvent{}, false
	}
	switch {
	case ev.Has(fsnotify.Create):
		return ports.VersionEvent{ModelName: modelName, Version: v, Op: ports.VersionAdded}, true
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return ports.VersionEvent{ModelName: modelName, Version: v, Op: ports.VersionRemoved}, true
	}
	return ports.VersionEvent{}, false
}

// Ensure interface compliance
var _ ports.VersionWatcher = (*Watcher)(nil)
