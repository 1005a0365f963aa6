package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"serving-optimizer/internal/core/domain"
	ports "serving-optimizer/internal/core/ports/output"
)

// RunRequest describes one pipeline run
type RunRequest struct {
	ModelName string
	// Version 0 selects the next free version under the base path
	Version int64
	// SavedModelDir skips the export stage and freezes this SavedModel
	SavedModelDir string
	Publish       bool
	Labels        map[string]string
}

type PipelineService struct {
	graphs    *GraphService
	store     ports.ModelStore
	repo      ports.PipelineRunRepository
	publisher ports.ArtifactPublisher
	metrics   ports.MetricsRecorder

	mu     sync.Mutex
	active map[string]uuid.UUID
	wg     sync.WaitGroup
}

func NewPipelineService(
	graphs *GraphService,
	store ports.ModelStore,
	repo ports.PipelineRunRepository,
	publisher ports.ArtifactPublisher,
	metrics ports.MetricsRecorder,
) *PipelineService {
	return &PipelineService{
		graphs:    graphs,
		store:     store,
		repo:      repo,
		publisher: publisher,
		metrics:   metrics,
		active:    make(map[string]uuid.UUID),
	}
}

// Run executes the pipeline synchronously. The returned run is valid even
// when err is non-nil, so callers can inspect the failed stage.
func (s *PipelineService) Run(ctx context.Context, req RunRequest) (*domain.PipelineRun, error) {
	run, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	defer s.release(run.ModelName)

	return run, s.execute(ctx, run, req)
}

// Start persists a new run and executes it in the background. It returns a
// snapshot of the pending run.
func (s *PipelineService) Start(ctx context.Context, req RunRequest) (*domain.PipelineRun, error) {
	run, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	snapshot := cloneRun(run)

	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(run.ModelName)
		if err := s.execute(bg, run, req); err != nil {
			log.WithError(err).WithField("run_id", run.ID).Warn("background pipeline run failed")
		}
	}()

	return snapshot, nil
}

// Wait blocks until all background runs have finished
func (s *PipelineService) Wait() {
	s.wg.Wait()
}

func (s *PipelineService) Get(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *PipelineService) List(ctx context.Context, filter ports.RunListFilter) ([]*domain.PipelineRun, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Status != "" && !domain.RunStatus(filter.Status).IsValid() {
		return nil, 0, fmt.Errorf("%w: %q", domain.ErrInvalidRunStatus, filter.Status)
	}
	return s.repo.List(ctx, filter)
}

func (s *PipelineService) prepare(ctx context.Context, req RunRequest) (*domain.PipelineRun, error) {
	run, err := domain.NewPipelineRun(req.ModelName, req.Version)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Labels {
		run.Labels[k] = v
	}

	s.mu.Lock()
	if _, busy := s.active[run.ModelName]; busy {
		s.mu.Unlock()
		return nil, domain.ErrRunInProgress
	}
	s.active[run.ModelName] = run.ID
	s.mu.Unlock()

	if err := s.repo.Create(ctx, run); err != nil {
		s.release(run.ModelName)
		return nil, err
	}
	return run, nil
}

func (s *PipelineService) release(modelName string) {
	s.mu.Lock()
	delete(s.active, modelName)
	s.mu.Unlock()
}

type stageFunc func(ctx context.Context) (*domain.Artifact, error)

func (s *PipelineService) execute(ctx context.Context, run *domain.PipelineRun, req RunRequest) (err error) {
	ctx, span := tracer().Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("model", run.ModelName),
		attribute.String("run_id", run.ID.String()),
	))
	defer func() { endSpan(span, err) }()

	entry := log.WithFields(log.Fields{"run_id": run.ID, "model": run.ModelName})
	entry.Info("pipeline run started")

	run.Start()
	s.save(ctx, run)
	defer s.finish(ctx, run, entry)

	name := run.ModelName

	savedModel := req.SavedModelDir
	if savedModel == "" {
		art, err := s.stage(ctx, run, domain.StageExport, func(ctx context.Context) (*domain.Artifact, error) {
			return s.graphs.Export(ctx, name)
		})
		if err != nil {
			return err
		}
		savedModel = art.Path
	} else {
		run.SkipStage(domain.StageExport)
	}

	frozen, err := s.stage(ctx, run, domain.StageFreeze, func(ctx context.Context) (*domain.Artifact, error) {
		return s.graphs.Freeze(ctx, savedModel, s.graphs.FrozenGraphPath(name))
	})
	if err != nil {
		return err
	}
	run.FrozenSummary = s.describe(ctx, frozen.Path)

	optimized, err := s.stage(ctx, run, domain.StageOptimize, func(ctx context.Context) (*domain.Artifact, error) {
		return s.graphs.Optimize(ctx, frozen.Path, s.graphs.OptimizedGraphPath(name))
	})
	if err != nil {
		return err
	}
	run.OptimizedSummary = s.describe(ctx, optimized.Path)

	serving, err := s.stage(ctx, run, domain.StageReexport, func(ctx context.Context) (*domain.Artifact, error) {
		if run.Version == 0 {
			next, err := s.store.NextVersion(name)
			if err != nil {
				return nil, fmt.Errorf("select version: %w", err)
			}
			run.Version = next
		}
		return s.graphs.Reexport(ctx, optimized.Path, s.store.VersionDir(name, run.Version))
	})
	if err != nil {
		return err
	}

	if !req.Publish {
		run.SkipStage(domain.StagePublish)
	} else {
		_, err = s.stage(ctx, run, domain.StagePublish, func(ctx context.Context) (*domain.Artifact, error) {
			if s.publisher == nil || !s.publisher.IsAvailable() {
				return nil, domain.ErrPublisherNotAvailable
			}
			uri, err := s.publisher.Publish(ctx, serving.Path, name, run.Version)
			if err != nil {
				return nil, err
			}
			run.PublishedURI = uri
			return nil, nil
		})
		if err != nil {
			return err
		}
	}

	run.MarkSucceeded()
	return nil
}

// stage records one stage on the run, its metrics and its persisted state.
func (s *PipelineService) stage(ctx context.Context, run *domain.PipelineRun, name domain.StageName, fn stageFunc) (*domain.Artifact, error) {
	run.BeginStage(name)
	s.save(ctx, run)

	art, err := fn(ctx)

	entry := log.WithFields(log.Fields{"run_id": run.ID, "stage": name})
	if err != nil {
		run.FailStage(name, err)
		s.observe(run, name, domain.StageStatusFailed)
		entry.WithError(err).Error("stage failed")
		return nil, fmt.Errorf("%s stage: %w", name, err)
	}

	run.CompleteStage(name, art)
	s.observe(run, name, domain.StageStatusSucceeded)
	if art != nil {
		s.metrics.ObserveArtifactSize(run.ModelName, art.Kind, art.SizeBytes)
	}
	s.save(ctx, run)

	result, _ := run.Stage(name)
	entry.WithField("duration", result.Duration()).Info("stage succeeded")
	return art, nil
}

func (s *PipelineService) observe(run *domain.PipelineRun, name domain.StageName, status domain.StageStatus) {
	result, _ := run.Stage(name)
	s.metrics.ObserveStage(run.ModelName, name, status, result.Duration())
}

// describe is best effort: a missing or failing summarize tool never fails a run.
func (s *PipelineService) describe(ctx context.Context, graphFile string) *domain.GraphSummary {
	if !s.graphs.CanDescribe() {
		return nil
	}
	summary, err := s.graphs.Describe(ctx, graphFile)
	if err != nil {
		log.WithError(err).WithField("graph", graphFile).Warn("could not summarize graph")
		return nil
	}
	return summary
}

func (s *PipelineService) finish(ctx context.Context, run *domain.PipelineRun, entry *log.Entry) {
	s.save(ctx, run)

	if path, err := s.store.WriteManifest(run); err != nil {
		entry.WithError(err).Warn("could not write run manifest")
	} else {
		entry = entry.WithField("manifest", path)
	}

	fields := log.Fields{
		"status":  run.Status,
		"version": run.Version,
		"elapsed": time.Since(run.CreatedAt).Round(time.Millisecond),
	}
	if ratio := run.SizeRatio(); ratio > 0 {
		fields["size_ratio"] = fmt.Sprintf("%.3f", ratio)
	}
	entry.WithFields(fields).Info("pipeline run finished")
}

// save persists run state; persistence failures are logged and never abort a
// stage, and the final state is written even after ctx is cancelled.
func (s *PipelineService) save(ctx context.Context, run *domain.PipelineRun) {
	if err := s.repo.Update(context.WithoutCancel(ctx), run); err != nil {
		log.WithError(err).WithField("run_id", run.ID).Warn("could not persist pipeline run")
	}
}

func cloneRun(run *domain.PipelineRun) *domain.PipelineRun {
	c := *run
	c.Stages = append([]domain.StageResult(nil), run.Stages...)
	c.Labels = make(map[string]string, len(run.Labels))
	for k, v := range run.Labels {
		c.Labels[k] = v
	}
	return &c
}
