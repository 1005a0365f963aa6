package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"serving-optimizer/internal/core/domain"
	ports "serving-optimizer/internal/core/ports/output"
)

const tracerName = "serving-optimizer/services"

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// GraphService runs the individual graph stages: export, freeze, optimize,
// describe and re-export. Each call is one external tool invocation.
type GraphService struct {
	tools ports.GraphToolchain
	store ports.ModelStore
}

func NewGraphService(tools ports.GraphToolchain, store ports.ModelStore) *GraphService {
	return &GraphService{tools: tools, store: store}
}

// ExportDir is where the trainer writes its SavedModel for modelName
func (s *GraphService) ExportDir(modelName string) string {
	return filepath.Join(s.store.WorkDir(modelName), "export")
}

func (s *GraphService) FrozenGraphPath(modelName string) string {
	return filepath.Join(s.store.WorkDir(modelName), "frozen_model.pb")
}

func (s *GraphService) OptimizedGraphPath(modelName string) string {
	return filepath.Join(s.store.WorkDir(modelName), "optimized_model.pb")
}

func (s *GraphService) Export(ctx context.Context, modelName string) (art *domain.Artifact, err error) {
	if err := domain.ValidateModelName(modelName); err != nil {
		return nil, err
	}
	ctx, span := tracer().Start(ctx, "graph.export", trace.WithAttributes(attribute.String("model", modelName)))
	defer func() { endSpan(span, err) }()

	exportDir := s.ExportDir(modelName)
	if err := s.store.ResetDir(exportDir); err != nil {
		return nil, fmt.Errorf("reset export dir: %w", err)
	}
	if err := s.tools.Export(ctx, modelName, exportDir); err != nil {
		return nil, err
	}

	savedModel, err := s.store.ResolveSavedModel(exportDir)
	if err != nil {
		return nil, err
	}
	return s.artifact(domain.ArtifactSavedModel, savedModel)
}

func (s *GraphService) Freeze(ctx context.Context, savedModelDir, outputFile string) (art *domain.Artifact, err error) {
	ctx, span := tracer().Start(ctx, "graph.freeze", trace.WithAttributes(attribute.String("output", outputFile)))
	defer func() { endSpan(span, err) }()

	if err := s.store.EnsureDir(filepath.Dir(outputFile)); err != nil {
		return nil, err
	}
	if err := s.tools.Freeze(ctx, savedModelDir, outputFile); err != nil {
		return nil, err
	}
	return s.artifact(domain.ArtifactFrozenGraph, outputFile)
}

func (s *GraphService) Optimize(ctx context.Context, frozenGraph, outputFile string) (art *domain.Artifact, err error) {
	ctx, span := tracer().Start(ctx, "graph.optimize", trace.WithAttributes(attribute.String("output", outputFile)))
	defer func() { endSpan(span, err) }()

	if err := s.store.EnsureDir(filepath.Dir(outputFile)); err != nil {
		return nil, err
	}
	if err := s.tools.Optimize(ctx, frozenGraph, outputFile); err != nil {
		return nil, err
	}
	return s.artifact(domain.ArtifactOptimizedGraph, outputFile)
}

// Describe summarizes a GraphDef with the external summarize tool.
func (s *GraphService) Describe(ctx context.Context, graphFile string) (*domain.GraphSummary, error) {
	ctx, span := tracer().Start(ctx, "graph.describe")
	summary, err := s.tools.Summarize(ctx, graphFile)
	endSpan(span, err)
	return summary, err
}

func (s *GraphService) CanDescribe() bool {
	return s.tools.CanSummarize()
}

// Reexport builds the SavedModel in a staging directory and moves it to
// exportDir only once the converter succeeded and wrote something, so a
// failed run never leaves a version directory behind for the model server.
func (s *GraphService) Reexport(ctx context.Context, graphFile, exportDir string) (art *domain.Artifact, err error) {
	ctx, span := tracer().Start(ctx, "graph.reexport", trace.WithAttributes(attribute.String("export_dir", exportDir)))
	defer func() { endSpan(span, err) }()

	staging := s.store.StagingDir(exportDir)
	if err := s.store.ResetDir(staging); err != nil {
		return nil, fmt.Errorf("reset staging dir: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rmErr := s.store.RemoveDir(staging); rmErr != nil {
			log.WithError(rmErr).WithField("path", staging).Warn("could not remove staging dir")
		}
	}()

	if err := s.tools.Reexport(ctx, graphFile, staging); err != nil {
		return nil, err
	}
	size, err := s.store.Size(staging)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, fmt.Errorf("%s %s: %w", domain.ArtifactServingModel, exportDir, domain.ErrArtifactMissing)
	}
	if err := s.store.Promote(staging, exportDir); err != nil {
		return nil, err
	}
	return s.artifact(domain.ArtifactServingModel, exportDir)
}

// artifact records path and size; a tool that exits cleanly without writing
// its output is reported as ErrArtifactMissing.
func (s *GraphService) artifact(kind domain.ArtifactKind, path string) (*domain.Artifact, error) {
	size, err := s.store.Size(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s %s: %w", kind, path, domain.ErrArtifactMissing)
		}
		return nil, err
	}
	log.WithFields(log.Fields{
		"kind": kind,
		"path": path,
		"size": size,
	}).Info("artifact written")
	return &domain.Artifact{Kind: kind, Path: path, SizeBytes: size}, nil
}
