package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"serving-optimizer/internal/core/domain"
	ports "serving-optimizer/internal/core/ports/output"
)

const runPrefix = "run/"

type runRepo struct {
	store *Store
}

func NewPipelineRunRepository(store *Store) ports.PipelineRunRepository {
	return &runRepo{store: store}
}

func runKey(id uuid.UUID) []byte {
	return []byte(runPrefix + id.String())
}

func (r *runRepo) Create(ctx context.Context, run *domain.PipelineRun) error {
	ok, err := r.store.exists(runKey(run.ID))
	if err != nil {
		return fmt.Errorf("create pipeline run: %w", err)
	}
	if ok {
		return fmt.Errorf("pipeline run %s already exists", run.ID)
	}
	if err := r.store.put(ctx, runKey(run.ID), run); err != nil {
		return fmt.Errorf("create pipeline run: %w", err)
	}
	return nil
}

func (r *runRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error) {
	run := &domain.PipelineRun{}
	if err := r.store.get(ctx, runKey(id), run); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("get pipeline run: %w", err)
	}
	return run, nil
}

func (r *runRepo) Update(ctx context.Context, run *domain.PipelineRun) error {
	ok, err := r.store.exists(runKey(run.ID))
	if err != nil {
		return fmt.Errorf("update pipeline run: %w", err)
	}
	if !ok {
		return domain.ErrRunNotFound
	}
	if err := r.store.put(ctx, runKey(run.ID), run); err != nil {
		return fmt.Errorf("update pipeline run: %w", err)
	}
	return nil
}

func (r *runRepo) List(ctx context.Context, filter ports.RunListFilter) ([]*domain.PipelineRun, int, error) {
	var runs []*domain.PipelineRun
	err := r.store.scan(ctx, []byte(runPrefix), func(val []byte) error {
		run := &domain.PipelineRun{}
		if err := json.Unmarshal(val, run); err != nil {
			return err
		}
		if filter.ModelName != "" && run.ModelName != filter.ModelName {
			return nil
		}
		if filter.Status != "" && string(run.Status) != filter.Status {
			return nil
		}
		runs = append(runs, run)
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list pipeline runs: %w", err)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	return paginate(runs, filter.Limit, filter.Offset), len(runs), nil
}

// Ensure interface compliance
var _ ports.PipelineRunRepository = (*runRepo)(nil)
