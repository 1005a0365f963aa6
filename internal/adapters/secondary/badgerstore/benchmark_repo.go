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

const benchmarkPrefix = "benchmark/"

type benchmarkRepo struct {
	store *Store
}

func NewBenchmarkRepository(store *Store) ports.BenchmarkRepository {
	return &benchmarkRepo{store: store}
}

func benchmarkKey(id uuid.UUID) []byte {
	return []byte(benchmarkPrefix + id.String())
}

func (r *benchmarkRepo) Create(ctx context.Context, b *domain.BenchmarkResult) error {
	if err := r.store.put(ctx, benchmarkKey(b.ID), b); err != nil {
		return fmt.Errorf("create benchmark result: %w", err)
	}
	return nil
}

func (r *benchmarkRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.BenchmarkResult, error) {
	b := &domain.BenchmarkResult{}
	if err := r.store.get(ctx, benchmarkKey(id), b); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, domain.ErrBenchmarkNotFound
		}
		return nil, fmt.Errorf("get benchmark result: %w", err)
	}
	return b, nil
}

func (r *benchmarkRepo) List(ctx context.Context, filter ports.BenchmarkListFilter) ([]*domain.BenchmarkResult, int, error) {
	var results []*domain.BenchmarkResult
	err := r.store.scan(ctx, []byte(benchmarkPrefix), func(val []byte) error {
		b := &domain.BenchmarkResult{}
		if err := json.Unmarshal(val, b); err != nil {
			return err
		}
		if filter.ModelName == "" || b.ModelName == filter.ModelName {
			results = append(results, b)
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list benchmark results: %w", err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].CreatedAt.After(results[j].CreatedAt) })
	return paginate(results, filter.Limit, filter.Offset), len(results), nil
}

// Ensure interface compliance
var _ ports.BenchmarkRepository = (*benchmarkRepo)(nil)
