package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serving-optimizer/internal/core/domain"
	ports "serving-optimizer/internal/core/ports/output"
)

const benchmarkColumns = `id, created_at, model_name, version, endpoint, requests, batch_size,
	elapsed_ns, latency, accuracy, pipeline_run_id, labels`

type benchmarkRepo struct {
	pool *pgxpool.Pool
}

func NewBenchmarkRepository(pool *pgxpool.Pool) ports.BenchmarkRepository {
	return &benchmarkRepo{pool: pool}
}

func (r *benchmarkRepo) Create(ctx context.Context, b *domain.BenchmarkResult) error {
	latencyJSON, err := json.Marshal(b.Latency)
	if err != nil {
		return fmt.Errorf("marshal latency: %w", err)
	}
	labelsJSON, err := json.Marshal(b.Labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}

	query := `INSERT INTO benchmark_result (` + benchmarkColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err = r.pool.Exec(ctx, query,
		b.ID, b.CreatedAt, b.ModelName, b.Version, b.Endpoint, b.Requests, b.BatchSize,
		int64(b.Elapsed), latencyJSON, b.Accuracy, b.PipelineRunID, labelsJSON,
	)
	if err != nil {
		return fmt.Errorf("create benchmark result: %w", err)
	}
	return nil
}

func (r *benchmarkRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.BenchmarkResult, error) {
	query := `SELECT ` + benchmarkColumns + ` FROM benchmark_result WHERE id = $1`
	b, err := scanBenchmark(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBenchmarkNotFound
		}
		return nil, fmt.Errorf("get benchmark result: %w", err)
	}
	return b, nil
}

func (r *benchmarkRepo) List(ctx context.Context, filter ports.BenchmarkListFilter) ([]*domain.BenchmarkResult, int, error) {
	where := &whereBuilder{}
	if filter.ModelName != "" {
		where.add("model_name", filter.ModelName)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM benchmark_result WHERE " + where.clause()
	if err := r.pool.QueryRow(ctx, countQuery, where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count benchmark results: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM benchmark_result WHERE %s ORDER BY created_at DESC %s`,
		benchmarkColumns, where.clause(), where.page(filter.Limit, filter.Offset))

	rows, err := r.pool.Query(ctx, query, where.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list benchmark results: %w", err)
	}
	defer rows.Close()

	results := []*domain.BenchmarkResult{}
	for rows.Next() {
		b, err := scanBenchmark(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan benchmark row: %w", err)
		}
		results = append(results, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate benchmark rows: %w", err)
	}
	return results, total, nil
}

func scanBenchmark(row pgx.Row) (*domain.BenchmarkResult, error) {
	b := &domain.BenchmarkResult{}
	var elapsed int64
	var latency, labels []byte

	err := row.Scan(
		&b.ID, &b.CreatedAt, &b.ModelName, &b.Version, &b.Endpoint, &b.Requests, &b.BatchSize,
		&elapsed, &latency, &b.Accuracy, &b.PipelineRunID, &labels,
	)
	if err != nil {
		return nil, err
	}
	b.Elapsed = time.Duration(elapsed)

	if err := json.Unmarshal(latency, &b.Latency); err != nil {
		return nil, fmt.Errorf("unmarshal latency: %w", err)
	}
	if len(labels) > 0 {
		if err := json.Unmarshal(labels, &b.Labels); err != nil {
			return nil, fmt.Errorf("unmarshal labels: %w", err)
		}
	}
	if b.Labels == nil {
		b.Labels = make(map[string]string)
	}
	return b, nil
}

// Ensure interface compliance
var _ ports.BenchmarkRepository = (*benchmarkRepo)(nil)
