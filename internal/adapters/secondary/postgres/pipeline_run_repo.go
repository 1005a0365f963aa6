package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"serving-optimizer/internal/core/domain"
	ports "serving-optimizer/internal/core/ports/output"
)

const runColumns = `id, created_at, updated_at, model_name, version, status, stages,
	frozen_summary, optimized_summary, published_uri, last_error, labels`

type pipelineRunRepo struct {
	pool *pgxpool.Pool
}

func NewPipelineRunRepository(pool *pgxpool.Pool) ports.PipelineRunRepository {
	return &pipelineRunRepo{pool: pool}
}

type runJSON struct {
	stages, frozen, optimized, labels []byte
}

func marshalRun(run *domain.PipelineRun) (*runJSON, error) {
	var out runJSON
	var err error
	if out.stages, err = json.Marshal(run.Stages); err != nil {
		return nil, fmt.Errorf("marshal stages: %w", err)
	}
	if out.labels, err = json.Marshal(run.Labels); err != nil {
		return nil, fmt.Errorf("marshal labels: %w", err)
	}
	if run.FrozenSummary != nil {
		if out.frozen, err = json.Marshal(run.FrozenSummary); err != nil {
			return nil, fmt.Errorf("marshal frozen summary: %w", err)
		}
	}
	if run.OptimizedSummary != nil {
		if out.optimized, err = json.Marshal(run.OptimizedSummary); err != nil {
			return nil, fmt.Errorf("marshal optimized summary: %w", err)
		}
	}
	return &out, nil
}

func (r *pipelineRunRepo) Create(ctx context.Context, run *domain.PipelineRun) error {
	j, err := marshalRun(run)
	if err != nil {
		return err
	}

	query := `INSERT INTO pipeline_run (` + runColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err = r.pool.Exec(ctx, query,
		run.ID, run.CreatedAt, run.UpdatedAt, run.ModelName, run.Version,
		string(run.Status), j.stages, j.frozen, j.optimized,
		run.PublishedURI, run.LastError, j.labels,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("pipeline run %s already exists", run.ID)
		}
		return fmt.Errorf("create pipeline run: %w", err)
	}
	return nil
}

func (r *pipelineRunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline_run WHERE id = $1`
	run, err := scanRun(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("get pipeline run: %w", err)
	}
	return run, nil
}

func (r *pipelineRunRepo) Update(ctx context.Context, run *domain.PipelineRun) error {
	j, err := marshalRun(run)
	if err != nil {
		return err
	}

	query := `
		UPDATE pipeline_run
		SET updated_at=$1, version=$2, status=$3, stages=$4, frozen_summary=$5,
			optimized_summary=$6, published_uri=$7, last_error=$8, labels=$9
		WHERE id=$10
	`
	result, err := r.pool.Exec(ctx, query,
		run.UpdatedAt, run.Version, string(run.Status), j.stages, j.frozen,
		j.optimized, run.PublishedURI, run.LastError, j.labels, run.ID,
	)
	if err != nil {
		return fmt.Errorf("update pipeline run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrRunNotFound
	}
	return nil
}

func (r *pipelineRunRepo) List(ctx context.Context, filter ports.RunListFilter) ([]*domain.PipelineRun, int, error) {
	where := &whereBuilder{}
	if filter.ModelName != "" {
		where.add("model_name", filter.ModelName)
	}
	if filter.Status != "" {
		where.add("status", filter.Status)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM pipeline_run WHERE " + where.clause()
	if err := r.pool.QueryRow(ctx, countQuery, where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count pipeline runs: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM pipeline_run WHERE %s ORDER BY created_at DESC %s`,
		runColumns, where.clause(), where.page(filter.Limit, filter.Offset))

	rows, err := r.pool.Query(ctx, query, where.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list pipeline runs: %w", err)
	}
	defer rows.Close()

	runs := []*domain.PipelineRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan pipeline run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate pipeline run rows: %w", err)
	}
	return runs, total, nil
}

func scanRun(row pgx.Row) (*domain.PipelineRun, error) {
	run := &domain.PipelineRun{}
	var status string
	var stages, frozen, optimized, labels []byte

	err := row.Scan(
		&run.ID, &run.CreatedAt, &run.UpdatedAt, &run.ModelName, &run.Version,
		&status, &stages, &frozen, &optimized, &run.PublishedURI, &run.LastError, &labels,
	)
	if err != nil {
		return nil, err
	}
	run.Status = domain.RunStatus(status)

	if err := json.Unmarshal(stages, &run.Stages); err != nil {
		return nil, fmt.Errorf("unmarshal stages: %w", err)
	}
	if len(frozen) > 0 {
		run.FrozenSummary = &domain.GraphSummary{}
		if err := json.Unmarshal(frozen, run.FrozenSummary); err != nil {
			return nil, fmt.Errorf("unmarshal frozen summary: %w", err)
		}
	}
	if len(optimized) > 0 {
		run.OptimizedSummary = &domain.GraphSummary{}
		if err := json.Unmarshal(optimized, run.OptimizedSummary); err != nil {
			return nil, fmt.Errorf("unmarshal optimized summary: %w", err)
		}
	}
	if len(labels) > 0 {
		if err := json.Unmarshal(labels, &run.Labels); err != nil {
			return nil, fmt.Errorf("unmarshal labels: %w", err)
		}
	}
	if run.Labels == nil {
		run.Labels = make(map[string]string)
	}
	return run, nil
}

// Ensure interface compliance
var _ ports.PipelineRunRepository = (*pipelineRunRepo)(nil)
