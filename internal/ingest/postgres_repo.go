package ingest

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:generate mockgen -source=postgres_repo.go -destination=mock_repository_test.go -package=ingest

type Repository interface {
	CreateRun(ctx context.Context, run *Run) (string, error)
	UpdateRun(ctx context.Context, run *Run) error
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)
}

// RunFilter narrows ListRuns. Zero values mean no filter.
type RunFilter struct {
	BBBID   string
	BatchID string
	Limit   int
}

const defaultRunLimit = 50

func (f RunFilter) limit() int {
	if f.Limit <= 0 || f.Limit > 500 {
		return defaultRunLimit
	}
	return f.Limit
}

type PostgresRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) CreateRun(ctx context.Context, run *Run) (string, error) {
	const sql = `
		INSERT INTO export_runs (id, batch_id, bbb_id, region_name, query_mode, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	var id string
	err := r.db.QueryRow(ctx, sql, run.ID, run.BatchID, run.BBBID, run.RegionName, run.QueryMode, run.Status, run.StartedAt).Scan(&id)
	return id, err
}

func (r *PostgresRepo) UpdateRun(ctx context.Context, run *Run) error {
	const sql = `
		UPDATE export_runs SET
			finished_at = $1,
			status = $2,
			zip_codes = $3,
			records_fetched = $4,
			rows_written = $5,
			records_filtered = $6,
			failed_zips = $7,
			error = $8
		WHERE id = $9`

	_, err := r.db.Exec(ctx, sql, run.FinishedAt, run.Status, run.ZipCodes, run.RecordsFetched, run.RowsWritten,
		run.RecordsFiltered, run.FailedZips, run.Error, run.ID)
	return err
}

func (r *PostgresRepo) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	const sql = `
		SELECT id, batch_id, bbb_id, region_name, query_mode, status, started_at, finished_at,
			zip_codes, records_fetched, rows_written, records_filtered, failed_zips, error
		FROM export_runs
		WHERE ($1 = '' OR bbb_id = $1) AND ($2 = '' OR batch_id = $2)
		ORDER BY started_at DESC
		LIMIT $3`

	rows, err := r.db.Query(ctx, sql, filter.BBBID, filter.BatchID, filter.limit())
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Run, error) {
		var run Run
		err := row.Scan(&run.ID, &run.BatchID, &run.BBBID, &run.RegionName, &run.QueryMode, &run.Status,
			&run.StartedAt, &run.FinishedAt, &run.ZipCodes, &run.RecordsFetched, &run.RowsWritten,
			&run.RecordsFiltered, &run.FailedZips, &run.Error)
		return run, err
	})
}
