package ingest

import (
	"context"
	"database/sql"
)

// SQLiteRepo keeps the ledger in a local sqlite file, for single-machine use
// without a database server.
type SQLiteRepo struct {
	db *sql.DB
}

func NewSQLiteRepo(db *sql.DB) *SQLiteRepo {
	return &SQLiteRepo{db: db}
}

func (r *SQLiteRepo) CreateRun(ctx context.Context, run *Run) (string, error) {
	const q = `
		INSERT INTO export_runs (id, batch_id, bbb_id, region_name, query_mode, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	if _, err := r.db.ExecContext(ctx, q, run.ID, run.BatchID, run.BBBID, run.RegionName, run.QueryMode, run.Status, run.StartedAt); err != nil {
		return "", err
	}
	return run.ID, nil
}

func (r *SQLiteRepo) UpdateRun(ctx context.Context, run *Run) error {
	const q = `
		UPDATE export_runs SET
			finished_at = ?,
			status = ?,
			zip_codes = ?,
			records_fetched = ?,
			rows_written = ?,
			records_filtered = ?,
			failed_zips = ?,
			error = ?
		WHERE id = ?`

	_, err := r.db.ExecContext(ctx, q, run.FinishedAt, run.Status, run.ZipCodes, run.RecordsFetched, run.RowsWritten,
		run.RecordsFiltered, run.FailedZips, run.Error, run.ID)
	return err
}

func (r *SQLiteRepo) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	const q = `
		SELECT id, batch_id, bbb_id, region_name, query_mode, status, started_at, finished_at,
			zip_codes, records_fetched, rows_written, records_filtered, failed_zips, error
		FROM export_runs
		WHERE (? = '' OR bbb_id = ?) AND (? = '' OR batch_id = ?)
		ORDER BY started_at DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, q, filter.BBBID, filter.BBBID, filter.BatchID, filter.BatchID, filter.limit())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var finished sql.NullTime
		if err := rows.Scan(&run.ID, &run.BatchID, &run.BBBID, &run.RegionName, &run.QueryMode, &run.Status,
			&run.StartedAt, &finished, &run.ZipCodes, &run.RecordsFetched, &run.RowsWritten,
			&run.RecordsFiltered, &run.FailedZips, &run.Error); err != nil {
			return nil, err
		}
		if finished.Valid {
			t := finished.Time
			run.FinishedAt = &t
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// sqliteSchema mirrors db/migrations for callers that do not run goose
// against the sqlite file.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS export_runs (
	id TEXT PRIMARY KEY,
	batch_id TEXT NOT NULL,
	bbb_id TEXT NOT NULL,
	region_name TEXT NOT NULL DEFAULT '',
	query_mode TEXT NOT NULL DEFAULT 'zip',
	status TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	zip_codes INTEGER NOT NULL DEFAULT 0,
	records_fetched INTEGER NOT NULL DEFAULT 0,
	rows_written INTEGER NOT NULL DEFAULT 0,
	records_filtered INTEGER NOT NULL DEFAULT 0,
	failed_zips INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_export_runs_started_at ON export_runs (started_at);
CREATE INDEX IF NOT EXISTS idx_export_runs_bbb_id ON export_runs (bbb_id);
CREATE INDEX IF NOT EXISTS idx_export_runs_batch_id ON export_runs (batch_id);`

// EnsureSchema creates the ledger table when it does not exist yet.
func (r *SQLiteRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, sqliteSchema)
	return err
}
