package main

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"bbbpartner/internal/platform/database"

	"github.com/pressly/goose/v3"
)

func repoMigrationsDir(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// this file lives in cmd/migrate/, so repo root is ../..
	repoRoot := filepath.Clean(filepath.Join(filepath.Dir(thisFile), "..", ".."))
	return filepath.Join(repoRoot, "db", "migrations")
}

func TestCollectMigrations_ParsesMigrationsDir(t *testing.T) {
	if _, err := goose.CollectMigrations(repoMigrationsDir(t), 0, goose.MaxVersion); err != nil {
		t.Fatalf("expected migrations to parse, got error: %v", err)
	}
}

func TestMigrations_UpDownOnSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	if err := goose.SetDialect("sqlite3"); err != nil {
		t.Fatalf("set dialect: %v", err)
	}
	dir := repoMigrationsDir(t)
	if err := goose.UpContext(ctx, db, dir); err != nil {
		t.Fatalf("up: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO export_runs (id, batch_id, bbb_id, status, started_at) VALUES ('r', 'b', '0123', 'RUNNING', CURRENT_TIMESTAMP)`); err != nil {
		t.Fatalf("insert after up: %v", err)
	}
	if err := goose.DownContext(ctx, db, dir); err != nil {
		t.Fatalf("down: %v", err)
	}
}
