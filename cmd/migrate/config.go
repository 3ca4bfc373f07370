package main

import (
	"fmt"
	"os"
	"strings"

	"bbbpartner/internal/config"
	"bbbpartner/internal/platform/database"
)

func loadEnvFiles() {
	// Do not override environment provided by the runtime (e.g. Docker).
	config.LoadEnvFiles()
}

func migrationsDir() string {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return "db/migrations"
}

// ledgerTarget returns the goose dialect and DSN for the configured ledger.
func ledgerTarget() (dialect, dsn string, err error) {
	driver := strings.ToLower(os.Getenv("LEDGER_DRIVER"))
	dsn = os.Getenv("LEDGER_DSN")
	switch driver {
	case database.DriverPostgres:
		dialect = "postgres"
	case database.DriverSQLite:
		dialect = "sqlite3"
	case "":
		return "", "", fmt.Errorf("LEDGER_DRIVER is not set; nothing to migrate")
	case database.DriverMongo:
		return "", "", fmt.Errorf("the mongo ledger needs no migrations")
	default:
		return "", "", fmt.Errorf("unknown LEDGER_DRIVER %q", driver)
	}
	if dsn == "" {
		return "", "", fmt.Errorf("LEDGER_DSN is required for %s", driver)
	}
	return dialect, dsn, nil
}
