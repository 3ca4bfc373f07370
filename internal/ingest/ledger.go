package ingest

import (
	"context"
	"fmt"

	"bbbpartner/internal/config"
	"bbbpartner/internal/platform/database"
)

// OpenRepository connects the ledger backend selected by cfg.Driver. The
// returned close function releases the connection; it is never nil.
func OpenRepository(ctx context.Context, cfg config.LedgerConfig) (Repository, func(), error) {
	switch cfg.Driver {
	case "":
		return NopRepo{}, func() {}, nil
	case database.DriverPostgres:
		pool, err := database.OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return NewPostgresRepo(pool), pool.Close, nil
	case database.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		repo := NewSQLiteRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("create sqlite ledger schema: %w", err)
		}
		return repo, func() { _ = db.Close() }, nil
	case database.DriverMongo:
		client, dbName, err := database.OpenMongo(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return NewMongoRepo(client, dbName), func() { _ = client.Disconnect(context.Background()) }, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger driver %q", cfg.Driver)
	}
}
