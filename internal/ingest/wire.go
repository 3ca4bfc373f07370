package ingest

import (
	"context"
	"io"

	"bbbpartner/internal/config"
	"bbbpartner/internal/export"
	"bbbpartner/internal/platform/archive"
	"bbbpartner/internal/platform/bbbapi"
	"bbbpartner/internal/region"
)

// NewAPIClient builds the Partner API client from configuration.
func NewAPIClient(cfg config.APIConfig) *bbbapi.Client {
	return bbbapi.NewClient(bbbapi.Options{
		BaseURL:      cfg.BaseURL,
		Token:        cfg.Token,
		PageSize:     cfg.PageSize,
		Timeout:      cfg.Timeout,
		MaxRetries:   cfg.MaxRetries,
		MaxRetryWait: cfg.MaxRetryWait,
		RPS:          cfg.RPS,
	})
}

// Build wires a Service with its ledger and optional archive from cfg. The
// returned close function releases the ledger connection.
func Build(ctx context.Context, cfg *config.Config, progress io.Writer) (*Service, Repository, func(), error) {
	repo, closeRepo, err := OpenRepository(ctx, cfg.Ledger)
	if err != nil {
		return nil, nil, nil, err
	}

	svc := NewService(
		region.NewLoader(cfg.RegionsFile, cfg.ZipsDir),
		NewAPIClient(cfg.API),
		export.NewWriter(cfg.ResultsDir),
		repo,
		Config{QueryMode: cfg.API.QueryMode, UploadsDir: cfg.UploadsDir, Progress: progress},
	)

	if cfg.Archive.Enabled() {
		a, err := archive.New(ctx, cfg.Archive)
		if err != nil {
			closeRepo()
			return nil, nil, nil, err
		}
		svc.SetArchiver(a)
	}
	return svc, repo, closeRepo, nil
}
