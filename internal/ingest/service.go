package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"bbbpartner/internal/config"
	"bbbpartner/internal/export"
	"bbbpartner/internal/platform/bbbapi"
	"bbbpartner/internal/region"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
)

type Searcher interface {
	SearchPostalCode(ctx context.Context, bbbID, postalCode string) ([]bbbapi.Organization, error)
	SearchRegion(ctx context.Context, bbbID string, onPage bbbapi.PageFunc) ([]bbbapi.Organization, error)
}

// Archiver copies a finished file to long-term storage and returns its key.
type Archiver interface {
	Upload(ctx context.Context, path string) (string, error)
}

type Config struct {
	QueryMode  string
	UploadsDir string
	// Progress receives the per-region progress bar. Nil disables it.
	Progress io.Writer
}

// Options select what a single run does.
type Options struct {
	Only          []string
	Ignore        []string
	SkipProcessed bool
}

type Service struct {
	loader   *region.Loader
	api      Searcher
	writer   *export.Writer
	repo     Repository
	archiver Archiver
	cfg      Config

	mu sync.Mutex
	wg sync.WaitGroup
}

func NewService(loader *region.Loader, api Searcher, writer *export.Writer, repo Repository, cfg Config) *Service {
	if repo == nil {
		repo = NopRepo{}
	}
	if cfg.QueryMode == "" {
		cfg.QueryMode = config.QueryModeZip
	}
	return &Service{
		loader: loader,
		api:    api,
		writer: writer,
		repo:   repo,
		cfg:    cfg,
	}
}

// SetArchiver enables copying result and upload files after each region.
func (s *Service) SetArchiver(a Archiver) {
	s.archiver = a
}

// Run exports every selected region and blocks until done. It fails only
// when the region list cannot be read or ctx is cancelled; per-region
// failures are reported in the Report.
func (s *Service) Run(ctx context.Context, opts Options) (*Report, error) {
	if !s.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.mu.Unlock()
	return s.run(ctx, uuid.NewString(), opts)
}

// Start runs the export in the background and returns its batch id. done,
// when non-nil, is called with the outcome.
func (s *Service) Start(ctx context.Context, opts Options, done func(*Report, error)) (string, error) {
	if !s.mu.TryLock() {
		return "", ErrRunInProgress
	}
	batchID := uuid.NewString()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.mu.Unlock()
		rep, err := s.run(ctx, batchID, opts)
		if done != nil {
			done(rep, err)
		}
	}()
	return batchID, nil
}

// Wait blocks until runs launched by Start have finished, including their
// ledger updates and done callbacks, or until ctx ends.
func (s *Service) Wait(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) run(ctx context.Context, batchID string, opts Options) (*Report, error) {
	rep := &Report{BatchID: batchID, StartedAt: time.Now()}
	log.Printf("export start batch=%s state=%s mode=%s", batchID, StateLoading, s.cfg.QueryMode)

	regions, err := s.loader.LoadRegions()
	if err != nil {
		return nil, err
	}
	selected := region.Filter(regions, opts.Only, opts.Ignore)
	warnUnknownIDs(regions, opts.Only)
	log.Printf("export regions batch=%s configured=%d selected=%d", batchID, len(regions), len(selected))

	for i, r := range selected {
		if err := ctx.Err(); err != nil {
			rep.FinishedAt = time.Now()
			return rep, err
		}
		log.Printf("region %d/%d bbb_id=%s name=%q", i+1, len(selected), r.ID, r.Name)
		rep.Regions = append(rep.Regions, s.runRegion(ctx, batchID, r, opts))
	}

	rep.FinishedAt = time.Now()
	log.Printf("export finished %s", strings.ReplaceAll(rep.Summary(), "\n", " |"))
	return rep, ctx.Err()
}

func (s *Service) runRegion(ctx context.Context, batchID string, r region.Region, opts Options) (res RegionResult) {
	start := time.Now()
	res = RegionResult{Region: r, State: StateLoading, ResultFile: s.writer.Path(r.ID)}

	run := &Run{
		ID:         uuid.NewString(),
		BatchID:    batchID,
		BBBID:      r.ID,
		RegionName: r.Name,
		QueryMode:  s.cfg.QueryMode,
		Status:     StatusRunning,
		StartedAt:  start.UTC(),
	}
	if id, err := s.repo.CreateRun(ctx, run); err != nil {
		log.Printf("ledger create failed bbb_id=%s err=%v", r.ID, err)
	} else if id != "" {
		run.ID = id
	}

	defer func() {
		now := time.Now().UTC()
		run.FinishedAt = &now
		run.Status = ledgerStatus(res.State)
		run.ZipCodes = res.ZipCodes
		run.RecordsFetched = res.Fetched
		run.RowsWritten = res.Written
		run.RecordsFiltered = res.Filtered
		failed := res.FailedZips()
		run.FailedZips = len(failed)
		switch {
		case res.State == StateFailed:
			run.Error = res.Err().Error()
		case len(failed) > 0:
			run.Error = "failed zip codes: " + strings.Join(failed, ",")
		}
		if err := s.repo.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
			log.Printf("ledger update failed run_id=%s bbb_id=%s err=%v", run.ID, r.ID, err)
		}
		log.Printf("region finished bbb_id=%s state=%s zips=%d fetched=%d written=%d filtered=%d failed_zips=%d duration_ms=%d",
			r.ID, res.State, res.ZipCodes, res.Fetched, res.Written, res.Filtered, len(failed), time.Since(start).Milliseconds())
	}()

	if opts.SkipProcessed && s.writer.Exists(r.ID) {
		log.Printf("region skipped bbb_id=%s reason=already_processed file=%s", r.ID, res.ResultFile)
		res.State = StateSkipped
		return res
	}

	zips, err := s.loader.LoadZipCodes(r)
	if err != nil {
		return fail(res, err)
	}
	res.ZipCodes = len(zips)

	file, err := s.writer.Open(r.ID)
	if err != nil {
		return fail(res, err)
	}

	if s.cfg.QueryMode == config.QueryModeRegion {
		err = s.fetchRegion(ctx, r, zips, file, &res)
	} else {
		err = s.fetchZips(ctx, r, zips, file, &res)
	}
	if err := errors.Join(err, file.Close()); err != nil {
		return fail(res, err)
	}

	res.State = StateExporting
	split, err := export.Split(file.Path(), s.cfg.UploadsDir, r)
	if err != nil {
		return fail(res, err)
	}
	res.Uploads = split
	s.archive(ctx, r, append([]string{file.Path()}, split.Files...))

	res.State = StateDone
	return res
}

// fetchZips queries each zip code in turn and appends its rows right away, so
// a later failure keeps what was already written.
func (s *Service) fetchZips(ctx context.Context, r region.Region, zips []string, file *export.File, res *RegionResult) error {
	bar := s.progress(len(zips), fmt.Sprintf("BBB %s", r.ID))
	defer func() { _ = bar.Finish() }()

	for _, zip := range zips {
		if err := ctx.Err(); err != nil {
			return err
		}
		res.State = StateFetching
		orgs, err := s.api.SearchPostalCode(ctx, r.ID, zip)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			log.Printf("zip failed bbb_id=%s zip=%s records=%d err=%v", r.ID, zip, len(orgs), err)
			res.Errors = append(res.Errors, err)
		}
		res.Fetched += len(orgs)

		res.State = StateExporting
		if err := writeRows(file, project(orgs), res); err != nil {
			return err
		}
		_ = bar.Add(1)
	}
	return nil
}

// fetchRegion pulls the whole region and keeps the records located in one of
// the region's zip codes.
func (s *Service) fetchRegion(ctx context.Context, r region.Region, zips []string, file *export.File, res *RegionResult) error {
	want := make(map[string]bool, len(zips))
	for _, z := range zips {
		want[z] = true
	}

	bar := s.progress(-1, fmt.Sprintf("BBB %s pages", r.ID))
	defer func() { _ = bar.Finish() }()

	res.State = StateFetching
	orgs, err := s.api.SearchRegion(ctx, r.ID, func(page, pages int) {
		bar.ChangeMax(pages)
		_ = bar.Set(page)
	})
	res.Fetched = len(orgs)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		log.Printf("region query failed bbb_id=%s records=%d err=%v", r.ID, len(orgs), err)
		res.Errors = append(res.Errors, err)
	}

	var rows []export.Row
	for _, row := range project(orgs) {
		if want[row.ZipCode] {
			rows = append(rows, row)
		}
	}
	res.Filtered = len(orgs) - len(rows)
	if res.Filtered > 0 {
		log.Printf("records outside zip list bbb_id=%s filtered=%d", r.ID, res.Filtered)
	}

	res.State = StateExporting
	return writeRows(file, rows, res)
}

func (s *Service) archive(ctx context.Context, r region.Region, paths []string) {
	if s.archiver == nil {
		return
	}
	for _, p := range paths {
		key, err := s.archiver.Upload(ctx, p)
		if err != nil {
			log.Printf("archive failed bbb_id=%s file=%s err=%v", r.ID, p, err)
			continue
		}
		log.Printf("archived bbb_id=%s file=%s key=%s", r.ID, p, key)
	}
}

func (s *Service) progress(total int, desc string) *progressbar.ProgressBar {
	w := s.cfg.Progress
	if w == nil {
		w = io.Discard
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func project(orgs []bbbapi.Organization) []export.Row {
	rows := make([]export.Row, 0, len(orgs))
	for _, o := range orgs {
		rows = append(rows, export.Project(o))
	}
	return rows
}

func writeRows(file *export.File, rows []export.Row, res *RegionResult) error {
	if len(rows) == 0 {
		return nil
	}
	if err := file.Write(rows...); err != nil {
		return err
	}
	res.Written += len(rows)
	return nil
}

func fail(res RegionResult, err error) RegionResult {
	log.Printf("region failed bbb_id=%s state=%s err=%v", res.Region.ID, res.State, err)
	res.State = StateFailed
	res.Errors = append(res.Errors, err)
	return res
}

func warnUnknownIDs(regions []region.Region, only []string) {
	known := make(map[string]bool, len(regions))
	for _, r := range regions {
		known[r.ID] = true
	}
	for _, id := range only {
		if !known[region.NormalizeID(id)] {
			log.Printf("unknown bbb id ignored bbb_id=%s", id)
		}
	}
}
