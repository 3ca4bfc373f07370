// Package ingest runs the export: for every configured BBB region it queries
// the Partner API, appends the projected rows to the region's result file and
// rewrites the upload files. Each region run is recorded in a ledger.
package ingest

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"bbbpartner/internal/export"
	"bbbpartner/internal/platform/bbbapi"
	"bbbpartner/internal/region"
)

// State is the lifecycle position of one region within a run.
type State string

const (
	StateLoading   State = "LOADING"
	StateFetching  State = "FETCHING"
	StateExporting State = "EXPORTING"
	StateDone      State = "DONE"
	StateFailed    State = "FAILED"
	StateSkipped   State = "SKIPPED"
)

// Ledger statuses.
const (
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
	StatusSkipped   = "SKIPPED"
)

var ErrRunInProgress = errors.New("an export run is already in progress")

// Run is the ledger entry of one region export.
type Run struct {
	ID              string     `json:"id" bson:"_id"`
	BatchID         string     `json:"batch_id" bson:"batch_id"`
	BBBID           string     `json:"bbb_id" bson:"bbb_id"`
	RegionName      string     `json:"region_name" bson:"region_name"`
	QueryMode       string     `json:"query_mode" bson:"query_mode"`
	Status          string     `json:"status" bson:"status"`
	StartedAt       time.Time  `json:"started_at" bson:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty" bson:"finished_at,omitempty"`
	ZipCodes        int        `json:"zip_codes" bson:"zip_codes"`
	RecordsFetched  int        `json:"records_fetched" bson:"records_fetched"`
	RowsWritten     int        `json:"rows_written" bson:"rows_written"`
	RecordsFiltered int        `json:"records_filtered" bson:"records_filtered"`
	FailedZips      int        `json:"failed_zips" bson:"failed_zips"`
	Error           string     `json:"error,omitempty" bson:"error"`
}

// RegionResult is the outcome of one region.
type RegionResult struct {
	Region     region.Region
	State      State
	ZipCodes   int
	Fetched    int
	Written    int
	Filtered   int
	ResultFile string
	Uploads    export.SplitResult
	// Errors holds every failure seen for the region: per-zip retrieval
	// errors and, for a FAILED region, the error that stopped it.
	Errors []error
}

// FailedZips lists the postal codes whose query failed.
func (r RegionResult) FailedZips() []string {
	var zips []string
	for _, err := range r.Errors {
		var re *bbbapi.RetrievalError
		if errors.As(err, &re) && re.PostalCode != "" && !slices.Contains(zips, re.PostalCode) {
			zips = append(zips, re.PostalCode)
		}
	}
	return zips
}

// Err joins the region's errors.
func (r RegionResult) Err() error {
	return errors.Join(r.Errors...)
}

// Report summarises a run over all selected regions.
type Report struct {
	BatchID    string
	StartedAt  time.Time
	FinishedAt time.Time
	Regions    []RegionResult
}

// Count returns the number of regions that ended in state s.
func (r *Report) Count(s State) int {
	n := 0
	for _, res := range r.Regions {
		if res.State == s {
			n++
		}
	}
	return n
}

// Rows is the number of rows written across all regions.
func (r *Report) Rows() int {
	n := 0
	for _, res := range r.Regions {
		n += res.Written
	}
	return n
}

// RetryIDs lists the regions that failed or had failed zip codes, ready for
// --bbb-ids.
func (r *Report) RetryIDs() []string {
	var ids []string
	for _, res := range r.Regions {
		if res.State == StateFailed || len(res.Errors) > 0 {
			ids = append(ids, res.Region.ID)
		}
	}
	return ids
}

// Failed reports whether any unit of work failed.
func (r *Report) Failed() bool {
	return len(r.RetryIDs()) > 0
}

func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "batch=%s regions=%d done=%d failed=%d skipped=%d rows=%d duration=%s",
		r.BatchID, len(r.Regions), r.Count(StateDone), r.Count(StateFailed), r.Count(StateSkipped),
		r.Rows(), r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
	for _, res := range r.Regions {
		if res.State == StateFailed {
			fmt.Fprintf(&b, "\n  FAILED %s: %v", res.Region, res.Err())
			continue
		}
		if zips := res.FailedZips(); len(zips) > 0 {
			fmt.Fprintf(&b, "\n  %s: %d zip code(s) failed: %s", res.Region, len(zips), strings.Join(zips, ","))
		}
	}
	if ids := r.RetryIDs(); len(ids) > 0 {
		fmt.Fprintf(&b, "\n  retry with: --bbb-ids %s", strings.Join(ids, ","))
	}
	return b.String()
}

func ledgerStatus(s State) string {
	switch s {
	case StateDone:
		return StatusCompleted
	case StateSkipped:
		return StatusSkipped
	case StateFailed:
		return StatusFailed
	default:
		return StatusRunning
	}
}
