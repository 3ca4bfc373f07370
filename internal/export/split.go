package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"slices"

	"bbbpartner/internal/region"
)

const (
	blueProfileBase    = "https://bluebbb.org/core/manage/?firm="
	hurdmanProfileBase = "https://lubbockweb.ebindr.com/ebindr/#"
)

// Category is one of the upload files a result file is split into.
type Category string

const (
	Accredited                       Category = "accredited"
	AccreditedButNotRated            Category = "accredited_but_not_rated"
	RatedButNotAccredited            Category = "rated_but_not_accredited"
	NotRatedAndNotAccredited         Category = "not_rated_and_not_accredited"
	ContractorsRatedButNotAccredited Category = "contractors_rated_but_not_accredited"
	ContractorsNotRated              Category = "contractors_not_rated"
	LicensedRecords                  Category = "licensed_records"
	LicensedInactiveRecords          Category = "licensed_inactive_records"
	LicensedAccreditedRecords        Category = "licensed_accredited_records"
)

// Categories lists every upload file in the order they are written.
var Categories = []Category{
	Accredited,
	AccreditedButNotRated,
	RatedButNotAccredited,
	NotRatedAndNotAccredited,
	ContractorsRatedButNotAccredited,
	ContractorsNotRated,
	LicensedRecords,
	LicensedInactiveRecords,
	LicensedAccreditedRecords,
}

// Classify returns every category a row belongs to.
func Classify(r Row) []Category {
	rated := r.IsRated()
	accredited := r.IsAccredited()
	contractor := r.IsContractor()

	var out []Category
	if accredited {
		out = append(out, Accredited)
	}
	if accredited && !rated {
		out = append(out, AccreditedButNotRated)
	}
	if rated && !accredited {
		out = append(out, RatedButNotAccredited)
	}
	if !accredited && !rated {
		out = append(out, NotRatedAndNotAccredited)
	}
	if contractor && rated && !accredited {
		out = append(out, ContractorsRatedButNotAccredited)
	}
	if contractor && !rated {
		out = append(out, ContractorsNotRated)
	}
	if r.IsLicensed() {
		switch {
		case r.LicenseStatus == LicenseActive && accredited:
			out = append(out, LicensedAccreditedRecords)
		case r.LicenseStatus == LicenseActive:
			out = append(out, LicensedRecords)
		default:
			out = append(out, LicensedInactiveRecords)
		}
	}
	return out
}

// UploadHeader is the header of the upload files: the result columns without
// the street address, with the back-office profile link in fifth place.
func UploadHeader(kind region.Kind) []string {
	label := "Blue Profile URL"
	if kind == region.KindHurdman {
		label = "Hurdman Profile URL"
	}
	return uploadValues(Columns, label)
}

// UploadValues renders a row for an upload file.
func UploadValues(r Row, kind region.Kind) []string {
	base := blueProfileBase
	if kind == region.KindHurdman {
		base = hurdmanProfileBase
	}
	return uploadValues(r.Values(), base+r.BusinessID)
}

func uploadValues(vals []string, profile string) []string {
	// drop Address, City, State, Zip Code
	out := slices.Concat(vals[:8], vals[12:])
	return slices.Insert(out, 4, profile)
}

// UploadPath is the file a category of a BBB is written to.
func UploadPath(dir, bbbID string, c Category) string {
	return filepath.Join(dir, bbbID+"_"+string(c)+".csv")
}

// SplitResult counts the rows written per category.
type SplitResult struct {
	Rows   int
	Counts map[Category]int
	Files  []string
}

// Split rewrites the upload files of a BBB from its result file.
func Split(resultsPath, uploadsDir string, r region.Region) (SplitResult, error) {
	rows, err := ReadRows(resultsPath)
	if err != nil {
		return SplitResult{}, err
	}
	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		return SplitResult{}, &ExportError{Path: uploadsDir, Op: "mkdir", Err: err}
	}

	res := SplitResult{Rows: len(rows), Counts: make(map[Category]int, len(Categories))}
	writers := make(map[Category]*csv.Writer, len(Categories))
	paths := make(map[Category]string, len(Categories))
	var files []*os.File
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	header := UploadHeader(r.Kind)
	for _, c := range Categories {
		path := UploadPath(uploadsDir, r.ID, c)
		f, err := os.Create(path)
		if err != nil {
			return SplitResult{}, &ExportError{Path: path, Op: "create", Err: err}
		}
		files = append(files, f)
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			return SplitResult{}, &ExportError{Path: path, Op: "write", Err: err}
		}
		writers[c] = w
		paths[c] = path
		res.Files = append(res.Files, path)
	}

	for _, row := range rows {
		vals := UploadValues(row, r.Kind)
		for _, c := range Classify(row) {
			if err := writers[c].Write(vals); err != nil {
				return SplitResult{}, &ExportError{Path: paths[c], Op: "write", Err: err}
			}
			res.Counts[c]++
		}
	}

	for _, c := range Categories {
		writers[c].Flush()
		if err := writers[c].Error(); err != nil {
			return SplitResult{}, &ExportError{Path: paths[c], Op: "flush", Err: err}
		}
	}
	for _, f := range files {
		if err := f.Close(); err != nil {
			return SplitResult{}, &ExportError{Path: f.Name(), Op: "close", Err: err}
		}
	}
	files = nil
	return res, nil
}
