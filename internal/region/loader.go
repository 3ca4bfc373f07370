package region

import (
	"encoding/csv"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	idWidth  = 4
	zipWidth = 5
)

// Loader reads the region list and the per-region zip files.
type Loader struct {
	regionsFile string
	zipsDir     string
}

func NewLoader(regionsFile, zipsDir string) *Loader {
	return &Loader{regionsFile: regionsFile, zipsDir: zipsDir}
}

// ZipFilePath returns where the zip list of the given BBB ID is expected.
func (l *Loader) ZipFilePath(bbbID string) string {
	return filepath.Join(l.zipsDir, bbbID+"_zips.csv")
}

// LoadRegions reads the region list. Rows are "id,kind,name" or "id,name".
func (l *Loader) LoadRegions() ([]Region, error) {
	records, err := readRecords(l.regionsFile)
	if err != nil {
		return nil, &ConfigurationError{Path: l.regionsFile, Reason: "cannot read region list", Err: err}
	}

	var regions []Region
	for i, rec := range records {
		if isBlank(rec) {
			continue
		}
		id := NormalizeID(rec[0])
		if id == "" {
			if len(regions) == 0 && i == firstNonBlank(records) {
				continue // header
			}
			return nil, &ConfigurationError{Path: l.regionsFile, Line: i + 1, Reason: "row has no BBB ID"}
		}

		r := Region{ID: id, Kind: KindBlue}
		switch {
		case len(rec) >= 3:
			r.Kind = parseKind(rec[1])
			r.Name = clean(rec[2])
		case len(rec) == 2:
			r.Name = clean(rec[1])
		}
		regions = append(regions, r)
	}

	if len(regions) == 0 {
		return nil, &ConfigurationError{Path: l.regionsFile, Reason: "region list is empty"}
	}
	return regions, nil
}

// LoadZipCodes reads the zip file of one region. The zip is the first column,
// or the second when a row has exactly two columns. Repeated zips are kept
// once, in first-seen order.
func (l *Loader) LoadZipCodes(r Region) ([]string, error) {
	path := l.ZipFilePath(r.ID)
	records, err := readRecords(path)
	if err != nil {
		reason := "cannot read zip file"
		if errors.Is(err, os.ErrNotExist) {
			reason = "zip file not found"
		}
		return nil, &ConfigurationError{Path: path, Region: r.ID, Reason: reason, Err: err}
	}

	var zips []string
	seen := make(map[string]bool)
	for i, rec := range records {
		if isBlank(rec) {
			continue
		}
		value := rec[0]
		if len(rec) == 2 {
			value = rec[1]
		}
		zip, ok := NormalizeZip(value)
		if !ok {
			if len(zips) == 0 && i == firstNonBlank(records) {
				continue // header
			}
			return nil, &ConfigurationError{Path: path, Region: r.ID, Line: i + 1, Reason: "invalid zip code " + strconv.Quote(value)}
		}
		if seen[zip] {
			log.Printf("duplicate zip dropped bbb_id=%s zip=%s line=%d", r.ID, zip, i+1)
			continue
		}
		seen[zip] = true
		zips = append(zips, zip)
	}

	if len(zips) == 0 {
		return nil, &ConfigurationError{Path: path, Region: r.ID, Reason: "zip file has no zip codes"}
	}
	return zips, nil
}

// Load returns one assignment per region, in region-list order. Only a
// failure to read the region list itself is returned as an error.
func (l *Loader) Load() ([]Assignment, error) {
	regions, err := l.LoadRegions()
	if err != nil {
		return nil, err
	}

	out := make([]Assignment, 0, len(regions))
	for _, r := range regions {
		zips, err := l.LoadZipCodes(r)
		out = append(out, Assignment{Region: r, ZipCodes: zips, Err: err})
	}
	return out, nil
}

// Filter keeps only the ids in only when it is non-empty; otherwise it drops
// the ids in ignore.
func Filter(regions []Region, only, ignore []string) []Region {
	if len(only) > 0 {
		keep := idSet(only)
		var out []Region
		for _, r := range regions {
			if keep[r.ID] {
				out = append(out, r)
			}
		}
		return out
	}

	drop := idSet(ignore)
	var out []Region
	for _, r := range regions {
		if !drop[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

// NormalizeID strips everything but digits and left pads to four digits.
// It returns "" when the value holds no digits.
func NormalizeID(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	id := b.String()
	if id == "" {
		return ""
	}
	return leftPad(id, idWidth)
}

// NormalizeZip validates a US zip code. ZIP+4 values are cut to five digits and
// zips that lost their leading zeros in a spreadsheet are padded back.
func NormalizeZip(s string) (string, bool) {
	z := clean(s)
	if i := strings.IndexByte(z, '-'); i > 0 {
		z = z[:i]
	}
	if len(z) < 3 || len(z) > zipWidth {
		return "", false
	}
	for _, c := range z {
		if c < '0' || c > '9' {
			return "", false
		}
	}
	return leftPad(z, zipWidth), true
}

func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		if n := NormalizeID(id); n != "" {
			set[n] = true
		}
	}
	return set
}

func readRecords(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return parseRecords(f)
}

func parseRecords(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.UTF8BOM.NewDecoder()))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr.ReadAll()
}

func firstNonBlank(records [][]string) int {
	for i, rec := range records {
		if !isBlank(rec) {
			return i
		}
	}
	return -1
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if clean(v) != "" {
			return false
		}
	}
	return true
}

func clean(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\ufeff", ""))
}

func leftPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
