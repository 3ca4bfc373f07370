// Package status reports which regions are ready to export, which lack a zip
// file and which already have results.
package status

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"bbbpartner/internal/export"
	"bbbpartner/internal/region"
)

type RegionStatus struct {
	BBBID      string `json:"bbb_id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	HasZipFile bool   `json:"has_zip_file"`
	ZipCodes   int    `json:"zip_codes"`
	ZipError   string `json:"zip_error,omitempty"`
	Processed  bool   `json:"processed"`
}

// Ready reports whether the region can be exported now.
func (s RegionStatus) Ready() bool {
	return s.HasZipFile && s.ZipError == "" && !s.Processed
}

func (s RegionStatus) label() string {
	if s.Name == "" {
		return s.BBBID
	}
	return fmt.Sprintf("%s (%s)", s.BBBID, s.Name)
}

type Report struct {
	Regions     []RegionStatus `json:"regions"`
	Ready       []string       `json:"ready"`
	MissingZips []string       `json:"missing_zips"`
	InvalidZips []string       `json:"invalid_zips"`
	Processed   []string       `json:"processed"`
}

// Check inspects the input and result files of every configured region.
func Check(loader *region.Loader, writer *export.Writer) (*Report, error) {
	assignments, err := loader.Load()
	if err != nil {
		return nil, err
	}

	rep := &Report{
		Regions:     make([]RegionStatus, 0, len(assignments)),
		Ready:       []string{},
		MissingZips: []string{},
		InvalidZips: []string{},
		Processed:   []string{},
	}
	for _, a := range assignments {
		st := RegionStatus{
			BBBID:     a.Region.ID,
			Name:      a.Region.Name,
			Kind:      string(a.Region.Kind),
			ZipCodes:  len(a.ZipCodes),
			Processed: writer.Exists(a.Region.ID),
		}
		_, statErr := os.Stat(loader.ZipFilePath(a.Region.ID))
		st.HasZipFile = statErr == nil
		if a.Err != nil && st.HasZipFile {
			st.ZipError = a.Err.Error()
		}

		switch {
		case !st.HasZipFile:
			rep.MissingZips = append(rep.MissingZips, st.BBBID)
		case st.ZipError != "":
			rep.InvalidZips = append(rep.InvalidZips, st.BBBID)
		}
		if st.Processed {
			rep.Processed = append(rep.Processed, st.BBBID)
		}
		if st.Ready() {
			rep.Ready = append(rep.Ready, st.BBBID)
		}
		rep.Regions = append(rep.Regions, st)
	}
	return rep, nil
}

// SuggestedCommands returns export invocations for the ready regions.
func (r *Report) SuggestedCommands(program string) []string {
	if len(r.Ready) == 0 {
		return nil
	}
	ids := strings.Join(r.Ready, ",")
	return []string{
		fmt.Sprintf("%s --no-notify --bbb-ids %s", program, ids),
		fmt.Sprintf("%s --bbb-ids %s", program, ids),
		fmt.Sprintf("%s --no-notify --bbb-ids %s", program, r.Ready[0]),
	}
}

// WriteText prints the report for a terminal.
func (r *Report) WriteText(w io.Writer, program string) error {
	ew := &errWriter{w: w}
	rule := strings.Repeat("=", 60)

	ew.printf("%s\nBBB Processing Status Check\n%s\n\n", rule, rule)
	byID := make(map[string]RegionStatus, len(r.Regions))
	for _, st := range r.Regions {
		byID[st.BBBID] = st
		zip := "no zip file"
		switch {
		case st.ZipError != "":
			zip = "invalid zip file"
		case st.HasZipFile:
			zip = fmt.Sprintf("%d zip codes", st.ZipCodes)
		}
		processed := "not processed"
		if st.Processed {
			processed = "processed"
		}
		ew.printf("%s %-28s %-16s %s\n", st.BBBID, truncate(st.Name, 28), zip, processed)
	}

	ew.printf("\n%s\nSUMMARY\n%s\n", rule, rule)
	ew.printf("\nTotal BBBs: %d\n", len(r.Regions))
	ew.printf("Ready to process: %d\n", len(r.Ready))
	ew.printf("Already processed: %d\n", len(r.Processed))
	ew.printf("Missing zip files: %d\n", len(r.MissingZips))
	if len(r.InvalidZips) > 0 {
		ew.printf("Invalid zip files: %d\n", len(r.InvalidZips))
	}

	list := func(title string, ids []string) {
		if len(ids) == 0 {
			return
		}
		ew.printf("\n%s:\n", title)
		for _, id := range ids {
			ew.printf("  - %s\n", byID[id].label())
			if e := byID[id].ZipError; e != "" {
				ew.printf("      %s\n", e)
			}
		}
	}
	list("Ready to process", r.Ready)
	list("Missing zip files", r.MissingZips)
	list("Invalid zip files", r.InvalidZips)
	list("Already processed", r.Processed)

	if cmds := r.SuggestedCommands(program); len(cmds) > 0 {
		ew.printf("\n%s\nSUGGESTED COMMANDS\n%s\n", rule, rule)
		ew.printf("\nProcess all ready BBBs (without notifications):\n  %s\n", cmds[0])
		ew.printf("\nProcess all ready BBBs:\n  %s\n", cmds[1])
		ew.printf("\nProcess just the first ready BBB:\n  %s\n", cmds[2])
	}
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// IsConfigurationError reports whether err came from reading the input files.
func IsConfigurationError(err error) bool {
	var cfgErr *region.ConfigurationError
	return errors.As(err, &cfgErr)
}
