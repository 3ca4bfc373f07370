package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

// ExportError reports a failed file operation while writing output.
type ExportError struct {
	Path string
	Op   string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error op=%s path=%s: %v", e.Op, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// Writer appends result rows to one CSV file per BBB inside dir.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

func (w *Writer) Path(bbbID string) string {
	return filepath.Join(w.dir, bbbID+".csv")
}

// Exists reports whether a result file is already present for the BBB.
func (w *Writer) Exists(bbbID string) bool {
	info, err := os.Stat(w.Path(bbbID))
	return err == nil && !info.IsDir()
}

// Open opens the BBB's result file for appending. A header row is written
// when the file is new or empty.
func (w *Writer) Open(bbbID string) (*File, error) {
	path := w.Path(bbbID)
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, &ExportError{Path: w.dir, Op: "mkdir", Err: err}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &ExportError{Path: path, Op: "open", Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &ExportError{Path: path, Op: "stat", Err: err}
	}

	out := &File{path: path, f: f, cw: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := out.writeRecord(Columns); err != nil {
			f.Close()
			return nil, err
		}
	}
	return out, nil
}

// File is an open result file.
type File struct {
	path string
	f    *os.File
	cw   *csv.Writer
	rows int
}

func (f *File) Path() string {
	return f.path
}

// Rows is the number of rows appended through this handle.
func (f *File) Rows() int {
	return f.rows
}

// Write appends rows and flushes them to disk.
func (f *File) Write(rows ...Row) error {
	for _, r := range rows {
		if err := f.cw.Write(r.Values()); err != nil {
			return &ExportError{Path: f.path, Op: "write", Err: err}
		}
	}
	f.cw.Flush()
	if err := f.cw.Error(); err != nil {
		return &ExportError{Path: f.path, Op: "write", Err: err}
	}
	f.rows += len(rows)
	return nil
}

func (f *File) Close() error {
	f.cw.Flush()
	flushErr := f.cw.Error()
	closeErr := f.f.Close()
	if err := errors.Join(flushErr, closeErr); err != nil {
		return &ExportError{Path: f.path, Op: "close", Err: err}
	}
	return nil
}

func (f *File) writeRecord(rec []string) error {
	if err := f.cw.Write(rec); err != nil {
		return &ExportError{Path: f.path, Op: "write", Err: err}
	}
	f.cw.Flush()
	if err := f.cw.Error(); err != nil {
		return &ExportError{Path: f.path, Op: "write", Err: err}
	}
	return nil
}

// ReadRows reads a result file back. The header and rows with the wrong
// number of columns are skipped; the latter are logged.
func ReadRows(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ExportError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	var rows []Row
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ExportError{Path: path, Op: "read", Err: err}
		}
		line++
		if line == 1 && len(rec) > 0 && rec[0] == Columns[0] {
			continue
		}
		row, err := ParseRow(rec)
		if err != nil {
			log.Printf("export skip row path=%s line=%d err=%v", path, line, err)
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
