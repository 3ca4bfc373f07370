package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return recs
}

func TestWriter_CreatesFileWithHeader(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	w := NewWriter(dir)
	assert.False(t, w.Exists("0123"))

	f, err := w.Open("0123")
	require.NoError(t, err)
	require.NoError(t, f.Write(Row{Name: "Acme, Inc", ZipCode: "10001"}))
	assert.Equal(t, 1, f.Rows())
	require.NoError(t, f.Close())

	assert.True(t, w.Exists("0123"))
	recs := readCSV(t, filepath.Join(dir, "0123.csv"))
	require.Len(t, recs, 2)
	assert.Equal(t, Columns, recs[0])
	assert.Equal(t, "Acme, Inc", recs[1][0])
	assert.Equal(t, "10001", recs[1][11])
}

func TestWriter_HeaderOnlyWhenNoRows(t *testing.T) {
	w := NewWriter(t.TempDir())
	f, err := w.Open("0123")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	recs := readCSV(t, w.Path("0123"))
	assert.Equal(t, [][]string{Columns}, recs)
}

func TestWriter_AppendsAcrossRuns(t *testing.T) {
	w := NewWriter(t.TempDir())

	for run := 0; run < 2; run++ {
		f, err := w.Open("0123")
		require.NoError(t, err)
		require.NoError(t, f.Write(Row{Name: "Acme"}, Row{Name: "Globex"}))
		require.NoError(t, f.Close())
	}

	recs := readCSV(t, w.Path("0123"))
	// one header, rows duplicated by the second run
	require.Len(t, recs, 5)
	assert.Equal(t, Columns, recs[0])
	assert.Equal(t, []string{"Acme", "Globex", "Acme", "Globex"}, []string{recs[1][0], recs[2][0], recs[3][0], recs[4][0]})
}

func TestWriter_ExportError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := NewWriter(blocker).Open("0123")
	var exportErr *ExportError
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, "mkdir", exportErr.Op)
}

func TestReadRows(t *testing.T) {
	w := NewWriter(t.TempDir())
	f, err := w.Open("0123")
	require.NoError(t, err)
	require.NoError(t, f.Write(Row{Name: "Acme"}))
	require.NoError(t, f.Close())

	fh, err := os.OpenFile(w.Path("0123"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = fh.WriteString("short,row\n")
	require.NoError(t, err)
	require.NoError(t, fh.Close())

	rows, err := ReadRows(w.Path("0123"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Acme", rows[0].Name)

	_, err = ReadRows(filepath.Join(t.TempDir(), "missing.csv"))
	var exportErr *ExportError
	assert.ErrorAs(t, err, &exportErr)
}
