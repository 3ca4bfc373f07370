package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitIDs(t *testing.T) {
	assert.Equal(t, []string{"0123", "0456"}, splitIDs("0123,0456"))
	assert.Equal(t, []string{"0123", "0456", "995"}, splitIDs(" 0123 , 0456 995,"))
	assert.Empty(t, splitIDs(""))
}

// exportEnv prepares input files for region 0123 with zips 10001 and 10002
// and points the configuration at them and at apiURL.
func exportEnv(t *testing.T, apiURL string) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "zips"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bbb_ids.csv"), []byte("0123,Blue,Central Ohio\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zips", "0123_zips.csv"), []byte("10001\n10002\n"), 0o644))

	env := map[string]string{
		"BBB_REGIONS_FILE":    filepath.Join(dir, "bbb_ids.csv"),
		"BBB_ZIPS_DIR":        filepath.Join(dir, "zips"),
		"BBB_RESULTS_DIR":     filepath.Join(dir, "results"),
		"BBB_UPLOADS_DIR":     filepath.Join(dir, "uploads"),
		"BBB_API_BASE_URL":    apiURL,
		"BBB_API_TOKEN":       "tok",
		"BBB_API_MAX_RETRIES": "0",
		"BBB_API_RPS":         "0",
		"BBB_API_PAGE_SIZE":   "",
		"BBB_QUERY_MODE":      "",
		"BBB_IGNORE_IDS":      "",
		"LEDGER_DRIVER":       "",
		"LEDGER_DSN":          "",
		"ARCHIVE_BUCKET":      "",
		"NOTIFY_DISABLED":     "true",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
	return dir
}

func TestRun_ExitCodes(t *testing.T) {
	var failSecondZip atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("PostalCode") == "10002" && failSecondZip.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"totalResults":1,"searchResults":[{"organizationName":"Acme","postalCode":"` +
			r.URL.Query().Get("PostalCode") + `"}]}`))
	}))
	defer srv.Close()

	tests := []struct {
		name      string
		env       map[string]string
		args      []string
		failZip   bool
		cancelled bool
		want      int
		summary   string
	}{
		{name: "success", args: []string{"--progress=false"}, want: exitOK, summary: "done=1 failed=0"},
		{name: "failed zip", failZip: true, args: []string{"--progress=false"},
			want: exitFailures, summary: "retry with: --bbb-ids 0123"},
		{name: "interrupted", args: []string{"--progress=false"}, cancelled: true, want: exitFailures},
		{name: "missing token", env: map[string]string{"BBB_API_TOKEN": ""}, want: exitBadConfig},
		{name: "missing region list", env: map[string]string{"BBB_REGIONS_FILE": "nope.csv"}, args: []string{"--progress=false"}, want: exitBadConfig},
		{name: "invalid setting", env: map[string]string{"BBB_API_PAGE_SIZE": "lots"}, want: exitBadConfig},
		{name: "unknown flag", args: []string{"--frobnicate"}, want: exitBadConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exportEnv(t, srv.URL)
			failSecondZip.Store(tt.failZip)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancelled {
				cancel()
			}

			var stdout bytes.Buffer
			got := run(ctx, tt.args, &stdout, io.Discard)
			assert.Equal(t, tt.want, got)
			if tt.summary != "" {
				assert.Contains(t, stdout.String(), tt.summary)
			}
		})
	}
}

func TestRun_WritesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("PostalCode") == "10002" {
			_, _ = w.Write([]byte(`{"totalResults":0,"searchResults":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"totalResults":1,"searchResults":[{"organizationName":"Acme","postalCode":"10001"}]}`))
	}))
	defer srv.Close()
	dir := exportEnv(t, srv.URL)

	require.Equal(t, exitOK, run(context.Background(), []string{"--progress=false", "--bbb-ids", "0123"}, io.Discard, io.Discard))

	data, err := os.ReadFile(filepath.Join(dir, "results", "0123.csv"))
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(data, []byte("\n")))
	assert.Contains(t, string(data), "Acme")
}
