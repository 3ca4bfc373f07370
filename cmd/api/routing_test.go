package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bbbpartner/internal/config"
	"bbbpartner/internal/export"
	"bbbpartner/internal/httpx"
	"bbbpartner/internal/ingest"
	"bbbpartner/internal/region"
	"bbbpartner/internal/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	dir := t.TempDir()
	regions := filepath.Join(dir, "bbb_ids.csv")
	require.NoError(t, os.WriteFile(regions, []byte("0123,Blue,Central Ohio\n"), 0o644))

	loader := region.NewLoader(regions, filepath.Join(dir, "zips"))
	writer := export.NewWriter(filepath.Join(dir, "results"))
	// the API is never reached: no zip file exists for 0123
	svc := ingest.NewService(loader, ingest.NewAPIClient(config.APIConfig{BaseURL: "http://127.0.0.1:1"}), writer, ingest.NopRepo{},
		ingest.Config{UploadsDir: filepath.Join(dir, "uploads")})

	limiter := httpx.NewRateLimitMiddleware(1000, 1000)
	t.Cleanup(limiter.Close)

	return newRouter(routes{
		ingest:  ingest.NewHTTPHandler(context.Background(), svc, ingest.NopRepo{}, nil),
		status:  status.NewHTTPHandler(loader, writer),
		secret:  "s3cret",
		limiter: limiter,
	})
}

func TestRouting(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		secret string
		want   int
	}{
		{"health", http.MethodGet, "/healthz", "", http.StatusOK},
		{"region status", http.MethodGet, "/v1/regions/status", "", http.StatusOK},
		{"runs", http.MethodGet, "/v1/runs", "", http.StatusOK},
		{"trigger without secret", http.MethodPost, "/internal/jobs/export", "", http.StatusUnauthorized},
		{"trigger with secret", http.MethodPost, "/internal/jobs/export", "s3cret", http.StatusAccepted},
		{"wrong method", http.MethodGet, "/internal/jobs/export", "s3cret", http.StatusMethodNotAllowed},
		{"unknown path", http.MethodGet, "/books", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, strings.NewReader(""))
			if tt.secret != "" {
				r.Header.Set(httpx.InternalSecretHeader, tt.secret)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, r)

			assert.Equal(t, tt.want, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
		})
	}
}
