package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "bbb_ids/bbb_ids.csv", cfg.RegionsFile)
	assert.Equal(t, "zips", cfg.ZipsDir)
	assert.Equal(t, "results", cfg.ResultsDir)
	assert.Equal(t, "uploads", cfg.UploadsDir)
	assert.Equal(t, "https://api.bbb.org", cfg.API.BaseURL)
	assert.Equal(t, 250, cfg.API.PageSize)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 3, cfg.API.MaxRetries)
	assert.Equal(t, time.Minute, cfg.API.MaxRetryWait)
	assert.Equal(t, QueryModeZip, cfg.API.QueryMode)
	assert.Empty(t, cfg.Ledger.Driver)
	assert.False(t, cfg.Archive.Enabled())
	assert.Equal(t, ":8080", cfg.ServerAddr)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("BBB_REGIONS_FILE", "/data/ids.csv")
	t.Setenv("BBB_API_TOKEN", "tok")
	t.Setenv("BBB_API_PAGE_SIZE", "100")
	t.Setenv("BBB_API_TIMEOUT", "5s")
	t.Setenv("BBB_API_MAX_RETRY_WAIT", "10s")
	t.Setenv("BBB_QUERY_MODE", "REGION")
	t.Setenv("BBB_IGNORE_IDS", "0995, 1126,,")
	t.Setenv("LEDGER_DRIVER", "sqlite")
	t.Setenv("LEDGER_DSN", "runs.db")
	t.Setenv("ARCHIVE_BUCKET", "exports")
	t.Setenv("NOTIFY_DISABLED", "true")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/ids.csv", cfg.RegionsFile)
	assert.Equal(t, 100, cfg.API.PageSize)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, 10*time.Second, cfg.API.MaxRetryWait)
	assert.Equal(t, QueryModeRegion, cfg.API.QueryMode)
	assert.Equal(t, []string{"0995", "1126"}, cfg.IgnoreIDs)
	assert.Equal(t, "sqlite", cfg.Ledger.Driver)
	assert.True(t, cfg.Archive.Enabled())
	assert.True(t, cfg.Notify.Disabled)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.1"}, cfg.TrustedProxies)
	assert.NoError(t, cfg.RequireAPIToken())
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"page size not a number": {"BBB_API_PAGE_SIZE": "lots"},
		"page size too large":    {"BBB_API_PAGE_SIZE": "500"},
		"zero retry wait":        {"BBB_API_MAX_RETRY_WAIT": "0s"},
		"bad trusted proxy":      {"TRUSTED_PROXIES": "proxy.internal"},
		"bad timeout":            {"BBB_API_TIMEOUT": "soon"},
		"unknown query mode":     {"BBB_QUERY_MODE": "state"},
		"unknown ledger":         {"LEDGER_DRIVER": "redis", "LEDGER_DSN": "x"},
		"ledger without dsn":     {"LEDGER_DRIVER": "postgres"},
		"bad base url":           {"BBB_API_BASE_URL": "not a url"},
		"bad bool":               {"NOTIFY_DISABLED": "maybe"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestRequireAPIToken(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Error(t, cfg.RequireAPIToken())
}

func TestLoadEnvFiles_DoesNotOverrideExistingEnv(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmp, ".env"), []byte("BBB_ZIPS_DIR=from_file\nBBB_RESULTS_DIR=from_file\n"), 0o644))

	t.Setenv("BBB_ZIPS_DIR", "from_env")
	t.Chdir(tmp)
	t.Cleanup(func() { _ = os.Unsetenv("BBB_RESULTS_DIR") })

	LoadEnvFiles()

	assert.Equal(t, "from_env", os.Getenv("BBB_ZIPS_DIR"))
	assert.Equal(t, "from_file", os.Getenv("BBB_RESULTS_DIR"))
}
