package region

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestLoader(t *testing.T, regions string, zips map[string]string) *Loader {
	t.Helper()
	dir := t.TempDir()
	regionsFile := filepath.Join(dir, "bbb_ids", "bbb_ids.csv")
	zipsDir := filepath.Join(dir, "zips")
	writeFile(t, regionsFile, regions)
	for id, content := range zips {
		writeFile(t, filepath.Join(zipsDir, id+"_zips.csv"), content)
	}
	require.NoError(t, os.MkdirAll(zipsDir, 0o755))
	return NewLoader(regionsFile, zipsDir)
}

func TestLoader_LoadRegions(t *testing.T) {
	t.Run("three column rows with BOM and padding", func(t *testing.T) {
		l := newTestLoader(t, "\ufeff123,Blue,Central Ohio\n995,Hurdman,West Texas\n 1126 ,Other,Coastal\n", nil)

		regions, err := l.LoadRegions()
		require.NoError(t, err)
		assert.Equal(t, []Region{
			{ID: "0123", Name: "Central Ohio", Kind: KindBlue},
			{ID: "0995", Name: "West Texas", Kind: KindHurdman},
			{ID: "1126", Name: "Coastal", Kind: KindHurdman},
		}, regions)
	})

	t.Run("two column rows default to blue", func(t *testing.T) {
		l := newTestLoader(t, "0123,Central Ohio\n", nil)

		regions, err := l.LoadRegions()
		require.NoError(t, err)
		assert.Equal(t, []Region{{ID: "0123", Name: "Central Ohio", Kind: KindBlue}}, regions)
	})

	t.Run("header and blank rows are skipped", func(t *testing.T) {
		l := newTestLoader(t, "BBB ID,Type,Name\n\n0123,Blue,Central Ohio\n,,\n", nil)

		regions, err := l.LoadRegions()
		require.NoError(t, err)
		require.Len(t, regions, 1)
		assert.Equal(t, "0123", regions[0].ID)
	})

	t.Run("row without id after data is an error", func(t *testing.T) {
		l := newTestLoader(t, "0123,Blue,Central Ohio\nabc,Blue,Broken\n", nil)

		_, err := l.LoadRegions()
		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, 2, cfgErr.Line)
	})

	t.Run("missing region list", func(t *testing.T) {
		l := NewLoader(filepath.Join(t.TempDir(), "missing.csv"), t.TempDir())

		_, err := l.LoadRegions()
		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("empty region list", func(t *testing.T) {
		l := newTestLoader(t, "", nil)

		_, err := l.LoadRegions()
		var cfgErr *ConfigurationError
		assert.ErrorAs(t, err, &cfgErr)
	})
}

func TestLoader_LoadZipCodes(t *testing.T) {
	r := Region{ID: "0123"}

	t.Run("single column", func(t *testing.T) {
		l := newTestLoader(t, "0123,Blue,X\n", map[string]string{"0123": "10001\n10002\n"})

		zips, err := l.LoadZipCodes(r)
		require.NoError(t, err)
		assert.Equal(t, []string{"10001", "10002"}, zips)
	})

	t.Run("two columns use the second", func(t *testing.T) {
		l := newTestLoader(t, "0123,Blue,X\n", map[string]string{"0123": "New York,10001\nNew York,10002\n"})

		zips, err := l.LoadZipCodes(r)
		require.NoError(t, err)
		assert.Equal(t, []string{"10001", "10002"}, zips)
	})

	t.Run("header, padding and zip+4", func(t *testing.T) {
		l := newTestLoader(t, "0123,Blue,X\n", map[string]string{"0123": "\ufeffZip\n2108\n10001-1234\n"})

		zips, err := l.LoadZipCodes(r)
		require.NoError(t, err)
		assert.Equal(t, []string{"02108", "10001"}, zips)
	})

	t.Run("repeated zips are kept once", func(t *testing.T) {
		l := newTestLoader(t, "0123,Blue,X\n", map[string]string{"0123": "10001\n10002\n10001\n10001-0001\n"})

		zips, err := l.LoadZipCodes(r)
		require.NoError(t, err)
		assert.Equal(t, []string{"10001", "10002"}, zips)
	})

	t.Run("missing file", func(t *testing.T) {
		l := newTestLoader(t, "0123,Blue,X\n", nil)

		_, err := l.LoadZipCodes(r)
		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "0123", cfgErr.Region)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("empty file", func(t *testing.T) {
		l := newTestLoader(t, "0123,Blue,X\n", map[string]string{"0123": "\n\n"})

		_, err := l.LoadZipCodes(r)
		var cfgErr *ConfigurationError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("garbage row", func(t *testing.T) {
		l := newTestLoader(t, "0123,Blue,X\n", map[string]string{"0123": "10001\nnot-a-zip\n"})

		_, err := l.LoadZipCodes(r)
		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, 2, cfgErr.Line)
	})
}

func TestLoader_Load(t *testing.T) {
	l := newTestLoader(t,
		"0123,Blue,Central Ohio\n0456,Hurdman,Missing Zips\n0789,Blue,Southwest\n",
		map[string]string{
			"0123": "10001\n10002\n",
			"0789": "85001\n",
		})

	assignments, err := l.Load()
	require.NoError(t, err)
	require.Len(t, assignments, 3)

	assert.Equal(t, "0123", assignments[0].Region.ID)
	assert.Equal(t, []string{"10001", "10002"}, assignments[0].ZipCodes)
	assert.NoError(t, assignments[0].Err)

	assert.Equal(t, "0456", assignments[1].Region.ID)
	assert.Nil(t, assignments[1].ZipCodes)
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, assignments[1].Err, &cfgErr)

	assert.Equal(t, []string{"85001"}, assignments[2].ZipCodes)
	assert.NoError(t, assignments[2].Err)
}

func TestFilter(t *testing.T) {
	regions := []Region{{ID: "0123"}, {ID: "0995"}, {ID: "1126"}}

	t.Run("only wins over ignore", func(t *testing.T) {
		got := Filter(regions, []string{"995", "1126"}, []string{"1126"})
		assert.Equal(t, []Region{{ID: "0995"}, {ID: "1126"}}, got)
	})

	t.Run("ignore", func(t *testing.T) {
		got := Filter(regions, nil, []string{"0123"})
		assert.Equal(t, []Region{{ID: "0995"}, {ID: "1126"}}, got)
	})

	t.Run("no filters", func(t *testing.T) {
		assert.Equal(t, regions, Filter(regions, nil, nil))
	})
}

func TestNormalizeZip(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"10001", "10001", true},
		{" 2108 ", "02108", true},
		{"601", "00601", true},
		{"10001-4321", "10001", true},
		{"1000A", "", false},
		{"12", "", false},
		{"123456", "", false},
	}
	for _, c := range cases {
		got, ok := NormalizeZip(c.in)
		assert.Equal(t, c.ok, ok, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}
