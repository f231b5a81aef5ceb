package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestZIP(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range files {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return path
}

func TestExtractZIP(t *testing.T) {
	zipPath := writeTestZIP(t, map[string]string{
		"cb_2020_us_zcta520_500k.shp": "shape data",
		"cb_2020_us_zcta520_500k.dbf": "attribute data",
		"nested/readme.txt":           "docs",
	})

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	assert.Len(t, extracted, 3)

	// Nested entries are flattened to the destination dir.
	data, err := os.ReadFile(filepath.Join(destDir, "readme.txt"))
	require.NoError(t, err)
	assert.Equal(t, "docs", string(data))
}

func TestExtractZIPBadArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0644))

	_, err := ExtractZIP(path, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open archive")
}

func TestFindByExt(t *testing.T) {
	paths := []string{"/tmp/a.dbf", "/tmp/b.SHP", "/tmp/c.prj"}

	shp, err := FindByExt(paths, ".shp")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/b.SHP", shp)

	_, err = FindByExt(paths, ".shx")
	require.Error(t, err)
}
