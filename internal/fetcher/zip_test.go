package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range entries {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return path
}

func TestExtractSingle(t *testing.T) {
	zipPath := writeZip(t, map[string]string{
		"codigos_postales.geojson": `{"type":"FeatureCollection","features":[]}`,
	})

	dest := t.TempDir()
	out, err := ExtractSingle(zipPath, dest)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "FeatureCollection")
	assert.Equal(t, "codigos_postales.geojson", filepath.Base(out))
}

func TestExtractSingleRejectsMultipleFiles(t *testing.T) {
	zipPath := writeZip(t, map[string]string{
		"a.geojson": "{}",
		"b.geojson": "{}",
	})

	_, err := ExtractSingle(zipPath, t.TempDir())
	require.Error(t, err)
}

func TestExtractSingleRejectsEmptyArchive(t *testing.T) {
	zipPath := writeZip(t, map[string]string{})
	_, err := ExtractSingle(zipPath, t.TempDir())
	require.Error(t, err)
}

func TestExtractSingleSanitizesPath(t *testing.T) {
	// An entry with path components is flattened to its base name,
	// never written outside the destination.
	zipPath := writeZip(t, map[string]string{
		"../../escape.geojson": "{}",
	})

	dest := t.TempDir()
	out, err := ExtractSingle(zipPath, dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "escape.geojson"), out)
}

func TestExtractSingleMissingArchive(t *testing.T) {
	_, err := ExtractSingle(filepath.Join(t.TempDir(), "nope.zip"), t.TempDir())
	require.Error(t, err)
}
