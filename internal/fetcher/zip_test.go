package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeZIP(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(path)
	require.NoError(t, err)

	w := zip.NewWriter(f)
	for name, body := range entries {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func TestExtractZIP(t *testing.T) {
	zipPath := makeZIP(t, map[string]string{
		"gadm41_KEN_0.shp": "shp bytes",
		"gadm41_KEN_0.dbf": "dbf bytes",
	})

	dest := t.TempDir()
	paths, err := ExtractZIP(zipPath, dest)
	require.NoError(t, err)
	assert.Len(t, paths, 2)

	data, err := os.ReadFile(filepath.Join(dest, "gadm41_KEN_0.shp"))
	require.NoError(t, err)
	assert.Equal(t, "shp bytes", string(data))
}

func TestExtractZIPFile(t *testing.T) {
	zipPath := makeZIP(t, map[string]string{"a.txt": "aaa", "b.txt": "bbb"})

	dest := t.TempDir()
	path, err := ExtractZIPFile(zipPath, "b.txt", dest)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bbb", string(data))

	_, err = ExtractZIPFile(zipPath, "c.txt", dest)
	assert.Error(t, err)
}

func TestExtractZIP_RejectsSlip(t *testing.T) {
	zipPath := makeZIP(t, map[string]string{"../escape.txt": "nope"})
	_, err := ExtractZIP(zipPath, t.TempDir())
	assert.ErrorContains(t, err, "zip slip")
}
