package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildFromFiles(t *testing.T, files map[string][]byte) *zip.Reader {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), content, 0o644))
	}

	buf, err := Build(dir)
	require.NoError(t, err)

	reader, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	return reader
}

func TestBuildContainsAllFilesFlat(t *testing.T) {
	files := map[string][]byte{
		"pass.json":     []byte(`{"serialNumber":"ABC123"}`),
		"manifest.json": []byte(`{}`),
		"signature":     []byte("der-bytes"),
		"icon.png":      []byte("png"),
	}
	reader := buildFromFiles(t, files)

	require.Len(t, reader.File, len(files))
	for _, f := range reader.File {
		assert.Equal(t, filepath.Base(f.Name), f.Name, "entry %q is not flat", f.Name)
		assert.False(t, strings.ContainsAny(f.Name, `/\`))

		rc, err := f.Open()
		require.NoError(t, err)
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		assert.Equal(t, files[f.Name], got)
	}
}

func TestBuildSkipsSubdirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pass.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "x.png"), []byte("png"), 0o644))

	buf, err := Build(dir)
	require.NoError(t, err)

	reader, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, reader.File, 1)
	assert.Equal(t, "pass.json", reader.File[0].Name)
}

func TestBuildUsesDeflate(t *testing.T) {
	reader := buildFromFiles(t, map[string][]byte{
		"pass.json": bytes.Repeat([]byte("compressible "), 200),
	})

	require.Len(t, reader.File, 1)
	f := reader.File[0]
	assert.Equal(t, zip.Deflate, f.Method)
	assert.Less(t, f.CompressedSize64, f.UncompressedSize64)
}

func TestBuildMissingDirectory(t *testing.T) {
	_, err := Build(filepath.Join(t.TempDir(), "gone"))
	require.Error(t, err)
}
