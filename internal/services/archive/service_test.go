package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/dumpmate/dumpmate/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func writeZip(t *testing.T, entries map[string][]byte) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "test.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func writeTarball(t *testing.T, entries map[string][]byte, compress func(io.Writer) io.WriteCloser, name string) string {
	t.Helper()
	var buf bytes.Buffer
	cw := compress(&buf)
	tw := tar.NewWriter(cw)
	for entryName, content := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     entryName,
			Typeflag: tar.TypeReg,
			Mode:     0o755,
			Size:     int64(len(content)),
		}))
		_, err := tw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, cw.Close())

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestExtract_Zip(t *testing.T) {
	archivePath := writeZip(t, map[string][]byte{
		"mysql-8.0.36-winx64/bin/mysqldump.exe": []byte("binary"),
		"mysql-8.0.36-winx64/README":            []byte("readme"),
	})
	destDir := t.TempDir()
	svc := New(testLogger())

	require.NoError(t, svc.Extract(archivePath, models.FormatZip, destDir))

	got, err := os.ReadFile(filepath.Join(destDir, "mysql-8.0.36-winx64", "bin", "mysqldump.exe"))
	require.NoError(t, err)
	assert.Equal(t, []byte("binary"), got)
}

func TestExtract_TarGz(t *testing.T) {
	archivePath := writeTarball(t, map[string][]byte{
		"mysql-8.0.36/bin/mysqldump": []byte("elf bytes"),
	}, func(w io.Writer) io.WriteCloser { return gzip.NewWriter(w) }, "test.tar.gz")
	destDir := t.TempDir()
	svc := New(testLogger())

	require.NoError(t, svc.Extract(archivePath, models.FormatTarGz, destDir))

	got, err := os.ReadFile(filepath.Join(destDir, "mysql-8.0.36", "bin", "mysqldump"))
	require.NoError(t, err)
	assert.Equal(t, []byte("elf bytes"), got)
}

func TestExtract_TarXz(t *testing.T) {
	archivePath := writeTarball(t, map[string][]byte{
		"mysql-8.0.36/bin/mysqldump": []byte("elf bytes"),
	}, func(w io.Writer) io.WriteCloser {
		xw, err := xz.NewWriter(w)
		require.NoError(t, err)
		return xw
	}, "test.tar.xz")
	destDir := t.TempDir()
	svc := New(testLogger())

	require.NoError(t, svc.Extract(archivePath, models.FormatTarXz, destDir))

	got, err := os.ReadFile(filepath.Join(destDir, "mysql-8.0.36", "bin", "mysqldump"))
	require.NoError(t, err)
	assert.Equal(t, []byte("elf bytes"), got)
}

func TestExtract_CorruptGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.tar.gz")
	require.NoError(t, os.WriteFile(path, []byte("this is not gzip"), 0o600))
	svc := New(testLogger())

	err := svc.Extract(path, models.FormatTarGz, t.TempDir())

	var extErr *ExtractionError
	require.ErrorAs(t, err, &extErr)
}

func TestExtract_RejectsPathTraversal(t *testing.T) {
	archivePath := writeTarball(t, map[string][]byte{
		"../outside": []byte("escape"),
	}, func(w io.Writer) io.WriteCloser { return gzip.NewWriter(w) }, "evil.tar.gz")
	svc := New(testLogger())

	err := svc.Extract(archivePath, models.FormatTarGz, t.TempDir())

	var extErr *ExtractionError
	require.ErrorAs(t, err, &extErr)
}

func TestExtract_UnsupportedFormat(t *testing.T) {
	svc := New(testLogger())
	err := svc.Extract("whatever", models.ArchiveFormat("rar"), t.TempDir())
	require.Error(t, err)
}

func TestLocateExecutable_NestedLayout(t *testing.T) {
	dir := t.TempDir()
	inner := filepath.Join(dir, "mysql-8.0.36", "bin")
	require.NoError(t, os.MkdirAll(inner, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mysql-8.0.36", "README"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(inner, "mysqldump"), []byte("x"), 0o700))

	svc := New(testLogger())
	path, err := svc.LocateExecutable(dir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(inner, "mysqldump"), path)
}

func TestLocateExecutable_WindowsExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mysqldump.exe"), []byte("x"), 0o700))

	svc := New(testLogger())
	path, err := svc.LocateExecutable(dir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "mysqldump.exe"), path)
}

func TestLocateExecutable_NotFound(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mysql"), []byte("x"), 0o700))

	svc := New(testLogger())
	_, err := svc.LocateExecutable(dir)

	require.ErrorIs(t, err, ErrExecutableNotFound)
}
