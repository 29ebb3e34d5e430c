// Package archive unpacks exporter release archives and locates the
// executable inside their nested layouts.
package archive

import (
	"archive/tar"
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/ulikunitz/xz"

	"github.com/dumpmate/dumpmate/internal/models"
)

// ErrExecutableNotFound is returned when no exporter executable exists
// anywhere under the extraction directory.
var ErrExecutableNotFound = errors.New("exporter executable not found in archive")

// ExtractionError reports a corrupt or unreadable archive stream.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("archive extraction failed: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// executableNames are the file names the locator accepts, bare or with the
// platform executable extension.
var executableNames = []string{"mysqldump"}

// Service defines the interface for archive operations.
type Service interface {
	Extract(archivePath string, format models.ArchiveFormat, destDir string) error
	LocateExecutable(dir string) (string, error)
}

// Impl implements the Service interface.
type Impl struct {
	logger zerolog.Logger
}

// New creates a new archive service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{logger: logger}
}

// Extract unpacks archivePath into destDir according to format.
func (s *Impl) Extract(archivePath string, format models.ArchiveFormat, destDir string) error {
	s.logger.Debug().
		Str("archive", archivePath).
		Str("format", string(format)).
		Str("dest", destDir).
		Msg("extracting archive")

	switch format {
	case models.FormatZip:
		return s.extractZip(archivePath, destDir)
	case models.FormatTarGz, models.FormatTarXz:
		return s.extractTar(archivePath, format, destDir)
	default:
		return fmt.Errorf("unsupported archive format %q", format)
	}
}

func (s *Impl) extractZip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return &ExtractionError{Err: err}
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		target, err := safeJoin(destDir, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o750); err != nil {
				return fmt.Errorf("creating directory: %w", err)
			}
			continue
		}
		if err := writeZipEntry(f, target); err != nil {
			return err
		}
	}
	return nil
}

func writeZipEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	rc, err := f.Open()
	if err != nil {
		return &ExtractionError{Err: err}
	}
	defer func() { _ = rc.Close() }()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode().Perm()|0o200) //nolint:gosec // target validated by safeJoin
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, rc); err != nil { //nolint:gosec // archive is checksum-verified before extraction
		return &ExtractionError{Err: err}
	}
	return nil
}

func (s *Impl) extractTar(archivePath string, format models.ArchiveFormat, destDir string) error {
	f, err := os.Open(archivePath) //nolint:gosec // path is controlled by caller
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	var decompressed io.Reader
	switch format {
	case models.FormatTarGz:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return &ExtractionError{Err: err}
		}
		defer func() { _ = gz.Close() }()
		decompressed = gz
	case models.FormatTarXz:
		xzr, err := xz.NewReader(f)
		if err != nil {
			return &ExtractionError{Err: err}
		}
		decompressed = xzr
	default:
		return fmt.Errorf("unsupported tar format %q", format)
	}

	tr := tar.NewReader(decompressed)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &ExtractionError{Err: err}
		}
		if err := s.writeTarEntry(tr, hdr, destDir); err != nil {
			return err
		}
	}
}

func (s *Impl) writeTarEntry(tr *tar.Reader, hdr *tar.Header, destDir string) error {
	target, err := safeJoin(destDir, hdr.Name)
	if err != nil {
		return err
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, 0o750)
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode).Perm()|0o200) //nolint:gosec // target validated by safeJoin
		if err != nil {
			return fmt.Errorf("creating file: %w", err)
		}
		if _, err := io.Copy(out, tr); err != nil { //nolint:gosec // archive is checksum-verified before extraction
			_ = out.Close()
			return &ExtractionError{Err: err}
		}
		return out.Close()
	default:
		// Symlinks and special files in release tarballs are not needed
		// to run the exporter.
		s.logger.Debug().Str("entry", hdr.Name).Msg("skipping non-regular archive entry")
		return nil
	}
}

// LocateExecutable walks dir depth-first and returns the first file whose
// name matches an expected exporter executable name, bare or with the
// platform executable extension.
func (s *Impl) LocateExecutable(dir string) (string, error) {
	var found string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if isExecutableName(d.Name()) {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("searching for executable: %w", err)
	}
	if found == "" {
		return "", ErrExecutableNotFound
	}

	s.logger.Debug().Str("executable", found).Msg("located exporter executable")
	return found, nil
}

func isExecutableName(name string) bool {
	for _, want := range executableNames {
		if name == want || name == want+".exe" {
			return true
		}
	}
	return false
}

// safeJoin joins an archive entry name onto dir, rejecting entries that
// would escape the extraction directory.
func safeJoin(dir, name string) (string, error) {
	cleaned := filepath.Clean(filepath.Join(dir, filepath.FromSlash(name)))
	if cleaned != dir && !strings.HasPrefix(cleaned, dir+string(os.PathSeparator)) {
		return "", &ExtractionError{Err: fmt.Errorf("illegal archive entry path %q", name)}
	}
	return cleaned, nil
}
