// Package binary resolves a cached, ready-to-run exporter executable by
// orchestrating download, verification and extraction.
package binary

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/dumpmate/dumpmate/internal/services/archive"
	"github.com/dumpmate/dumpmate/internal/services/checksum"
	"github.com/dumpmate/dumpmate/internal/services/fetch"
)

// ErrOverrideNotFound is returned when a caller-supplied executable
// override path does not exist.
var ErrOverrideNotFound = errors.New("exporter override path does not exist")

// UnsupportedPlatformError reports a platform/arch pair with no catalog entry.
type UnsupportedPlatformError struct {
	Platform string
	Arch     string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("no exporter available for %s/%s", e.Platform, e.Arch)
}

// ChecksumMismatchError reports a downloaded archive whose digest does not
// match the pinned catalog checksum. Extraction never runs after it.
type ChecksumMismatchError struct {
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("archive checksum mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// Service defines the interface for exporter resolution.
type Service interface {
	EnsureExecutable(ctx context.Context, platform, arch, override string, progress fetch.ProgressFunc) (string, error)
	CachePath(platform, arch string) string
}

// Impl implements the Service interface.
type Impl struct {
	fetchSvc    fetch.Service
	checksumSvc checksum.Service
	archiveSvc  archive.Service
	cacheRoot   string
	logger      zerolog.Logger
}

// New creates a new binary resolver storing executables under cacheRoot.
func New(logger zerolog.Logger, cacheRoot string) *Impl {
	return &Impl{
		fetchSvc:    fetch.New(logger),
		checksumSvc: checksum.New(logger),
		archiveSvc:  archive.New(logger),
		cacheRoot:   cacheRoot,
		logger:      logger,
	}
}

// NewWithServices creates a binary resolver with custom collaborators (for testing).
func NewWithServices(
	logger zerolog.Logger,
	fetchSvc fetch.Service,
	checksumSvc checksum.Service,
	archiveSvc archive.Service,
	cacheRoot string,
) *Impl {
	return &Impl{
		fetchSvc:    fetchSvc,
		checksumSvc: checksumSvc,
		archiveSvc:  archiveSvc,
		cacheRoot:   cacheRoot,
		logger:      logger,
	}
}

// DefaultCacheRoot returns the per-user cache directory for resolved
// exporter executables.
func DefaultCacheRoot() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "dumpmate", "bin")
}

// CachePath returns the deterministic cache location for a platform/arch
// pair: <cacheRoot>/<platform>-<arch>/mysqldump[.exe].
func (s *Impl) CachePath(platform, arch string) string {
	name := "mysqldump"
	if platform == "windows" {
		name += ".exe"
	}
	return filepath.Join(s.cacheRoot, platform+"-"+arch, name)
}

// EnsureExecutable materializes a ready-to-run exporter executable and
// returns its path.
//
// An override path short-circuits everything: it only has to exist and is
// returned verbatim, with no download or verification. Otherwise a cached
// executable is trusted indefinitely; a missing one is downloaded, verified
// against the pinned checksum, extracted and moved into the cache.
//
// There is no inter-process lock on the cache path. Concurrent processes
// resolving the same missing binary race to extract-and-move, which is
// wasteful but benign: both produce the same bytes.
func (s *Impl) EnsureExecutable(ctx context.Context, platform, arch, override string, progress fetch.ProgressFunc) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("%w: %s", ErrOverrideNotFound, override)
		}
		s.logger.Debug().Str("override", override).Msg("using exporter override")
		return override, nil
	}

	desc, ok := DescriptorFor(platform, arch)
	if !ok {
		return "", &UnsupportedPlatformError{Platform: platform, Arch: arch}
	}

	cachePath := s.CachePath(platform, arch)
	if _, err := os.Stat(cachePath); err == nil {
		s.logger.Debug().Str("path", cachePath).Msg("exporter cache hit")
		return cachePath, nil
	}

	s.logger.Info().
		Str("version", desc.Version).
		Str("url", desc.URL).
		Msg("downloading exporter")

	if err := os.MkdirAll(filepath.Dir(cachePath), 0o750); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}

	// The temp directory lives next to the cache so the final rename stays
	// on one filesystem.
	tmpDir, err := os.MkdirTemp(s.cacheRoot, "resolve-*")
	if err != nil {
		return "", fmt.Errorf("creating temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	archivePath := filepath.Join(tmpDir, "archive."+string(desc.Format))
	if err := s.fetchSvc.Download(ctx, desc.URL, archivePath, progress); err != nil {
		return "", fmt.Errorf("downloading exporter archive: %w", err)
	}

	digest, err := s.checksumSvc.FileSHA256(archivePath)
	if err != nil {
		return "", fmt.Errorf("verifying exporter archive: %w", err)
	}
	if digest != desc.SHA256 {
		return "", &ChecksumMismatchError{Expected: desc.SHA256, Actual: digest}
	}

	extractDir := filepath.Join(tmpDir, "extracted")
	if err := os.MkdirAll(extractDir, 0o750); err != nil {
		return "", fmt.Errorf("creating extraction directory: %w", err)
	}
	if err := s.archiveSvc.Extract(archivePath, desc.Format, extractDir); err != nil {
		return "", err
	}

	located, err := s.locateExecutable(extractDir, desc.InnerPaths)
	if err != nil {
		return "", err
	}

	// Overwrites any partial prior attempt at the cache path.
	if err := os.Rename(located, cachePath); err != nil {
		return "", fmt.Errorf("moving exporter into cache: %w", err)
	}
	if platform != "windows" {
		if err := os.Chmod(cachePath, 0o755); err != nil { //nolint:gosec // the exporter must be executable
			return "", fmt.Errorf("marking exporter executable: %w", err)
		}
	}

	s.logger.Info().Str("path", cachePath).Msg("exporter ready")
	return cachePath, nil
}

// locateExecutable tries the descriptor's known inner paths first, directly
// and under each top-level directory (release archives nest their contents
// under a versioned root), before falling back to the full depth-first walk.
func (s *Impl) locateExecutable(extractDir string, innerPaths []string) (string, error) {
	for _, inner := range innerPaths {
		candidate := filepath.Join(extractDir, filepath.FromSlash(inner))
		if isRegularFile(candidate) {
			return candidate, nil
		}
	}

	if entries, err := os.ReadDir(extractDir); err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			for _, inner := range innerPaths {
				candidate := filepath.Join(extractDir, entry.Name(), filepath.FromSlash(inner))
				if isRegularFile(candidate) {
					return candidate, nil
				}
			}
		}
	}

	return s.archiveSvc.LocateExecutable(extractDir)
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
