// Package checksum provides streaming content-hash verification of files.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Service defines the interface for checksum operations.
type Service interface {
	FileSHA256(path string) (string, error)
}

// Impl implements the Service interface.
type Impl struct {
	logger zerolog.Logger
}

// New creates a new checksum service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{logger: logger}
}

// FileSHA256 computes the lowercase hex SHA-256 digest of a file. The file
// is read as one forward stream, so memory stays bounded regardless of size.
func (s *Impl) FileSHA256(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path is controlled by caller
	if err != nil {
		return "", fmt.Errorf("opening file for hashing: %w", err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}

	digest := hex.EncodeToString(h.Sum(nil))
	s.logger.Debug().Str("file", path).Str("sha256", digest).Msg("file hashed")
	return digest, nil
}
