// Package fetch streams remote files to disk with redirect handling.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// maxRedirects bounds how many redirect hops a single download may follow.
const maxRedirects = 5

// ErrTooManyRedirects is returned when a download chain exceeds maxRedirects.
var ErrTooManyRedirects = errors.New("too many redirects")

// DownloadError reports a non-success HTTP status.
type DownloadError struct {
	StatusCode int
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download failed with status %d", e.StatusCode)
}

// ProgressFunc receives cumulative received bytes after each chunk. total is
// the Content-Length of the final response, or a negative value when the
// server did not report one.
type ProgressFunc func(received, total int64)

// Service defines the interface for download operations.
type Service interface {
	Download(ctx context.Context, rawURL, dest string, progress ProgressFunc) error
}

// Impl implements the Service interface.
type Impl struct {
	client *http.Client
	logger zerolog.Logger
}

// New creates a new fetch service. Redirects are followed manually so the
// hop bound and error taxonomy stay under our control.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// NewWithClient creates a fetch service with a custom HTTP client (for testing).
func NewWithClient(logger zerolog.Logger, client *http.Client) *Impl {
	return &Impl{client: client, logger: logger}
}

// Download streams the body of rawURL into dest, creating parent directories.
// Redirect responses (status in [300,400) carrying a Location header) are
// followed up to maxRedirects hops. There is no retry; network errors
// propagate as-is. A partial destination file is removed on failure.
func (s *Impl) Download(ctx context.Context, rawURL, dest string, progress ProgressFunc) error {
	resp, err := s.get(ctx, rawURL)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("creating download directory: %w", err)
	}

	out, err := os.Create(dest) //nolint:gosec // dest is controlled by caller
	if err != nil {
		return fmt.Errorf("creating download file: %w", err)
	}

	received, copyErr := s.copyBody(out, resp, progress)
	closeErr := out.Close()

	if copyErr != nil {
		_ = os.Remove(dest)
		return fmt.Errorf("downloading %s: %w", rawURL, copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(dest)
		return fmt.Errorf("finishing download file: %w", closeErr)
	}

	s.logger.Debug().
		Str("url", rawURL).
		Str("dest", dest).
		Int64("bytes", received).
		Msg("download complete")
	return nil
}

// get issues the request and resolves redirects by hand.
func (s *Impl) get(ctx context.Context, rawURL string) (*http.Response, error) {
	current := rawURL
	for hop := 0; ; hop++ {
		if hop > maxRedirects {
			return nil, ErrTooManyRedirects
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			location := resp.Header.Get("Location")
			_ = resp.Body.Close()
			if location == "" {
				return nil, &DownloadError{StatusCode: resp.StatusCode}
			}
			next, err := resolveLocation(current, location)
			if err != nil {
				return nil, err
			}
			s.logger.Debug().
				Int("hop", hop+1).
				Str("location", next).
				Msg("following redirect")
			current = next
			continue
		}

		if resp.StatusCode >= 400 || resp.StatusCode < 200 {
			_ = resp.Body.Close()
			return nil, &DownloadError{StatusCode: resp.StatusCode}
		}

		return resp, nil
	}
}

func (s *Impl) copyBody(out io.Writer, resp *http.Response, progress ProgressFunc) (int64, error) {
	var received int64
	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return received, werr
			}
			received += int64(n)
			if progress != nil {
				progress(received, resp.ContentLength)
			}
		}
		if err == io.EOF {
			return received, nil
		}
		if err != nil {
			return received, err
		}
	}
}

// resolveLocation handles relative Location headers against the current URL.
func resolveLocation(current, location string) (string, error) {
	base, err := url.Parse(current)
	if err != nil {
		return "", fmt.Errorf("parsing current url: %w", err)
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parsing redirect location: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}
