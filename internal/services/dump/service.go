// Package dump drives the exporter subprocess to produce an export file.
package dump

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"github.com/dumpmate/dumpmate/internal/models"
)

// progressInterval is how often cumulative written bytes are reported.
const progressInterval = 1500 * time.Millisecond

// DumpError reports an abnormal exporter termination or a failure on the
// output stream. Stderr carries the exporter's captured diagnostics when
// non-empty.
type DumpError struct {
	Stderr string
	Err    error
}

func (e *DumpError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("dump failed: %s", e.Stderr)
	}
	return fmt.Sprintf("dump failed: %v", e.Err)
}

func (e *DumpError) Unwrap() error { return e.Err }

// ProgressFunc receives cumulative bytes written to the destination file.
// Reporting is observation-only and not part of the result contract.
type ProgressFunc func(written int64)

// Service defines the interface for dump execution.
type Service interface {
	Run(ctx context.Context, req models.DumpRequest, progress ProgressFunc) (*models.DumpResult, error)
}

// Impl implements the Service interface.
type Impl struct {
	logger zerolog.Logger
	// createOutput opens the destination stream. Tests substitute it to
	// simulate output failures.
	createOutput func(path string) (io.WriteCloser, error)
}

// New creates a new dump service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		logger: logger,
		createOutput: func(path string) (io.WriteCloser, error) {
			return os.Create(path) //nolint:gosec // destination comes from the planner or the caller
		},
	}
}

// BuildArgs assembles the exporter argument vector in its fixed order:
// host, user, optional port, resolved flags, one --ignore-table per
// exclusion, then the database name.
func BuildArgs(req models.DumpRequest) []string {
	args := []string{
		"--host=" + req.Target.Host,
		"--user=" + req.Target.Username,
	}
	if req.Target.Port != 0 {
		args = append(args, fmt.Sprintf("--port=%d", req.Target.Port))
	}
	args = append(args, req.Flags...)
	for _, table := range req.ExcludeTables {
		args = append(args, fmt.Sprintf("--ignore-table=%s.%s", req.Target.Name, table))
	}
	return append(args, req.Target.Name)
}

// Run executes the exporter and streams its stdout into the destination
// file, optionally through a gzip compressor. The credential travels in the
// MYSQL_PWD environment variable, never as an argument. On any failure the
// partial destination file is deleted; a finished file only exists on
// success.
func (s *Impl) Run(ctx context.Context, req models.DumpRequest, progress ProgressFunc) (*models.DumpResult, error) {
	start := time.Now()

	s.logger.Info().
		Str("host", req.Target.Host).
		Str("database", req.Target.Name).
		Str("destination", req.Destination).
		Bool("compress", req.Compress).
		Msg("starting dump")

	if err := os.MkdirAll(filepath.Dir(req.Destination), 0o750); err != nil {
		return nil, fmt.Errorf("creating dump directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, req.ExecutablePath, BuildArgs(req)...) //nolint:gosec // executable path comes from the resolver
	cmd.Env = append(os.Environ(), "MYSQL_PWD="+req.Password)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening exporter stdout: %w", err)
	}

	out, err := s.createOutput(req.Destination)
	if err != nil {
		return nil, fmt.Errorf("creating dump file: %w", err)
	}

	// Byte count is taken on the stream actually written to disk, after
	// compression when enabled.
	counter := &countingWriter{w: out}
	var sink io.Writer = counter
	var gz *gzip.Writer
	if req.Compress {
		gz = gzip.NewWriter(counter)
		sink = gz
	}

	stopProgress := s.startProgress(counter, progress)

	if err := cmd.Start(); err != nil {
		stopProgress()
		_ = out.Close()
		s.discardPartial(req.Destination)
		return nil, &DumpError{Err: fmt.Errorf("spawning exporter: %w", err)}
	}

	_, copyErr := io.Copy(sink, stdout)
	if copyErr != nil {
		// The exporter may be blocked writing into the unread stdout pipe.
		// Kill it and drain the pipe so Wait cannot hang on a full buffer.
		_ = cmd.Process.Kill()
		_, _ = io.Copy(io.Discard, stdout)
	}
	var flushErr error
	if gz != nil {
		flushErr = gz.Close()
	}
	waitErr := cmd.Wait()
	closeErr := out.Close()
	stopProgress()

	stderr := strings.TrimSpace(stderrBuf.String())
	if failure := firstError(copyErr, flushErr, waitErr, closeErr); failure != nil {
		s.discardPartial(req.Destination)
		if stderr == "" && copyErr == nil {
			if exitErr, ok := waitErr.(*exec.ExitError); ok {
				stderr = fmt.Sprintf("exporter exited with code %d", exitErr.ExitCode())
			}
		}
		return nil, &DumpError{Stderr: stderr, Err: failure}
	}

	info, err := os.Stat(req.Destination)
	if err != nil {
		return nil, fmt.Errorf("inspecting dump file: %w", err)
	}

	result := &models.DumpResult{
		Destination: req.Destination,
		SizeBytes:   info.Size(),
		Duration:    time.Since(start),
		Compressed:  req.Compress,
	}

	s.logger.Info().
		Str("destination", result.Destination).
		Int64("size_bytes", result.SizeBytes).
		Dur("duration", result.Duration).
		Msg("dump completed")

	return result, nil
}

// startProgress emits cumulative written bytes on a fixed interval until
// the returned stop function is called.
func (s *Impl) startProgress(counter *countingWriter, progress ProgressFunc) func() {
	if progress == nil {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				progress(counter.total())
			}
		}
	}()
	return func() { close(done) }
}

// discardPartial removes a partial dump file. Best-effort: a cleanup
// failure never masks the original error.
func (s *Impl) discardPartial(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn().Err(err).Str("path", path).Msg("could not remove partial dump file")
	}
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// countingWriter tracks bytes written to the underlying writer. The count
// is read concurrently by the progress goroutine.
type countingWriter struct {
	w io.Writer
	n atomic.Int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n.Add(int64(n))
	return n, err
}

func (c *countingWriter) total() int64 {
	return c.n.Load()
}
