// Package probe validates exporter connectivity without transferring data.
package probe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dumpmate/dumpmate/internal/models"
)

// Service defines the interface for connection probing.
type Service interface {
	Probe(ctx context.Context, target models.Target, password, executablePath string) *models.ProbeResult
}

// CommandExecutor allows mocking exec.Command in tests. It returns the
// process stderr alongside the run error.
type CommandExecutor interface {
	RunWithEnv(ctx context.Context, env []string, name string, args ...string) ([]byte, error)
}

// DefaultExecutor is the default command executor using os/exec.
type DefaultExecutor struct{}

// RunWithEnv runs a command, discarding stdout and capturing stderr.
func (e *DefaultExecutor) RunWithEnv(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = io.Discard

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stderr.Bytes(), err
}

// Impl implements the Service interface.
type Impl struct {
	executor CommandExecutor
	logger   zerolog.Logger
}

// New creates a new probe service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{executor: &DefaultExecutor{}, logger: logger}
}

// NewWithExecutor creates a new probe service with a custom executor (for testing).
func NewWithExecutor(logger zerolog.Logger, executor CommandExecutor) *Impl {
	return &Impl{executor: executor, logger: logger}
}

// Probe runs the exporter in structure-only mode against the target. The
// credential travels in MYSQL_PWD, never as an argument. Exporter failure
// is a normal result, not an error: connection refusal is an expected
// outcome of this operation.
func (s *Impl) Probe(ctx context.Context, target models.Target, password, executablePath string) *models.ProbeResult {
	args := []string{
		"--host=" + target.Host,
		"--user=" + target.Username,
	}
	if target.Port != 0 {
		args = append(args, fmt.Sprintf("--port=%d", target.Port))
	}
	// No data, no table definitions, no triggers: the run transfers
	// nothing and stays cheap on large schemas, it only has to connect
	// and authenticate.
	args = append(args, "--no-data", "--no-create-info", "--skip-triggers", "--skip-lock-tables", target.Name)

	s.logger.Debug().
		Str("host", target.Host).
		Str("database", target.Name).
		Msg("probing connection")

	stderr, err := s.executor.RunWithEnv(ctx, []string{"MYSQL_PWD=" + password}, executablePath, args...)
	if err == nil {
		s.logger.Debug().Msg("probe succeeded")
		return &models.ProbeResult{OK: true}
	}

	message := strings.TrimSpace(string(stderr))
	if message == "" {
		if exitErr, ok := err.(*exec.ExitError); ok {
			message = fmt.Sprintf("exporter exited with code %d", exitErr.ExitCode())
		} else {
			message = err.Error()
		}
	}

	s.logger.Debug().Str("message", message).Msg("probe failed")
	return &models.ProbeResult{OK: false, Message: message}
}
