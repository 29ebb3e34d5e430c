package probe

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumpmate/dumpmate/internal/models"
)

type mockExecutor struct {
	runFunc func(ctx context.Context, env []string, name string, args ...string) ([]byte, error)
}

func (m *mockExecutor) RunWithEnv(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	if m.runFunc != nil {
		return m.runFunc(ctx, env, name, args...)
	}
	return nil, nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testTarget() models.Target {
	return models.Target{
		Environment: "local",
		Name:        "sample-db",
		Host:        "localhost",
		Port:        3306,
		Username:    "root",
	}
}

func TestProbe_Success(t *testing.T) {
	var capturedArgs []string
	var capturedEnv []string

	executor := &mockExecutor{
		runFunc: func(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
			capturedArgs = args
			capturedEnv = env
			return nil, nil
		},
	}

	svc := NewWithExecutor(testLogger(), executor)
	result := svc.Probe(context.Background(), testTarget(), "secret", "/usr/bin/mysqldump")

	assert.True(t, result.OK)
	assert.Empty(t, result.Message)

	assert.Contains(t, capturedArgs, "--host=localhost")
	assert.Contains(t, capturedArgs, "--user=root")
	assert.Contains(t, capturedArgs, "--port=3306")
	assert.Contains(t, capturedArgs, "--no-data")
	assert.Contains(t, capturedArgs, "--no-create-info")
	assert.Contains(t, capturedArgs, "--skip-triggers")
	assert.Contains(t, capturedArgs, "sample-db")
	assert.Contains(t, capturedEnv, "MYSQL_PWD=secret")
	assert.NotContains(t, capturedArgs, "secret", "credential must never appear as an argument")
}

func TestProbe_FailureWithStderr(t *testing.T) {
	executor := &mockExecutor{
		runFunc: func(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
			return []byte("ERROR 1045 (28000): Access denied for user 'root'@'localhost'\n"), errors.New("exit status 2")
		},
	}

	svc := NewWithExecutor(testLogger(), executor)
	result := svc.Probe(context.Background(), testTarget(), "wrong", "/usr/bin/mysqldump")

	assert.False(t, result.OK)
	assert.Equal(t, "ERROR 1045 (28000): Access denied for user 'root'@'localhost'", result.Message)
}

func TestProbe_FailureWithoutStderr(t *testing.T) {
	executor := &mockExecutor{
		runFunc: func(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
			return nil, errors.New("fork/exec: no such file or directory")
		},
	}

	svc := NewWithExecutor(testLogger(), executor)
	result := svc.Probe(context.Background(), testTarget(), "pw", "/nonexistent")

	assert.False(t, result.OK)
	assert.Equal(t, "fork/exec: no such file or directory", result.Message)
}

func TestProbe_ExitCodeMessage(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	// A real exec.ExitError with empty stderr yields the generic message.
	executor := &mockExecutor{
		runFunc: func(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
			cmd := exec.CommandContext(ctx, "sh", "-c", "exit 2")
			return nil, cmd.Run()
		},
	}

	svc := NewWithExecutor(testLogger(), executor)
	result := svc.Probe(context.Background(), testTarget(), "pw", "/usr/bin/mysqldump")

	assert.False(t, result.OK)
	assert.Equal(t, "exporter exited with code 2", result.Message)
}

func TestProbe_NeverReturnsError(t *testing.T) {
	// The probe signature has no error return; this pins the contract that
	// exporter failure is a value.
	executor := &mockExecutor{
		runFunc: func(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
			return []byte("boom"), errors.New("exit status 1")
		},
	}

	svc := NewWithExecutor(testLogger(), executor)
	result := svc.Probe(context.Background(), testTarget(), "pw", "/usr/bin/mysqldump")
	require.NotNil(t, result)
	assert.False(t, result.OK)
}
