package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
)

// LocalConnection is a Connection that runs commands and touches files on
// the controller host itself (inventory_hostname == "localhost"), grounded
// on the teacher's pkg/executor/local.go shell-detection and direct-I/O
// approach.
type LocalConnection struct {
	host string
}

// NewLocalConnection returns a Connection targeting the local machine.
func NewLocalConnection(hostName string) *LocalConnection {
	return &LocalConnection{host: hostName}
}

// Host implements Connection.
func (c *LocalConnection) Host() string { return c.host }

// Exec implements Connection by running cmd through the user's shell
// ($SHELL, falling back to /bin/sh), matching the teacher's local shell
// selection in pkg/executor/local.go.
func (c *LocalConnection) Exec(ctx context.Context, cmdStr string) (stdout, stderr string, rc int, err error) {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	cmd := exec.CommandContext(ctx, shell, "-c", cmdStr)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	if runErr == nil {
		return outBuf.String(), errBuf.String(), 0, nil
	}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		return outBuf.String(), errBuf.String(), exitErr.ExitCode(), nil
	}
	return outBuf.String(), errBuf.String(), -1, fmt.Errorf("run local command: %w", runErr)
}

// ReadFile implements Connection.
func (c *LocalConnection) ReadFile(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-provided path
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// WriteFile implements Connection.
func (c *LocalConnection) WriteFile(_ context.Context, path string, data []byte, mode os.FileMode) error {
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Close implements Connection; a no-op for local execution.
func (c *LocalConnection) Close() error { return nil }
