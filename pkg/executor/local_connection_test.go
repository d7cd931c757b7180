package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalConnection_ExecSuccess(t *testing.T) {
	conn := NewLocalConnection("localhost")
	stdout, _, rc, err := conn.Exec(context.Background(), "echo hello")
	require.NoError(t, err)
	assert.Equal(t, 0, rc)
	assert.Equal(t, "hello\n", stdout)
}

func TestLocalConnection_ExecNonZeroExit(t *testing.T) {
	conn := NewLocalConnection("localhost")
	_, _, rc, err := conn.Exec(context.Background(), "exit 7")
	require.NoError(t, err)
	assert.Equal(t, 7, rc)
}

func TestLocalConnection_WriteThenReadFile(t *testing.T) {
	conn := NewLocalConnection("localhost")
	path := filepath.Join(t.TempDir(), "out.txt")

	err := conn.WriteFile(context.Background(), path, []byte("content"), 0o644)
	require.NoError(t, err)

	data, err := conn.ReadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode())
}

func TestLocalConnection_Host(t *testing.T) {
	conn := NewLocalConnection("box1")
	assert.Equal(t, "box1", conn.Host())
}
