// Package executor provides the Connection capability modules run
// commands and move files through, plus concrete SSH and local
// implementations. Check mode is handled one layer up, in pkg/play,
// which never dispatches a module at all when running under --check.
//
// Grounded on the teacher's own pkg/executor package (Connector/Remote/
// Local/Dry), narrowed from its Run/Upload/Download/Sync/Delete surface
// down to the smaller Exec/ReadFile/WriteFile capability the module
// registry actually needs.
package executor

import (
	"context"
	"os"
)

// Connection is the capability a module needs to act on a single host,
// local or remote. Every module operates purely through this interface so
// its idempotence logic never has to branch on transport.
type Connection interface {
	// Exec runs cmd through the host's shell and returns captured stdout,
	// stderr, the process exit code, and any transport-level error (a
	// non-zero exit code is NOT itself an error - callers inspect rc).
	Exec(ctx context.Context, cmd string) (stdout, stderr string, rc int, err error)

	// ReadFile returns the full contents of path on the host, or an error
	// if it doesn't exist or can't be read.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// WriteFile writes data to path on the host with the given mode,
	// creating or truncating it.
	WriteFile(ctx context.Context, path string, data []byte, mode os.FileMode) error

	// Host returns the inventory host name this connection targets.
	Host() string

	// Close releases any underlying transport resources.
	Close() error
}
