package modules

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/alexisbouchez/forge/pkg/executor"
)

const remoteScriptDir = "/tmp/.forge"

// Script uploads a local script file (args.Raw is its local path) to a
// temp directory on the target, executes it, and removes it afterwards.
// Grounded on the teacher's prepScript/tdFn pattern in pkg/runner/runner.go
// (upload to tmpRemoteDir, execute, teardown deletes the remote copy), but
// always non-idempotent like command/shell since a script's effects are
// opaque to the engine.
func Script(ctx context.Context, conn executor.Connection, args Args, _ map[string]string) (Result, error) {
	if args.Raw == "" {
		return Result{Failed: true, Msg: "script requires a local file path"}, nil
	}
	data, err := os.ReadFile(args.Raw) //nolint:gosec // operator-provided script path
	if err != nil {
		return Result{Failed: true, Msg: fmt.Sprintf("read local script %s: %v", args.Raw, err)}, nil
	}

	remotePath := path.Join(remoteScriptDir, fmt.Sprintf("script-%d-%s", time.Now().UnixNano(), path.Base(args.Raw)))
	if _, _, rc, err := conn.Exec(ctx, fmt.Sprintf("mkdir -p %s", remoteScriptDir)); err != nil || rc != 0 {
		return Result{Failed: true, Msg: fmt.Sprintf("create remote script dir: %v (rc=%d)", err, rc)}, nil
	}
	if err := conn.WriteFile(ctx, remotePath, data, 0o750); err != nil {
		return Result{Failed: true, Msg: fmt.Sprintf("upload script: %v", err)}, nil
	}
	defer conn.Exec(ctx, fmt.Sprintf("rm -f %s", remotePath)) //nolint:errcheck // best-effort cleanup

	stdout, stderr, rc, err := conn.Exec(ctx, remotePath)
	if err != nil {
		return Result{Failed: true, Msg: err.Error()}, nil
	}
	if rc != 0 {
		return Result{Failed: true, RC: rc, Stdout: stdout, Stderr: stderr,
			Msg: fmt.Sprintf("script exited %d", rc)}, nil
	}
	return Result{Changed: true, RC: rc, Stdout: stdout, Stderr: stderr}, nil
}
