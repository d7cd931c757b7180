package modules

import (
	"context"
	"fmt"

	"github.com/alexisbouchez/forge/pkg/executor"
)

// Command runs args.Raw as a single command through conn.Exec, which hands
// it to the host's shell, so pipes/redirects are interpreted there.
// It is never idempotent on its own - changed is always true on success,
// matching the teacher's own Cmd.Script handling for ad-hoc commands.
func Command(ctx context.Context, conn executor.Connection, args Args, _ map[string]string) (Result, error) {
	if args.Raw == "" {
		return Result{Failed: true, Msg: "command requires a command string"}, nil
	}
	stdout, stderr, rc, err := conn.Exec(ctx, args.Raw)
	if err != nil {
		return Result{Failed: true, Msg: err.Error()}, nil
	}
	if rc != 0 {
		return Result{Failed: true, RC: rc, Stdout: stdout, Stderr: stderr,
			Msg: fmt.Sprintf("command exited %d", rc)}, nil
	}
	return Result{Changed: true, RC: rc, Stdout: stdout, Stderr: stderr}, nil
}

// Shell runs args.Raw through the host's shell, enabling pipes/redirects/
// expansion - the same non-idempotent-by-default contract as Command.
func Shell(ctx context.Context, conn executor.Connection, args Args, _ map[string]string) (Result, error) {
	if args.Raw == "" {
		return Result{Failed: true, Msg: "shell requires a command string"}, nil
	}
	stdout, stderr, rc, err := conn.Exec(ctx, args.Raw)
	if err != nil {
		return Result{Failed: true, Msg: err.Error()}, nil
	}
	if rc != 0 {
		return Result{Failed: true, RC: rc, Stdout: stdout, Stderr: stderr,
			Msg: fmt.Sprintf("shell command exited %d", rc)}, nil
	}
	return Result{Changed: true, RC: rc, Stdout: stdout, Stderr: stderr}, nil
}

// Raw runs args.Raw with absolutely no processing or validation - useful
// against hosts that don't even have Python/a full shell environment set
// up yet. Functionally identical to Shell here since this engine never
// uploads a remote interpreter (see spec Non-goals); kept as a distinct
// module because operators rely on the name to signal "no assumptions".
func Raw(ctx context.Context, conn executor.Connection, args Args, vars map[string]string) (Result, error) {
	return Shell(ctx, conn, args, vars)
}
