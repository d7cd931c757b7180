package modules

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexisbouchez/forge/pkg/executor"
)

// File enforces the presence/absence/kind of a filesystem path: state one
// of "file" (must already exist as a regular file; fails if absent), "directory", "absent", or
// "touch" (update mtime, create if absent). Idempotence is established by
// stat-ing the path first via `test`/`stat` probes, matching the
// inspect-then-act shape the teacher's buildFileScript composes as a
// shell one-liner in pkg/config/ansible.go, generalized into discrete
// stat/act steps here.
func File(ctx context.Context, conn executor.Connection, args Args, _ map[string]string) (Result, error) {
	path := args.Get("path")
	if path == "" {
		return Result{Failed: true, Msg: "file requires path"}, nil
	}
	state := args.GetDefault("state", "file")
	mode := args.Get("mode")

	kind, exists, err := statPath(ctx, conn, path)
	if err != nil {
		return Result{Failed: true, Msg: err.Error()}, nil
	}

	switch state {
	case "absent":
		if !exists {
			return Result{Changed: false, Msg: "already absent"}, nil
		}
		if _, _, rc, err := conn.Exec(ctx, fmt.Sprintf("rm -rf %s", path)); err != nil || rc != 0 {
			return Result{Failed: true, Msg: fmt.Sprintf("remove %s: %v (rc=%d)", path, err, rc)}, nil
		}
		return Result{Changed: true, Msg: "removed"}, nil

	case "directory":
		if exists && kind == "directory" {
			return applyModeIfNeeded(ctx, conn, path, mode)
		}
		if exists && kind != "directory" {
			return Result{Failed: true, Msg: fmt.Sprintf("%s exists and is not a directory", path)}, nil
		}
		if _, _, rc, err := conn.Exec(ctx, fmt.Sprintf("mkdir -p %s", path)); err != nil || rc != 0 {
			return Result{Failed: true, Msg: fmt.Sprintf("mkdir %s: %v (rc=%d)", path, err, rc)}, nil
		}
		changeResult, _ := applyModeIfNeeded(ctx, conn, path, mode)
		changeResult.Changed = true
		changeResult.Msg = "directory created"
		return changeResult, nil

	case "touch":
		if !exists {
			if _, _, rc, err := conn.Exec(ctx, fmt.Sprintf("touch %s", path)); err != nil || rc != 0 {
				return Result{Failed: true, Msg: fmt.Sprintf("touch %s: %v (rc=%d)", path, err, rc)}, nil
			}
			return Result{Changed: true, Msg: "created"}, nil
		}
		if _, _, rc, err := conn.Exec(ctx, fmt.Sprintf("touch %s", path)); err != nil || rc != 0 {
			return Result{Failed: true, Msg: fmt.Sprintf("touch %s: %v (rc=%d)", path, err, rc)}, nil
		}
		return Result{Changed: true, Msg: "mtime updated"}, nil

	case "file":
		if !exists {
			return Result{Failed: true, Msg: fmt.Sprintf("%s does not exist and state=file does not create it", path)}, nil
		}
		if kind != "file" {
			return Result{Failed: true, Msg: fmt.Sprintf("%s exists and is not a regular file", path)}, nil
		}
		return applyModeIfNeeded(ctx, conn, path, mode)

	default:
		return Result{Failed: true, Msg: fmt.Sprintf("unsupported file state %q", state)}, nil
	}
}

// statPath probes a remote path's kind ("file"/"directory"/"" ) and
// existence using portable `test` invocations rather than assuming GNU
// stat is present.
func statPath(ctx context.Context, conn executor.Connection, path string) (kind string, exists bool, err error) {
	_, _, rc, err := conn.Exec(ctx, fmt.Sprintf("test -e %s", path))
	if err != nil {
		return "", false, fmt.Errorf("probe %s: %w", path, err)
	}
	if rc != 0 {
		return "", false, nil
	}
	_, _, rc, err = conn.Exec(ctx, fmt.Sprintf("test -d %s", path))
	if err != nil {
		return "", false, fmt.Errorf("probe %s: %w", path, err)
	}
	if rc == 0 {
		return "directory", true, nil
	}
	return "file", true, nil
}

func applyModeIfNeeded(ctx context.Context, conn executor.Connection, path, mode string) (Result, error) {
	if mode == "" {
		return Result{Changed: false, Msg: "ok"}, nil
	}
	stdout, _, rc, err := conn.Exec(ctx, fmt.Sprintf("stat -c %%a %s 2>/dev/null || stat -f %%Lp %s", path, path))
	if err == nil && rc == 0 && strings.TrimSpace(stdout) == strings.TrimLeft(mode, "0") {
		return Result{Changed: false, Msg: "mode already matches"}, nil
	}
	if _, _, rc, err := conn.Exec(ctx, fmt.Sprintf("chmod %s %s", mode, path)); err != nil || rc != 0 {
		return Result{Failed: true, Msg: fmt.Sprintf("chmod %s: %v (rc=%d)", path, err, rc)}, nil
	}
	return Result{Changed: true, Msg: "mode updated"}, nil
}
