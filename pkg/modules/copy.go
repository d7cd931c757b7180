package modules

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/alexisbouchez/forge/pkg/executor"
)

// Copy writes a file to dest on the target, from either a local source file
// (src) or literal text (content), writing it only if the target's content
// differs (sha256 comparison), so re-running a play with unchanged content
// always reports ok, not changed. Grounded on the teacher's copy-internal
// handling in pkg/config/command.go / pkg/runner/runner.go
// (execCopyCommand), generalized to this engine's inspect-then-act module
// contract.
func Copy(ctx context.Context, conn executor.Connection, args Args, _ map[string]string) (Result, error) {
	src := args.Get("src")
	dest := args.Get("dest")
	content := args.Get("content")
	if dest == "" || (src == "" && content == "") {
		return Result{Failed: true, Msg: "copy requires dest and one of src/content"}, nil
	}

	var data []byte
	if src != "" {
		d, err := os.ReadFile(src) //nolint:gosec // operator-provided source path
		if err != nil {
			return Result{Failed: true, Msg: fmt.Sprintf("read local %s: %v", src, err)}, nil
		}
		data = d
	} else {
		data = []byte(content)
	}

	mode := parseMode(args.GetDefault("mode", "0644"))

	existing, rerr := conn.ReadFile(ctx, dest)
	if rerr == nil && sha256.Sum256(existing) == sha256.Sum256(data) {
		return Result{Changed: false, Msg: "content already matches"}, nil
	}

	if err := ensureParentDir(ctx, conn, dest); err != nil {
		return Result{Failed: true, Msg: err.Error()}, nil
	}
	if err := conn.WriteFile(ctx, dest, data, mode); err != nil {
		return Result{Failed: true, Msg: fmt.Sprintf("write %s: %v", dest, err)}, nil
	}
	if src != "" {
		return Result{Changed: true, Msg: fmt.Sprintf("copied %s to %s", src, dest)}, nil
	}
	return Result{Changed: true, Msg: fmt.Sprintf("wrote content to %s", dest)}, nil
}

func ensureParentDir(ctx context.Context, conn executor.Connection, dest string) error {
	dir := filepath.Dir(dest)
	if dir == "." || dir == "/" {
		return nil
	}
	_, _, rc, err := conn.Exec(ctx, fmt.Sprintf("mkdir -p %s", dir))
	if err != nil {
		return fmt.Errorf("create parent dir %s: %w", dir, err)
	}
	if rc != 0 {
		return fmt.Errorf("create parent dir %s: exit %d", dir, rc)
	}
	return nil
}

func parseMode(s string) os.FileMode {
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0o644
	}
	return os.FileMode(v)
}
