package modules

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/alexisbouchez/forge/pkg/executor"
	"github.com/alexisbouchez/forge/pkg/template"
)

// Template renders a local template file (args.Get("src")) against the
// task's variable scope and writes the result to dest, only when the
// rendered content differs from what's already there - the same
// inspect-then-act shape as Copy, but with a render step grounded on
// pkg/template in between.
func Template(ctx context.Context, conn executor.Connection, args Args, vars map[string]string) (Result, error) {
	src := args.Get("src")
	dest := args.Get("dest")
	if src == "" || dest == "" {
		return Result{Failed: true, Msg: "template requires src and dest"}, nil
	}

	raw, err := os.ReadFile(src) //nolint:gosec // operator-provided template path
	if err != nil {
		return Result{Failed: true, Msg: fmt.Sprintf("read template %s: %v", src, err)}, nil
	}

	rendered, err := template.Render(string(raw), vars)
	if err != nil {
		return Result{Failed: true, Msg: fmt.Sprintf("render template %s: %v", src, err)}, nil
	}

	mode := parseMode(args.GetDefault("mode", "0644"))
	existing, rerr := conn.ReadFile(ctx, dest)
	if rerr == nil && sha256.Sum256(existing) == sha256.Sum256([]byte(rendered)) {
		return Result{Changed: false, Msg: "rendered content already matches"}, nil
	}

	if err := ensureParentDir(ctx, conn, dest); err != nil {
		return Result{Failed: true, Msg: err.Error()}, nil
	}
	if err := conn.WriteFile(ctx, dest, []byte(rendered), mode); err != nil {
		return Result{Failed: true, Msg: fmt.Sprintf("write %s: %v", dest, err)}, nil
	}
	return Result{Changed: true, Msg: fmt.Sprintf("rendered %s to %s", src, dest)}, nil
}
