package modules

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexisbouchez/forge/pkg/executor"
)

// User enforces a system user account's presence/absence via
// useradd/usermod/userdel, inspecting via `getent passwd` first. Grounded
// on the teacher's buildUserScript in pkg/config/ansible.go.
func User(ctx context.Context, conn executor.Connection, args Args, _ map[string]string) (Result, error) {
	name := args.Get("name")
	if name == "" {
		return Result{Failed: true, Msg: "user requires name"}, nil
	}
	state := args.GetDefault("state", "present")

	_, _, rc, err := conn.Exec(ctx, fmt.Sprintf("getent passwd %s >/dev/null 2>&1", name))
	if err != nil {
		return Result{Failed: true, Msg: err.Error()}, nil
	}
	exists := rc == 0

	switch state {
	case "absent":
		if !exists {
			return Result{Changed: false, Msg: fmt.Sprintf("user %s already absent", name)}, nil
		}
		removeHome := ""
		if args.Bool("remove") {
			removeHome = " -r"
		}
		if _, stderr, rc, err := conn.Exec(ctx, fmt.Sprintf("userdel%s %s", removeHome, name)); err != nil || rc != 0 {
			return Result{Failed: true, Msg: fmt.Sprintf("userdel %s failed: %v: %s", name, err, stderr)}, nil
		}
		return Result{Changed: true, Msg: fmt.Sprintf("removed user %s", name)}, nil

	case "present":
		var opts []string
		if shell := args.Get("shell"); shell != "" {
			opts = append(opts, "-s "+shell)
		}
		if groups := args.Get("groups"); groups != "" {
			opts = append(opts, "-G "+groups)
		}
		if home := args.Get("home"); home != "" {
			opts = append(opts, "-d "+home)
		}
		optStr := strings.Join(opts, " ")

		if !exists {
			if _, stderr, rc, err := conn.Exec(ctx, strings.TrimSpace(fmt.Sprintf("useradd -m %s %s", optStr, name))); err != nil || rc != 0 {
				return Result{Failed: true, Msg: fmt.Sprintf("useradd %s failed: %v: %s", name, err, stderr)}, nil
			}
			return Result{Changed: true, Msg: fmt.Sprintf("created user %s", name)}, nil
		}
		if optStr == "" {
			return Result{Changed: false, Msg: fmt.Sprintf("user %s already present", name)}, nil
		}
		if _, stderr, rc, err := conn.Exec(ctx, strings.TrimSpace(fmt.Sprintf("usermod %s %s", optStr, name))); err != nil || rc != 0 {
			return Result{Failed: true, Msg: fmt.Sprintf("usermod %s failed: %v: %s", name, err, stderr)}, nil
		}
		return Result{Changed: true, Msg: fmt.Sprintf("updated user %s", name)}, nil

	default:
		return Result{Failed: true, Msg: fmt.Sprintf("unsupported user state %q", state)}, nil
	}
}
