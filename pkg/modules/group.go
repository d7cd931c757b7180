package modules

import (
	"context"
	"fmt"

	"github.com/alexisbouchez/forge/pkg/executor"
)

// Group enforces a system group's presence/absence via groupadd/groupdel,
// inspecting via `getent group` first. Sibling to User, same idempotence
// shape, grounded on the same ansible.go script-building style.
func Group(ctx context.Context, conn executor.Connection, args Args, _ map[string]string) (Result, error) {
	name := args.Get("name")
	if name == "" {
		return Result{Failed: true, Msg: "group requires name"}, nil
	}
	state := args.GetDefault("state", "present")

	_, _, rc, err := conn.Exec(ctx, fmt.Sprintf("getent group %s >/dev/null 2>&1", name))
	if err != nil {
		return Result{Failed: true, Msg: err.Error()}, nil
	}
	exists := rc == 0

	switch state {
	case "absent":
		if !exists {
			return Result{Changed: false, Msg: fmt.Sprintf("group %s already absent", name)}, nil
		}
		if _, stderr, rc, err := conn.Exec(ctx, fmt.Sprintf("groupdel %s", name)); err != nil || rc != 0 {
			return Result{Failed: true, Msg: fmt.Sprintf("groupdel %s failed: %v: %s", name, err, stderr)}, nil
		}
		return Result{Changed: true, Msg: fmt.Sprintf("removed group %s", name)}, nil

	case "present":
		if exists {
			return Result{Changed: false, Msg: fmt.Sprintf("group %s already present", name)}, nil
		}
		gidOpt := ""
		if gid := args.Get("gid"); gid != "" {
			gidOpt = "-g " + gid + " "
		}
		if _, stderr, rc, err := conn.Exec(ctx, fmt.Sprintf("groupadd %s%s", gidOpt, name)); err != nil || rc != 0 {
			return Result{Failed: true, Msg: fmt.Sprintf("groupadd %s failed: %v: %s", name, err, stderr)}, nil
		}
		return Result{Changed: true, Msg: fmt.Sprintf("created group %s", name)}, nil

	default:
		return Result{Failed: true, Msg: fmt.Sprintf("unsupported group state %q", state)}, nil
	}
}
