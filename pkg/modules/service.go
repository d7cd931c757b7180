package modules

import (
	"context"
	"fmt"

	"github.com/alexisbouchez/forge/pkg/executor"
)

// Service enforces a systemd unit's run state (state: started/stopped/
// restarted) and/or its boot-enablement (enabled: yes/no), inspecting via
// `systemctl is-active`/`is-enabled` before mutating, grounded on the
// teacher's buildServiceScript in pkg/config/ansible.go.
func Service(ctx context.Context, conn executor.Connection, args Args, _ map[string]string) (Result, error) {
	name := args.Get("name")
	if name == "" {
		return Result{Failed: true, Msg: "service requires name"}, nil
	}
	state := args.Get("state")
	enabledArg, hasEnabled := args.Params["enabled"]

	changed := false
	var msgs []string

	if state != "" {
		active := isActive(ctx, conn, name)
		switch state {
		case "started":
			if !active {
				if _, _, rc, err := conn.Exec(ctx, fmt.Sprintf("systemctl start %s", name)); err != nil || rc != 0 {
					return Result{Failed: true, Msg: fmt.Sprintf("start %s failed: %v (rc=%d)", name, err, rc)}, nil
				}
				changed = true
				msgs = append(msgs, "started")
			}
		case "stopped":
			if active {
				if _, _, rc, err := conn.Exec(ctx, fmt.Sprintf("systemctl stop %s", name)); err != nil || rc != 0 {
					return Result{Failed: true, Msg: fmt.Sprintf("stop %s failed: %v (rc=%d)", name, err, rc)}, nil
				}
				changed = true
				msgs = append(msgs, "stopped")
			}
		case "restarted":
			if _, _, rc, err := conn.Exec(ctx, fmt.Sprintf("systemctl restart %s", name)); err != nil || rc != 0 {
				return Result{Failed: true, Msg: fmt.Sprintf("restart %s failed: %v (rc=%d)", name, err, rc)}, nil
			}
			changed = true
			msgs = append(msgs, "restarted")
		default:
			return Result{Failed: true, Msg: fmt.Sprintf("unsupported service state %q", state)}, nil
		}
	}

	if hasEnabled {
		want := enabledArg == "yes" || enabledArg == "true"
		is := isEnabled(ctx, conn, name)
		if want != is {
			action := "disable"
			if want {
				action = "enable"
			}
			if _, _, rc, err := conn.Exec(ctx, fmt.Sprintf("systemctl %s %s", action, name)); err != nil || rc != 0 {
				return Result{Failed: true, Msg: fmt.Sprintf("%s %s failed: %v (rc=%d)", action, name, err, rc)}, nil
			}
			changed = true
			msgs = append(msgs, action+"d")
		}
	}

	if !changed {
		return Result{Changed: false, Msg: "already in desired state"}, nil
	}
	msg := ""
	for i, m := range msgs {
		if i > 0 {
			msg += ", "
		}
		msg += m
	}
	return Result{Changed: true, Msg: msg}, nil
}

func isActive(ctx context.Context, conn executor.Connection, name string) bool {
	_, _, rc, _ := conn.Exec(ctx, fmt.Sprintf("systemctl is-active --quiet %s", name))
	return rc == 0
}

func isEnabled(ctx context.Context, conn executor.Connection, name string) bool {
	_, _, rc, _ := conn.Exec(ctx, fmt.Sprintf("systemctl is-enabled --quiet %s", name))
	return rc == 0
}
