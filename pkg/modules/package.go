package modules

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexisbouchez/forge/pkg/executor"
)

// packageBackend describes one package manager's inspect/install/remove
// shell incantations, so apt/yum/dnf/pip can share one idempotence loop
// and differ only in the commands they compose - mirroring how the
// teacher's buildAptScript in pkg/config/ansible.go builds a single shell
// script per package state, just split here into a query-then-mutate
// pair per the module contract instead of one opaque script.
type packageBackend struct {
	// query returns a command whose exit code is 0 iff name is currently
	// installed.
	query func(name string) string
	// install returns the command to install/upgrade name.
	install func(name, state string) string
	// remove returns the command to uninstall name.
	remove func(name string) string
	// updateCache returns the cache-refresh command to run before
	// install/remove when the task sets update_cache: true. Empty when
	// the backend has no separate cache-refresh step.
	updateCache func() string
}

var aptBackend = packageBackend{
	query: func(name string) string { return fmt.Sprintf("dpkg -s %s >/dev/null 2>&1", name) },
	install: func(name, state string) string {
		if state == "latest" {
			return fmt.Sprintf("DEBIAN_FRONTEND=noninteractive apt-get install -y --only-upgrade %s || DEBIAN_FRONTEND=noninteractive apt-get install -y %s", name, name)
		}
		return fmt.Sprintf("DEBIAN_FRONTEND=noninteractive apt-get install -y %s", name)
	},
	remove: func(name string) string {
		return fmt.Sprintf("DEBIAN_FRONTEND=noninteractive apt-get remove -y %s", name)
	},
	updateCache: func() string { return "DEBIAN_FRONTEND=noninteractive apt-get update -qq" },
}

var yumBackend = packageBackend{
	query: func(name string) string { return fmt.Sprintf("rpm -q %s >/dev/null 2>&1", name) },
	install: func(name, state string) string {
		if state == "latest" {
			return fmt.Sprintf("yum update -y %s || yum install -y %s", name, name)
		}
		return fmt.Sprintf("yum install -y %s", name)
	},
	remove: func(name string) string { return fmt.Sprintf("yum remove -y %s", name) },
}

var dnfBackend = packageBackend{
	query: func(name string) string { return fmt.Sprintf("rpm -q %s >/dev/null 2>&1", name) },
	install: func(name, state string) string {
		if state == "latest" {
			return fmt.Sprintf("dnf update -y %s || dnf install -y %s", name, name)
		}
		return fmt.Sprintf("dnf install -y %s", name)
	},
	remove: func(name string) string { return fmt.Sprintf("dnf remove -y %s", name) },
}

var pipBackend = packageBackend{
	query: func(name string) string { return fmt.Sprintf("pip show %s >/dev/null 2>&1", bareName(name)) },
	install: func(name, state string) string {
		if state == "latest" {
			return fmt.Sprintf("pip install --upgrade %s", name)
		}
		return fmt.Sprintf("pip install %s", name)
	},
	remove: func(name string) string { return fmt.Sprintf("pip uninstall -y %s", bareName(name)) },
}

// bareName strips a pip version specifier ("requests==2.31.0" -> "requests")
// since `pip show`/`pip uninstall` take the bare package name.
func bareName(name string) string {
	for _, sep := range []string{"==", ">=", "<=", "!="} {
		if idx := strings.Index(name, sep); idx >= 0 {
			return name[:idx]
		}
	}
	return name
}

// normalizePackageState maps the spec's state aliases onto the states
// (present/absent/latest) the install/remove logic actually branches on.
func normalizePackageState(state string) string {
	switch state {
	case "installed":
		return "present"
	case "removed":
		return "absent"
	default:
		return state
	}
}

func runPackageModule(ctx context.Context, conn executor.Connection, args Args, backend packageBackend) (Result, error) {
	name := args.Get("name")
	if name == "" {
		return Result{Failed: true, Msg: "package module requires name"}, nil
	}
	state := normalizePackageState(args.GetDefault("state", "present"))

	if args.GetDefault("update_cache", "false") == "true" && backend.updateCache != nil {
		if _, stderr, rc, err := conn.Exec(ctx, backend.updateCache()); err != nil || rc != 0 {
			return Result{Failed: true, Msg: fmt.Sprintf("update cache failed: %v: %s", err, stderr)}, nil
		}
	}

	_, _, rc, err := conn.Exec(ctx, backend.query(name))
	if err != nil {
		return Result{Failed: true, Msg: err.Error()}, nil
	}
	installed := rc == 0

	switch state {
	case "absent":
		if !installed {
			return Result{Changed: false, Msg: fmt.Sprintf("%s already absent", name)}, nil
		}
		if _, stderr, rc, err := conn.Exec(ctx, backend.remove(name)); err != nil || rc != 0 {
			return Result{Failed: true, Msg: fmt.Sprintf("remove %s failed: %v: %s", name, err, stderr)}, nil
		}
		return Result{Changed: true, Msg: fmt.Sprintf("removed %s", name)}, nil

	case "present", "latest":
		if installed && state == "present" {
			return Result{Changed: false, Msg: fmt.Sprintf("%s already present", name)}, nil
		}
		if _, stderr, rc, err := conn.Exec(ctx, backend.install(name, state)); err != nil || rc != 0 {
			return Result{Failed: true, Msg: fmt.Sprintf("install %s failed: %v: %s", name, err, stderr)}, nil
		}
		return Result{Changed: true, Msg: fmt.Sprintf("installed %s", name)}, nil

	default:
		return Result{Failed: true, Msg: fmt.Sprintf("unsupported package state %q", state)}, nil
	}
}

// Apt enforces a Debian/Ubuntu package's presence via dpkg+apt-get.
func Apt(ctx context.Context, conn executor.Connection, args Args, _ map[string]string) (Result, error) {
	return runPackageModule(ctx, conn, args, aptBackend)
}

// Yum enforces an RPM package's presence via rpm+yum (RHEL/CentOS 7 and
// earlier).
func Yum(ctx context.Context, conn executor.Connection, args Args, _ map[string]string) (Result, error) {
	return runPackageModule(ctx, conn, args, yumBackend)
}

// Dnf enforces an RPM package's presence via rpm+dnf (modern Fedora/RHEL).
func Dnf(ctx context.Context, conn executor.Connection, args Args, _ map[string]string) (Result, error) {
	return runPackageModule(ctx, conn, args, dnfBackend)
}

// Pip enforces a Python package's presence via pip.
func Pip(ctx context.Context, conn executor.Connection, args Args, _ map[string]string) (Result, error) {
	return runPackageModule(ctx, conn, args, pipBackend)
}
