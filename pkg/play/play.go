// Package play implements the play executor: host fan-out, the per-host
// task loop (tag filter, when, module resolution, execution, register,
// notify, classification), and post-task-loop handler firing.
//
// Grounded on the teacher's pkg/runner/runner.go Process.Run/
// runTaskOnHost (bounded worker-group fan-out via go-pkgz/syncs, one
// Connection per host, register-like variable propagation across
// commands), generalized from "shell commands on hosts" to "modules on
// hosts with typed results, when/tags/handlers".
package play

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-pkgz/stringutils"
	"github.com/go-pkgz/syncs"

	"github.com/alexisbouchez/forge/pkg/executor"
	"github.com/alexisbouchez/forge/pkg/inventory"
	"github.com/alexisbouchez/forge/pkg/modules"
	"github.com/alexisbouchez/forge/pkg/playbook"
	"github.com/alexisbouchez/forge/pkg/template"
)

// Status is a task outcome classification.
type Status string

const (
	StatusOK      Status = "ok"
	StatusChanged Status = "changed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// TaskResult is one task's outcome on one host.
type TaskResult struct {
	Host   string
	Task   string
	Module string
	Status Status
	Msg    string
}

// HostResult is every task outcome for one host in one play, in task
// order, plus whether the host's task loop aborted before any task ran
// (only possible when the host connection itself could not be opened -
// a failing task never aborts the loop, per spec's failure policy).
type HostResult struct {
	Host    string
	Tasks   []TaskResult
	Aborted bool
}

// ConnFactory builds the Connection a host's task loop should use. The
// caller supplies this so play doesn't need to know about SSH/local
// selection policy (inventory vars like ansible_connection drive that
// decision one layer up, in the CLI).
type ConnFactory func(ctx context.Context, hostName string, vars map[string]string) (executor.Connection, error)

// Options configures one RunPlay invocation.
type Options struct {
	Forks     int
	Tags      []string
	SkipTags  []string
	Limit     string
	ExtraVars map[string]string
	Logs      executor.Logs
	Check     bool
}

// RunPlay resolves the play's target hosts, then runs each host's task
// loop concurrently, bounded by opts.Forks (spec.md §5).
func RunPlay(ctx context.Context, p playbook.Play, inv *inventory.Inventory, reg *modules.Registry, connect ConnFactory, opts Options) ([]HostResult, error) {
	hosts, err := inv.ResolvePattern(p.Hosts)
	if err != nil {
		return nil, fmt.Errorf("resolve hosts for play %q: %w", p.Name, err)
	}
	if opts.Limit != "" {
		hosts, err = inv.ResolveLimit(hosts, opts.Limit)
		if err != nil {
			return nil, fmt.Errorf("resolve limit: %w", err)
		}
	}

	forks := opts.Forks
	if forks <= 0 {
		forks = 1
	}

	results := make([]HostResult, len(hosts))
	group := syncs.NewErrSizedGroup(forks, syncs.Context(ctx))

	for i, h := range hosts {
		i, h := i, h
		group.Go(func() error {
			hostVars := inv.HostVars(h)
			scope := mergeVars(hostVars, p.Vars, opts.ExtraVars)
			results[i] = runPlayOnHost(ctx, p, h, scope, reg, connect, opts)
			return nil
		})
	}
	_ = group.Wait() // per-host failures are captured in results, not propagated as a group error

	return results, nil
}

// mergeVars layers variable maps lowest to highest precedence: inventory
// host vars, then play vars, then extra vars - per spec.md §3's
// precedence order (registered vars are layered in later, per task, by
// runPlayOnHost itself since they only exist once a task has run).
func mergeVars(layers ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, l := range layers {
		for k, v := range l {
			out[k] = v
		}
	}
	return out
}

func runPlayOnHost(ctx context.Context, p playbook.Play, host string, scope map[string]string, reg *modules.Registry, connect ConnFactory, opts Options) HostResult {
	hr := HostResult{Host: host}

	conn, err := connect(ctx, host, scope)
	if err != nil {
		hr.Tasks = append(hr.Tasks, TaskResult{Host: host, Status: StatusFailed, Msg: fmt.Sprintf("connect: %v", err)})
		hr.Aborted = true
		return hr
	}
	defer conn.Close() //nolint:errcheck // best-effort cleanup on a finished host

	notified := map[string]bool{}
	var notifiedOrder []string

	for _, t := range p.Tasks {
		if !tagsMatch(t.Tags, opts.Tags, opts.SkipTags) {
			hr.Tasks = append(hr.Tasks, TaskResult{Host: host, Task: t.Name, Module: t.Module, Status: StatusSkipped, Msg: "skipped (tags)"})
			continue
		}

		if t.When != "" && !template.EvalWhen(t.When, scope) {
			hr.Tasks = append(hr.Tasks, TaskResult{Host: host, Task: t.Name, Module: t.Module, Status: StatusSkipped, Msg: "skipped (when false)"})
			continue
		}

		mod, err := reg.Lookup(t.Module)
		if err != nil {
			hr.Tasks = append(hr.Tasks, TaskResult{Host: host, Task: t.Name, Module: t.Module, Status: StatusFailed, Msg: err.Error()})
			continue
		}

		// under --check the module is never dispatched at all; the task
		// loop synthesizes a no-op ok result so modules stay unaware of
		// check mode entirely.
		var res modules.Result
		if opts.Check {
			res = modules.Result{Msg: "check mode"}
		} else {
			args := renderArgs(t.Args, scope)
			res, err = mod(ctx, conn, args, scope)
			if err != nil {
				hr.Tasks = append(hr.Tasks, TaskResult{Host: host, Task: t.Name, Module: t.Module, Status: StatusFailed, Msg: err.Error()})
				continue
			}
		}

		if t.Register != "" {
			registerResult(scope, t.Register, res)
			// extra vars stay the highest-precedence layer even when a
			// registered key collides with one
			for k, v := range opts.ExtraVars {
				scope[k] = v
			}
		}

		status := classify(res)
		hr.Tasks = append(hr.Tasks, TaskResult{Host: host, Task: t.Name, Module: t.Module, Status: status, Msg: res.Msg})

		if status == StatusChanged {
			for _, n := range t.Notify {
				if !notified[n] {
					notified[n] = true
					notifiedOrder = append(notifiedOrder, n)
				}
			}
		}
	}

	for _, name := range notifiedOrder {
		for _, h := range p.Handlers {
			if h.Name != name {
				continue
			}
			mod, err := reg.Lookup(h.Module)
			if err != nil {
				hr.Tasks = append(hr.Tasks, TaskResult{Host: host, Task: h.Name, Module: h.Module, Status: StatusFailed, Msg: err.Error()})
				continue
			}
			args := renderArgs(h.Args, scope)
			res, err := mod(ctx, conn, args, scope)
			if err != nil {
				hr.Tasks = append(hr.Tasks, TaskResult{Host: host, Task: h.Name, Module: h.Module, Status: StatusFailed, Msg: err.Error()})
				continue
			}
			hr.Tasks = append(hr.Tasks, TaskResult{Host: host, Task: h.Name, Module: h.Module, Status: classify(res), Msg: res.Msg})
		}
	}

	return hr
}

// classify maps a module Result onto the spec's four-way outcome per
// spec.md §3/§4.3: failed takes priority, then changed, then plain ok.
// Skipped is produced entirely by the caller (tag/when filtering), never
// by a module itself.
func classify(res modules.Result) Status {
	switch {
	case res.Failed:
		return StatusFailed
	case res.Changed:
		return StatusChanged
	default:
		return StatusOK
	}
}

// registerResult captures a module's result into the flat, dotted-string
// variable scope under the given name - deliberately NOT a nested
// structure (spec.md §9 design note), so a later task's when/template can
// reference `result.changed`, `result.stdout`, `result.rc` directly as
// plain string keys.
func registerResult(scope map[string]string, name string, res modules.Result) {
	scope[name+".changed"] = boolStr(res.Changed)
	scope[name+".failed"] = boolStr(res.Failed)
	scope[name+".stdout"] = res.Stdout
	scope[name+".stderr"] = res.Stderr
	scope[name+".rc"] = fmt.Sprintf("%d", res.RC)
	scope[name] = res.Stdout
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// renderArgs expands {{ }} templating in a task's module args against the
// current variable scope before the module sees them, so e.g. `path:
// "/etc/{{ service_name }}.conf"` resolves before the module's
// idempotence check runs.
func renderArgs(args playbook.ModuleArgs, scope map[string]string) modules.Args {
	out := modules.Args{}
	if args.Raw != "" {
		rendered, err := template.Render(args.Raw, scope)
		if err == nil {
			out.Raw = rendered
		} else {
			out.Raw = args.Raw
		}
	}
	if args.Params != nil {
		out.Params = make(map[string]string, len(args.Params))
		for k, v := range args.Params {
			rendered, err := template.Render(v, scope)
			if err == nil {
				out.Params[k] = rendered
			} else {
				out.Params[k] = v
			}
		}
	}
	return out
}

// tagsMatch decides whether a task with the given tags should run: if
// skipTags is non-empty and any task tag is in it, the task is skipped;
// otherwise, if runTags is non-empty, the task runs only when at least one
// of its tags is in runTags (spec.md §4.3 tag filtering).
func tagsMatch(taskTags, runTags, skipTags []string) bool {
	if len(skipTags) > 0 && stringutils.HasCommonElement(taskTags, skipTags) {
		return false
	}
	if len(runTags) > 0 {
		return stringutils.HasCommonElement(taskTags, runTags)
	}
	return true
}

// Summary totals outcomes across every host, the shape the CLI's
// end-of-run report (spec.md §6) is built from.
type Summary struct {
	OK      int
	Changed int
	Failed  int
	Skipped int
}

// Summarize aggregates HostResults into per-status counts, sorted by host
// name only for deterministic reporting (the results themselves already
// carry per-host task order).
func Summarize(results []HostResult) Summary {
	sort.Slice(results, func(i, j int) bool { return results[i].Host < results[j].Host })
	var s Summary
	for _, hr := range results {
		for _, t := range hr.Tasks {
			switch t.Status {
			case StatusOK:
				s.OK++
			case StatusChanged:
				s.Changed++
			case StatusFailed:
				s.Failed++
			case StatusSkipped:
				s.Skipped++
			}
		}
	}
	return s
}
