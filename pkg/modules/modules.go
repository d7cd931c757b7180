// Package modules implements the idempotent module contract and the
// built-in module registry: command, shell, raw, script, copy, file,
// template, apt (plus yum/dnf/pip siblings), service, lineinfile, user,
// group.
//
// Grounded on the shell-composition idioms in the teacher's
// pkg/config/ansible.go (buildAptScript, buildFileScript,
// buildServiceScript, buildUserScript, ...) and on
// liliang-cn-gosible/pkg/modules' BaseModule/registry shape for the
// typed-result, named-handler-map design (favored over the teacher's own
// hardcoded execCommand switch per the flat module-registry design note).
package modules

import (
	"context"
	"fmt"

	"github.com/alexisbouchez/forge/pkg/executor"
)

// Args is a task's module arguments: the flat key=value map every builtin
// module reads from, plus an optional "_raw" slot for modules (command,
// shell, raw, script) whose argument is a single free-form string rather
// than key=value pairs.
type Args struct {
	Raw    string
	Params map[string]string
}

// Get returns a named argument, or "" if absent.
func (a Args) Get(key string) string {
	if a.Params == nil {
		return ""
	}
	return a.Params[key]
}

// GetDefault returns a named argument or def if absent/empty.
func (a Args) GetDefault(key, def string) string {
	if v := a.Get(key); v != "" {
		return v
	}
	return def
}

// Bool returns whether a named argument is present and truthy ("yes",
// "true", "1").
func (a Args) Bool(key string) bool {
	switch a.Get(key) {
	case "yes", "true", "1":
		return true
	default:
		return false
	}
}

// Result is a single module invocation's outcome, the fixed point every
// builtin module and the play executor agree on. Modeled on the flat
// fields of the teacher's own exec results and on gosible's types.Result,
// but restricted to the flat dotted-string scope the spec's VarScope
// uses (no nested Data map) - register captures Stdout/Stderr/RC
// directly, not an opaque payload.
type Result struct {
	Changed bool
	Failed  bool
	Skipped bool
	Msg     string
	Stdout  string
	Stderr  string
	RC      int
}

// Module is a single built-in's implementation: given a connection, the
// task's resolved arguments and the task's variable scope (for modules
// that need to read vars directly, e.g. template's rendering), it
// returns the outcome.
type Module func(ctx context.Context, conn executor.Connection, args Args, vars map[string]string) (Result, error)

// Registry maps a module name to its implementation.
type Registry struct {
	modules map[string]Module
}

// NewRegistry returns a Registry pre-populated with every builtin module.
func NewRegistry() *Registry {
	r := &Registry{modules: map[string]Module{}}
	r.Register("command", Command)
	r.Register("shell", Shell)
	r.Register("raw", Raw)
	r.Register("script", Script)
	r.Register("copy", Copy)
	r.Register("file", File)
	r.Register("template", Template)
	r.Register("apt", Apt)
	r.Register("yum", Yum)
	r.Register("dnf", Dnf)
	r.Register("pip", Pip)
	r.Register("service", Service)
	r.Register("lineinfile", Lineinfile)
	r.Register("user", User)
	r.Register("group", Group)
	return r
}

// Register adds or replaces a module under name.
func (r *Registry) Register(name string, m Module) {
	r.modules[name] = m
}

// Lookup returns the module registered under name, or an error if none
// is registered - the module-resolution step of the executor's per-task
// loop (spec.md §4.3) calls this to dispatch by the task's module key.
func (r *Registry) Lookup(name string) (Module, error) {
	m, ok := r.modules[name]
	if !ok {
		return nil, fmt.Errorf("unknown module %q", name)
	}
	return m, nil
}

// Names returns every registered module name, in no particular order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.modules))
	for n := range r.modules {
		names = append(names, n)
	}
	return names
}
