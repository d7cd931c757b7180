package playbook

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// taskLevelKeys are the task-map keys this engine treats as task metadata
// rather than module arguments; every other key is taken as the module
// name, and a task with more than one such key is rejected (the name is
// not checked against the module registry here).
var taskLevelKeys = map[string]bool{
	"name": true, "when": true, "register": true, "notify": true,
	"tags": true,
}

type rawPlay struct {
	Name        string            `yaml:"name"`
	Hosts       string            `yaml:"hosts"`
	Vars        map[string]string `yaml:"vars"`
	GatherFacts *bool             `yaml:"gather_facts"`
	Tasks       []rawTask         `yaml:"tasks"`
	Handlers    []rawTask         `yaml:"handlers"`
}

func (rp rawPlay) toPlay() (Play, error) {
	if rp.Hosts == "" {
		return Play{}, fmt.Errorf("play requires hosts")
	}
	p := Play{
		Name:        rp.Name,
		Hosts:       rp.Hosts,
		Vars:        rp.Vars,
		GatherFacts: rp.GatherFacts == nil || *rp.GatherFacts,
	}
	for _, rt := range rp.Tasks {
		t, err := rt.toTask()
		if err != nil {
			return Play{}, err
		}
		p.Tasks = append(p.Tasks, t)
	}
	for _, rt := range rp.Handlers {
		t, err := rt.toTask()
		if err != nil {
			return Play{}, err
		}
		p.Handlers = append(p.Handlers, t)
	}
	return p, nil
}

// rawTask decodes into a generic map first (via yaml.Node, so unknown-key
// strictness stays enforced at the outer Decoder) and is then split into
// task-level metadata plus exactly one module invocation - the same
// two-pass shape the teacher's command.go uses for its Cmd custom
// UnmarshalYAML, generalized from "one of several typed command fields"
// to "one of N registered module names".
type rawTask struct {
	Name     string
	When     string
	Register string
	Notify   []string
	Tags     []string
	Module   string
	Args     ModuleArgs
}

func (rt *rawTask) UnmarshalYAML(node *yaml.Node) error {
	var m map[string]yaml.Node
	if err := node.Decode(&m); err != nil {
		return err
	}

	if n, ok := m["name"]; ok {
		if err := n.Decode(&rt.Name); err != nil {
			return fmt.Errorf("task name: %w", err)
		}
	}
	if n, ok := m["when"]; ok {
		if err := n.Decode(&rt.When); err != nil {
			return fmt.Errorf("task when: %w", err)
		}
	}
	if n, ok := m["register"]; ok {
		if err := n.Decode(&rt.Register); err != nil {
			return fmt.Errorf("task register: %w", err)
		}
	}
	if n, ok := m["notify"]; ok {
		if err := decodeStringOrList(&n, &rt.Notify); err != nil {
			return fmt.Errorf("task notify: %w", err)
		}
	}
	if n, ok := m["tags"]; ok {
		if err := decodeStringOrList(&n, &rt.Tags); err != nil {
			return fmt.Errorf("task tags: %w", err)
		}
	}

	var moduleKey string
	for k := range m {
		if taskLevelKeys[k] {
			continue
		}
		if moduleKey != "" {
			return fmt.Errorf("task %q has more than one module key (%q and %q)", rt.Name, moduleKey, k)
		}
		moduleKey = k
	}
	if moduleKey == "" {
		return fmt.Errorf("task %q has no module", rt.Name)
	}
	rt.Module = moduleKey

	argNode := m[moduleKey]
	var raw string
	if argNode.Decode(&raw) == nil && argNode.Kind == yaml.ScalarNode {
		rt.Args = ModuleArgs{Raw: raw}
		return nil
	}
	var params map[string]string
	if err := argNode.Decode(&params); err != nil {
		return fmt.Errorf("task %q module %q args: %w", rt.Name, moduleKey, err)
	}
	rt.Args = ModuleArgs{Params: params}
	return nil
}

func (rt rawTask) toTask() (Task, error) {
	return Task{
		Name:     rt.Name,
		Module:   rt.Module,
		Args:     rt.Args,
		When:     rt.When,
		Register: rt.Register,
		Notify:   rt.Notify,
		Tags:     rt.Tags,
	}, nil
}

// decodeStringOrList decodes a YAML node that may be either a single
// scalar string or a sequence of strings into dst, mirroring the
// single-or-slice flexibility the teacher's command.go UnmarshalYAML
// grants Copy/Sync/Delete fields.
func decodeStringOrList(node *yaml.Node, dst *[]string) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*dst = []string{s}
		return nil
	}
	return node.Decode(dst)
}
