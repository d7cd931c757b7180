// Package playbook parses the YAML playbook dialect (plays of tasks) and
// hosts the Play/Task/ModuleArgs data model spec.md
// §3 describes.
//
// Grounded on the teacher's pkg/config/playbook.go (strict yaml.v3
// decoding, go-multierror aggregation of validation failures) and
// command.go (per-field custom UnmarshalYAML for a task shape that can't
// be decoded with a single static struct tag set), generalized from the
// teacher's Cmd-per-action model to the spec's module-registry dispatch.
package playbook

import (
	"bytes"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// ModuleArgs is a task's resolved module arguments: either a single raw
// string (command/shell/raw/script) or a set of key=value parameters
// (every other builtin module).
type ModuleArgs struct {
	Raw    string
	Params map[string]string
}

// Task is one step of a play: exactly one module invocation, gated by an
// optional `when`, optionally capturing its result under `register`, and
// optionally notifying handlers by name on change.
type Task struct {
	Name     string
	Module   string
	Args     ModuleArgs
	When     string
	Register string
	Notify   []string
	Tags     []string
}

// Play is one ordered unit of a playbook: a host pattern, play-level vars,
// an ordered task list, and handlers notified at most once each at the end
// of the per-host task loop.
type Play struct {
	Name        string
	Hosts       string
	Vars        map[string]string
	Tasks       []Task
	Handlers    []Task
	GatherFacts bool
}

// Playbook is the root document: an ordered list of plays, executed in
// file order.
type Playbook struct {
	Plays []Play
}

// Load reads and parses a playbook YAML file from path.
func Load(path string) (*Playbook, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-provided path
	if err != nil {
		return nil, fmt.Errorf("read playbook %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes playbook YAML from raw bytes using strict (unknown-field
// rejecting) decoding, matching the teacher's unmarshalPlaybookFile.
func Parse(data []byte) (*Playbook, error) {
	var raw []rawPlay
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse playbook: %w", err)
	}

	pb := &Playbook{}
	var errs *multierror.Error
	for i, rp := range raw {
		play, err := rp.toPlay()
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("play %d (%s): %w", i, rp.Name, err))
			continue
		}
		pb.Plays = append(pb.Plays, play)
	}
	if errs.ErrorOrNil() != nil {
		return nil, errs
	}
	return pb, nil
}
