// Package inventory parses the INI-style inventory dialect and resolves
// hosts/groups/patterns the way the playbook executor expects.
package inventory

import (
	"fmt"
	"sort"
)

// Host is a single managed node and its own variables.
type Host struct {
	Name string
	Vars map[string]string
}

// Group is a named collection of hosts, child groups and group-level vars.
type Group struct {
	Name     string
	Hosts    []string
	Children []string
	Vars     map[string]string
}

// Inventory is the fully parsed hosts/groups model.
type Inventory struct {
	Hosts  map[string]*Host
	Groups map[string]*Group
}

// New returns an empty inventory with the implicit "all" and "ungrouped"
// groups pre-seeded, matching what every dialect-compatible parser assumes.
func New() *Inventory {
	inv := &Inventory{
		Hosts:  map[string]*Host{},
		Groups: map[string]*Group{},
	}
	inv.group("all")
	inv.group("ungrouped")
	return inv
}

func (inv *Inventory) group(name string) *Group {
	g, ok := inv.Groups[name]
	if !ok {
		g = &Group{Name: name, Vars: map[string]string{}}
		inv.Groups[name] = g
	}
	return g
}

func (inv *Inventory) host(name string) *Host {
	h, ok := inv.Hosts[name]
	if !ok {
		h = &Host{Name: name, Vars: map[string]string{}}
		inv.Hosts[name] = h
	}
	return h
}

// addHostToGroup registers a host under the given group only (callers add
// it to "all" separately), keeping
// membership lists sorted-free (insertion order; resolution sorts later
// where the spec requires determinism).
func (inv *Inventory) addHostToGroup(group, host string) {
	g := inv.group(group)
	for _, h := range g.Hosts {
		if h == host {
			return
		}
	}
	g.Hosts = append(g.Hosts, host)
}

// HostVars returns the fully layered variables visible to host, applying
// the precedence spec.md §3 describes for the inventory layer alone
// (inherited group vars, lowest, then host vars): ancestor groups are
// applied along the inheritance chain from most distant ancestor down to
// the host's own direct group (child overrides parent), then finally the
// host's own vars, so a more specific assignment always wins. Sibling
// groups at the same inheritance depth merge in an unspecified but
// deterministic (alphabetical) order.
func (inv *Inventory) HostVars(hostName string) map[string]string {
	out := map[string]string{}
	out["inventory_hostname"] = hostName
	if _, ok := out["ansible_host"]; !ok {
		out["ansible_host"] = hostName
	}

	for _, gname := range inv.groupsOrderedForHost(hostName) {
		g := inv.Groups[gname]
		if g == nil {
			continue
		}
		for k, v := range g.Vars {
			out[k] = v
		}
	}

	if h, ok := inv.Hosts[hostName]; ok {
		for k, v := range h.Vars {
			out[k] = v
		}
	}
	return out
}

// groupsOrderedForHost returns every group hostName transitively belongs
// to, ordered parent-before-child along the inheritance chain: a group
// hostName is a direct member of sits at depth 0, and each :children
// ancestor sits at a depth one greater than its most indirect descendant
// path requires, so merging front-to-back always applies a child's vars
// after (and therefore overriding) its parents'.
func (inv *Inventory) groupsOrderedForHost(hostName string) []string {
	groups := inv.GroupsForHost(hostName)
	if len(groups) == 0 {
		return nil
	}
	groupSet := make(map[string]bool, len(groups))
	for _, g := range groups {
		groupSet[g] = true
	}

	parentsOf := map[string][]string{}
	for gname, g := range inv.Groups {
		for _, c := range g.Children {
			parentsOf[c] = append(parentsOf[c], gname)
		}
	}

	depth := map[string]int{}
	var assign func(gname string, d int)
	assign = func(gname string, d int) {
		if cur, ok := depth[gname]; ok && cur >= d {
			return
		}
		depth[gname] = d
		for _, p := range parentsOf[gname] {
			if groupSet[p] {
				assign(p, d+1)
			}
		}
	}
	for _, gname := range groups {
		g := inv.Groups[gname]
		if g == nil {
			continue
		}
		for _, h := range g.Hosts {
			if h == hostName {
				assign(gname, 0)
			}
		}
	}

	sort.Slice(groups, func(i, j int) bool {
		if depth[groups[i]] != depth[groups[j]] {
			return depth[groups[i]] > depth[groups[j]]
		}
		return groups[i] < groups[j]
	})
	return groups
}

// GroupsForHost returns every group (direct or via :children) the host is a
// transitive member of, cycle-safe via a visited set.
func (inv *Inventory) GroupsForHost(hostName string) []string {
	visited := map[string]bool{}
	var matched []string

	var walk func(gname string) bool
	walk = func(gname string) bool {
		if visited[gname] {
			return false
		}
		visited[gname] = true
		g := inv.Groups[gname]
		if g == nil {
			return false
		}
		direct := false
		for _, h := range g.Hosts {
			if h == hostName {
				direct = true
				break
			}
		}
		childMatch := false
		for _, child := range g.Children {
			if walk(child) {
				childMatch = true
			}
		}
		if direct || childMatch {
			matched = append(matched, gname)
			return true
		}
		return false
	}

	for gname := range inv.Groups {
		visited = map[string]bool{}
		walk(gname)
	}
	return matched
}

// AllHostNames returns every distinct host name known to the inventory,
// sorted for deterministic iteration order.
func (inv *Inventory) AllHostNames() []string {
	names := make([]string, 0, len(inv.Hosts))
	for n := range inv.Hosts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ExpandGroup returns every host transitively reachable from group (direct
// members plus all :children, recursively), cycle-safe and deduplicated.
func (inv *Inventory) ExpandGroup(groupName string) ([]string, error) {
	g, ok := inv.Groups[groupName]
	if !ok {
		return nil, fmt.Errorf("unknown group %q", groupName)
	}
	visited := map[string]bool{}
	seen := map[string]bool{}
	var out []string

	var walk func(*Group)
	walk = func(g *Group) {
		if visited[g.Name] {
			return
		}
		visited[g.Name] = true
		for _, h := range g.Hosts {
			if !seen[h] {
				seen[h] = true
				out = append(out, h)
			}
		}
		for _, c := range g.Children {
			if cg, ok := inv.Groups[c]; ok {
				walk(cg)
			}
		}
	}
	walk(g)
	return out, nil
}
