package inventory

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ResolvePattern expands a play's "hosts:" pattern (a group name, a host
// name, or "all") into the ordered, deduplicated list of target host names.
func (inv *Inventory) ResolvePattern(pattern string) ([]string, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, fmt.Errorf("empty host pattern")
	}

	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	for _, term := range splitPattern(pattern) {
		negate := strings.HasPrefix(term, "!")
		term = strings.TrimPrefix(term, "!")
		if term == "" {
			continue
		}

		var matched []string
		if g, ok := inv.Groups[term]; ok {
			_ = g
			expanded, err := inv.ExpandGroup(term)
			if err != nil {
				return nil, err
			}
			matched = expanded
		} else if _, ok := inv.Hosts[term]; ok {
			matched = []string{term}
		} else if term == "localhost" {
			// localhost is always a valid target even when the
			// inventory never declares it.
			matched = []string{"localhost"}
		} else {
			matched = matchGlob(inv.AllHostNames(), term)
		}

		if negate {
			for _, m := range matched {
				delete(seen, m)
			}
			filtered := out[:0]
			removed := map[string]bool{}
			for _, m := range matched {
				removed[m] = true
			}
			for _, h := range out {
				if !removed[h] {
					filtered = append(filtered, h)
				}
			}
			out = filtered
			continue
		}
		for _, m := range matched {
			add(m)
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("host pattern %q matched no hosts", pattern)
	}
	return out, nil
}

// ResolveLimit narrows hosts (the pattern-resolved target set for a play)
// down to the colon-separated --limit expression, supporting "!"-negated
// terms the same way ResolvePattern does, but scoped only to the hosts
// already selected by the play.
func (inv *Inventory) ResolveLimit(hosts []string, limit string) ([]string, error) {
	limit = strings.TrimSpace(limit)
	if limit == "" {
		return hosts, nil
	}

	available := map[string]bool{}
	for _, h := range hosts {
		available[h] = true
	}

	included := map[string]bool{}
	excluded := map[string]bool{}
	anyPositive := false

	for _, term := range splitPattern(limit) {
		negate := strings.HasPrefix(term, "!")
		term = strings.TrimPrefix(term, "!")
		if term == "" {
			continue
		}

		var matched []string
		if _, ok := inv.Groups[term]; ok {
			expanded, err := inv.ExpandGroup(term)
			if err != nil {
				return nil, err
			}
			matched = expanded
		} else if _, ok := inv.Hosts[term]; ok {
			matched = []string{term}
		} else {
			matched = matchGlob(inv.AllHostNames(), term)
		}

		if negate {
			for _, m := range matched {
				excluded[m] = true
			}
			continue
		}
		anyPositive = true
		for _, m := range matched {
			included[m] = true
		}
	}

	var out []string
	for _, h := range hosts {
		if !available[h] {
			continue
		}
		if excluded[h] {
			continue
		}
		if anyPositive && !included[h] {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

func splitPattern(pattern string) []string {
	parts := strings.Split(pattern, ":")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func matchGlob(names []string, pattern string) []string {
	var out []string
	for _, n := range names {
		if ok, _ := filepath.Match(pattern, n); ok {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
