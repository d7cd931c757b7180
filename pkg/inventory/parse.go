package inventory

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-pkgz/stringutils"
)

type section int

const (
	sectionHosts section = iota
	sectionVars
	sectionChildren
)

var rangePattern = regexp.MustCompile(`\[(\d+):(\d+)(?::(\d+))?\]|\[([a-zA-Z]):([a-zA-Z])\]`)

// Parse reads the INI inventory dialect from r: bare "[group]" sections list
// member hosts (optionally with inline key=value host vars), "[group:vars]"
// sections assign group-level vars, and "[group:children]" sections list
// child group names. Hosts outside any section belong to the implicit
// "ungrouped" group. Host-range patterns ("web[01:03]", "db[a:c]") expand to
// one host per value in the range, inclusive on both ends.
func Parse(r io.Reader) (*Inventory, error) {
	inv := New()
	scanner := bufio.NewScanner(r)

	curGroup := "ungrouped"
	curSection := sectionHosts

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			header := strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
			switch {
			case strings.HasSuffix(header, ":vars"):
				curGroup = strings.TrimSuffix(header, ":vars")
				curSection = sectionVars
			case strings.HasSuffix(header, ":children"):
				curGroup = strings.TrimSuffix(header, ":children")
				curSection = sectionChildren
			default:
				curGroup = header
				curSection = sectionHosts
			}
			inv.group(curGroup)
			if curSection == sectionHosts {
				addAllChild(inv, curGroup)
			}
			continue
		}

		switch curSection {
		case sectionVars:
			k, v, err := parseKV(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			inv.group(curGroup).Vars[k] = v
		case sectionChildren:
			child := strings.Fields(line)[0]
			inv.group(child)
			g := inv.group(curGroup)
			if !stringutils.Contains(child, g.Children) {
				g.Children = append(g.Children, child)
			}
		default:
			if err := parseHostLine(inv, curGroup, line); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	// every group opened by a host section (except all/ungrouped themselves)
	// is a child of "all" via addAllChild below; every host, ungrouped ones
	// included, is also attached directly to "all" as it's parsed.
	return inv, nil
}

// addAllChild wires every non-special top-level group into "all" so that
// limit/pattern resolution against "all" sees every host transitively.
func addAllChild(inv *Inventory, group string) {
	if group == "all" || group == "ungrouped" {
		return
	}
	allGrp := inv.group("all")
	if !stringutils.Contains(group, allGrp.Children) {
		allGrp.Children = append(allGrp.Children, group)
	}
}

func parseKV(line string) (string, string, error) {
	idx := strings.Index(line, "=")
	if idx < 0 {
		return "", "", fmt.Errorf("expected key=value, got %q", line)
	}
	key := strings.TrimSpace(line[:idx])
	val := strings.Trim(strings.TrimSpace(line[idx+1:]), `"'`)
	if key == "" {
		return "", "", fmt.Errorf("empty key in %q", line)
	}
	return key, val, nil
}

// parseHostLine handles a single host-definition line: a host token
// (possibly a range expression) followed by whitespace-separated
// key=value host vars.
func parseHostLine(inv *Inventory, group, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	hostToken := fields[0]
	vars := map[string]string{}
	for _, f := range fields[1:] {
		k, v, err := parseKV(f)
		if err != nil {
			return err
		}
		vars[k] = v
	}

	names, err := expandRange(hostToken)
	if err != nil {
		return err
	}
	for _, name := range names {
		h := inv.host(name)
		for k, v := range vars {
			h.Vars[k] = v
		}
		inv.addHostToGroup(group, name)
		if group != "all" {
			inv.addHostToGroup("all", name)
		}
	}
	return nil
}

// expandRange expands a single "[A:B]" numeric or alphabetic range
// embedded in a host pattern into the list of concrete host names. A
// pattern with no range expression returns a single-element slice.
func expandRange(pattern string) ([]string, error) {
	loc := rangePattern.FindStringSubmatchIndex(pattern)
	if loc == nil {
		return []string{pattern}, nil
	}
	prefix := pattern[:loc[0]]
	suffix := pattern[loc[1]:]
	m := rangePattern.FindStringSubmatch(pattern)

	if m[1] != "" && m[2] != "" {
		startStr, endStr := m[1], m[2]
		start, err := strconv.Atoi(startStr)
		if err != nil {
			return nil, err
		}
		end, err := strconv.Atoi(endStr)
		if err != nil {
			return nil, err
		}
		step := 1
		if m[3] != "" {
			step, err = strconv.Atoi(m[3])
			if err != nil {
				return nil, err
			}
		}
		if step <= 0 {
			return nil, fmt.Errorf("invalid step in range %q", pattern)
		}
		width := len(startStr)
		zeroPad := strings.HasPrefix(startStr, "0") && width > 1
		var out []string
		if start <= end {
			for i := start; i <= end; i += step {
				out = append(out, prefix+formatNum(i, width, zeroPad)+suffix)
			}
		} else {
			for i := start; i >= end; i -= step {
				out = append(out, prefix+formatNum(i, width, zeroPad)+suffix)
			}
		}
		return out, nil
	}

	if m[4] != "" && m[5] != "" {
		start := m[4][0]
		end := m[5][0]
		var out []string
		if start <= end {
			for c := start; c <= end; c++ {
				out = append(out, prefix+string(c)+suffix)
			}
		} else {
			for c := start; c >= end; c-- {
				out = append(out, prefix+string(c)+suffix)
			}
		}
		return out, nil
	}

	return []string{pattern}, nil
}

func formatNum(n, width int, zeroPad bool) string {
	s := strconv.Itoa(n)
	if zeroPad && len(s) < width {
		s = strings.Repeat("0", width-len(s)) + s
	}
	return s
}
