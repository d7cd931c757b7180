package template

import "strings"

// EvalWhen evaluates the small, deliberately separate conditional grammar
// used for task `when:` clauses (and reused for template {% if %} blocks):
//
//	not <expr>
//	<var> == '<literal>' | <var> != '<literal>'
//	<var> is defined | <var> is undefined
//	<expr> and <expr>  (conjunction of any of the above)
//	<var>                       -- truthy fallback: defined, non-empty,
//	                               and not "false"/"0"
//
// Grounded on the teacher's translateWhen (pkg/config/ansible.go), which
// recognizes this same shape of condition (var == 'literal', var is (not)
// defined, simple "and" splitting) to transpile Ansible when: clauses into
// shell tests.
func EvalWhen(expr string, vars map[string]string) bool {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true
	}

	if clauses := splitAnd(expr); len(clauses) > 1 {
		for _, c := range clauses {
			if !EvalWhen(c, vars) {
				return false
			}
		}
		return true
	}

	if strings.HasPrefix(expr, "not ") {
		return !EvalWhen(strings.TrimSpace(expr[4:]), vars)
	}

	if idx := strings.Index(expr, "=="); idx >= 0 {
		left := strings.TrimSpace(expr[:idx])
		right := unquote(strings.TrimSpace(expr[idx+2:]))
		return resolveTermRaw(left, vars) == right
	}
	if idx := strings.Index(expr, "!="); idx >= 0 {
		left := strings.TrimSpace(expr[:idx])
		right := unquote(strings.TrimSpace(expr[idx+2:]))
		return resolveTermRaw(left, vars) != right
	}

	if strings.HasSuffix(expr, "is defined") {
		v := strings.TrimSpace(strings.TrimSuffix(expr, "is defined"))
		_, ok := vars[v]
		return ok
	}
	if strings.HasSuffix(expr, "is undefined") {
		v := strings.TrimSpace(strings.TrimSuffix(expr, "is undefined"))
		_, ok := vars[v]
		return !ok
	}

	// truthy fallback: defined, non-empty, and not a recognized falsy token
	val, missing := resolveValue(expr, vars)
	if missing {
		return false
	}
	switch val {
	case "", "false", "0":
		return false
	default:
		return true
	}
}

// splitAnd splits on top-level " and " occurrences (no quoting concerns,
// since when: expressions never embed " and " inside a literal in the
// grammar this engine supports).
func splitAnd(expr string) []string {
	parts := strings.Split(expr, " and ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func resolveTermRaw(term string, vars map[string]string) string {
	if len(term) >= 2 && (term[0] == '\'' || term[0] == '"') && term[len(term)-1] == term[0] {
		return term[1 : len(term)-1]
	}
	return vars[term]
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
