// Package template implements the single-pass substitution/filter/
// conditional/loop renderer tasks and module args are expanded through,
// plus the separate, deliberately smaller eval_when grammar used for
// task conditionals.
//
// Grounded on the teacher's own crude `{{ VAR }}`-style substitution in
// pkg/config/ansible.go (applyTemplates/translateWhen), generalized here
// into the full grammar.
package template

import (
	"fmt"
	"strings"
)

// Render expands {# comments #}, {% if/else/endif %} blocks, {% for x in y
// %}/{% endfor %} loops, and {{ expr | filter }} expressions against vars,
// left to right, in that precedence.
func Render(text string, vars map[string]string) (string, error) {
	toks, err := tokenize(text)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := renderTokens(toks, vars, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

type tokKind int

const (
	tokText tokKind = iota
	tokComment
	tokExpr
	tokIf
	tokElse
	tokEndif
	tokFor
	tokEndfor
)

type token struct {
	kind tokKind
	text string // raw inner text for comment/expr/if/for
}

// tokenize performs one left-to-right pass identifying {# #}, {% %} and
// {{ }} spans; everything else is literal text.
func tokenize(text string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(text) {
		next := strings.IndexAny(text[i:], "{")
		if next < 0 {
			toks = append(toks, token{tokText, text[i:]})
			break
		}
		if next > 0 {
			toks = append(toks, token{tokText, text[i : i+next]})
			i += next
		}
		rest := text[i:]
		switch {
		case strings.HasPrefix(rest, "{#"):
			end := strings.Index(rest, "#}")
			if end < 0 {
				return nil, fmt.Errorf("unterminated comment")
			}
			toks = append(toks, token{tokComment, rest[2:end]})
			i += end + 2
		case strings.HasPrefix(rest, "{%"):
			end := strings.Index(rest, "%}")
			if end < 0 {
				return nil, fmt.Errorf("unterminated statement")
			}
			inner := strings.TrimSpace(rest[2:end])
			switch {
			case strings.HasPrefix(inner, "if "):
				toks = append(toks, token{tokIf, strings.TrimSpace(inner[3:])})
			case inner == "else":
				toks = append(toks, token{tokElse, ""})
			case inner == "endif":
				toks = append(toks, token{tokEndif, ""})
			case strings.HasPrefix(inner, "for "):
				toks = append(toks, token{tokFor, strings.TrimSpace(inner[4:])})
			case inner == "endfor":
				toks = append(toks, token{tokEndfor, ""})
			default:
				return nil, fmt.Errorf("unknown statement %q", inner)
			}
			i += end + 2
		case strings.HasPrefix(rest, "{{"):
			end := strings.Index(rest, "}}")
			if end < 0 {
				return nil, fmt.Errorf("unterminated expression")
			}
			toks = append(toks, token{tokExpr, strings.TrimSpace(rest[2:end])})
			i += end + 2
		default:
			toks = append(toks, token{tokText, "{"})
			i++
		}
	}
	return toks, nil
}

// renderTokens walks toks once, recursing into matched if/for blocks by
// tracking nesting depth so an inner if/for's endif/endfor doesn't close
// the outer block.
func renderTokens(toks []token, vars map[string]string, out *strings.Builder) error {
	i := 0
	for i < len(toks) {
		t := toks[i]
		switch t.kind {
		case tokText:
			out.WriteString(t.text)
			i++
		case tokComment:
			i++
		case tokExpr:
			v, err := evalExpr(t.text, vars)
			if err != nil {
				return err
			}
			out.WriteString(v)
			i++
		case tokIf:
			body, elseBody, next, err := splitIf(toks, i+1)
			if err != nil {
				return err
			}
			cond := EvalWhen(t.text, vars)
			if cond {
				if err := renderTokens(body, vars, out); err != nil {
					return err
				}
			} else if elseBody != nil {
				if err := renderTokens(elseBody, vars, out); err != nil {
					return err
				}
			}
			i = next
		case tokFor:
			body, next, err := splitFor(toks, i+1)
			if err != nil {
				return err
			}
			itemVar, listExpr, err := parseForHeader(t.text)
			if err != nil {
				return err
			}
			items := resolveList(listExpr, vars)
			for _, item := range items {
				loopVars := cloneVars(vars)
				loopVars[itemVar] = item
				if err := renderTokens(body, loopVars, out); err != nil {
					return err
				}
			}
			i = next
		default:
			return fmt.Errorf("unexpected token in render stream")
		}
	}
	return nil
}

func cloneVars(vars map[string]string) map[string]string {
	out := make(map[string]string, len(vars)+1)
	for k, v := range vars {
		out[k] = v
	}
	return out
}

// splitIf consumes tokens starting at start (just past the opening {% if
// %}) until the matching {% endif %}, tracking nested if/for depth, and
// returns the then-body, optional else-body, and the index just past
// endif.
func splitIf(toks []token, start int) (thenBody, elseBody []token, next int, err error) {
	depth := 0
	elseIdx := -1
	for i := start; i < len(toks); i++ {
		switch toks[i].kind {
		case tokIf, tokFor:
			depth++
		case tokElse:
			if depth == 0 && elseIdx < 0 {
				elseIdx = i
			}
		case tokEndif:
			if depth == 0 {
				if elseIdx >= 0 {
					return toks[start:elseIdx], toks[elseIdx+1 : i], i + 1, nil
				}
				return toks[start:i], nil, i + 1, nil
			}
			depth--
		case tokEndfor:
			depth--
		}
	}
	return nil, nil, 0, fmt.Errorf("missing endif")
}

func splitFor(toks []token, start int) (body []token, next int, err error) {
	depth := 0
	for i := start; i < len(toks); i++ {
		switch toks[i].kind {
		case tokIf, tokFor:
			depth++
		case tokEndfor:
			if depth == 0 {
				return toks[start:i], i + 1, nil
			}
			depth--
		case tokEndif:
			depth--
		}
	}
	return nil, 0, fmt.Errorf("missing endfor")
}

func parseForHeader(header string) (itemVar, listExpr string, err error) {
	parts := strings.SplitN(header, " in ", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("malformed for header %q, expected 'x in y'", header)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}

// resolveList resolves a loop's iterable expression: a comma-separated
// literal list "a, b, c", or a variable holding a comma-separated string.
func resolveList(expr string, vars map[string]string) []string {
	if strings.HasPrefix(expr, "[") && strings.HasSuffix(expr, "]") {
		inner := strings.Trim(expr, "[]")
		return splitCSV(inner)
	}
	if v, ok := vars[expr]; ok {
		return splitCSV(v)
	}
	return splitCSV(expr)
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.Trim(strings.TrimSpace(p), `"'`))
	}
	return out
}

// evalExpr evaluates a "{{ expr | filter(...) | filter2 }}" body: a base
// variable reference or literal, optionally piped through a filter chain.
func evalExpr(expr string, vars map[string]string) (string, error) {
	parts := splitPipe(expr)
	val, missing := resolveValue(strings.TrimSpace(parts[0]), vars)

	for _, f := range parts[1:] {
		f = strings.TrimSpace(f)
		name, args := parseFilterCall(f)
		applied, err := applyFilter(name, val, args, missing)
		if err != nil {
			return "", err
		}
		val = applied
		missing = false // any filter that ran produced a concrete value
	}
	if missing {
		return "", nil
	}
	return val, nil
}

// splitPipe splits on top-level "|" characters, respecting quoted strings
// and parens so a filter argument like "replace('|','-')" isn't split.
func splitPipe(expr string) []string {
	var parts []string
	depth := 0
	inQuote := byte(0)
	start := 0
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			}
		case c == '\'' || c == '"':
			inQuote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == '|' && depth == 0:
			parts = append(parts, expr[start:i])
			start = i + 1
		}
	}
	parts = append(parts, expr[start:])
	return parts
}

func resolveValue(ref string, vars map[string]string) (string, bool) {
	if len(ref) >= 2 && (ref[0] == '\'' || ref[0] == '"') && ref[len(ref)-1] == ref[0] {
		return ref[1 : len(ref)-1], false
	}
	if v, ok := vars[ref]; ok {
		return v, false
	}
	return "", true
}

func parseFilterCall(f string) (name string, args []string) {
	open := strings.Index(f, "(")
	if open < 0 || !strings.HasSuffix(f, ")") {
		return f, nil
	}
	name = f[:open]
	argStr := f[open+1 : len(f)-1]
	if strings.TrimSpace(argStr) == "" {
		return name, nil
	}
	for _, a := range strings.Split(argStr, ",") {
		a = strings.TrimSpace(a)
		a = strings.Trim(a, `'"`)
		args = append(args, a)
	}
	return name, args
}

