package template

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// applyFilter applies a single named filter to val. missing indicates val
// is the result of an unresolved variable reference rather than a real
// (possibly empty) string; only the "default" filter inspects it.
func applyFilter(name, val string, args []string, missing bool) (string, error) {
	switch name {
	case "default":
		if missing {
			if len(args) > 0 {
				return args[0], nil
			}
			return "", nil
		}
		return val, nil
	case "lower":
		return strings.ToLower(val), nil
	case "upper":
		return strings.ToUpper(val), nil
	case "capitalize":
		if val == "" {
			return val, nil
		}
		return strings.ToUpper(val[:1]) + val[1:], nil
	case "trim":
		return strings.TrimSpace(val), nil
	case "length":
		return fmt.Sprintf("%d", len(val)), nil
	case "replace":
		if len(args) != 2 {
			return "", fmt.Errorf("replace filter requires 2 arguments")
		}
		return strings.ReplaceAll(val, args[0], args[1]), nil
	case "regex_replace":
		if len(args) != 2 {
			return "", fmt.Errorf("regex_replace filter requires 2 arguments")
		}
		re, err := regexp.Compile(args[0])
		if err != nil {
			return "", fmt.Errorf("regex_replace: %w", err)
		}
		return re.ReplaceAllString(val, args[1]), nil
	case "join":
		sep := ","
		if len(args) > 0 {
			sep = args[0]
		}
		return strings.Join(splitCSV(val), sep), nil
	case "split":
		sep := ","
		if len(args) > 0 {
			sep = args[0]
		}
		parts := strings.Split(val, sep)
		return strings.Join(parts, ", "), nil
	case "basename":
		return filepath.Base(val), nil
	case "dirname":
		return filepath.Dir(val), nil
	case "to_json":
		b, err := json.Marshal(splitCSV(val))
		if len(splitCSV(val)) <= 1 {
			b, err = json.Marshal(val)
		}
		if err != nil {
			return "", err
		}
		return string(b), nil
	case "to_yaml":
		return toYAMLScalar(val), nil
	default:
		return val, nil
	}
}

// toYAMLScalar renders val the way a YAML dumper would render a bare
// scalar: quoted only when it would otherwise be ambiguous.
func toYAMLScalar(val string) string {
	if val == "" {
		return `""`
	}
	if strings.ContainsAny(val, ":#{}[]&*!|>'\"%@`") || strings.TrimSpace(val) != val {
		return fmt.Sprintf("%q", val)
	}
	return val
}
