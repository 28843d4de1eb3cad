package routing

import (
	"fmt"
	"strings"
)

// Session context values arrive from JSON or from Go callers, so the helpers
// below accept both decoded ([]any, map[string]any) and native shapes.

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case fmt.Stringer:
		return strings.TrimSpace(s.String())
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}

func listValue(v any) []string {
	switch l := v.(type) {
	case nil:
		return nil
	case []string:
		return nonEmpty(l)
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			out = append(out, stringValue(item))
		}
		return nonEmpty(out)
	case string:
		return nonEmpty(strings.Split(l, ","))
	default:
		return nil
	}
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// present reports whether v carries any content
func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(x) != ""
	case []any:
		return len(x) > 0
	case []string:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	case bool:
		return x
	default:
		return true
	}
}
