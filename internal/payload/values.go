package payload

import (
	"fmt"
	"strconv"
	"strings"
)

// str coerces a quiz-answer value to a string. Numbers render without a
// trailing ".0" because destination form fields are text inputs.
func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// num coerces a quiz-answer value to a float64, reporting whether it was
// numeric. JSON numbers decode as float64; strings with digits also count
// because older funnel pages sent amounts as text.
func num(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		cleaned := strings.TrimSpace(strings.ReplaceAll(strings.TrimPrefix(t, "$"), ",", ""))
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// truthy interprets checkbox/flag answers that arrive as bool, "true",
// "yes", or "Yes".
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s == "true" || s == "yes" || s == "y" || s == "1"
	case float64:
		return t != 0
	default:
		return false
	}
}

// joinList renders a multi-select answer ([]any or []string) as a
// comma-joined string.
func joinList(v any) string {
	switch t := v.(type) {
	case []string:
		return strings.Join(t, ", ")
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := str(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case string:
		return t
	default:
		return ""
	}
}

// pick returns the first non-empty string among the keys in m.
func pick(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if m == nil {
			return ""
		}
		if s := str(m[k]); s != "" {
			return s
		}
	}
	return ""
}
