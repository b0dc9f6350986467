// Package dates turns date-like strings inside query predicates into
// time.Time values so they compare correctly against stored dates.
package dates

import (
	"time"

	"github.com/spf13/cast"
)

// Normalize returns a copy of v where every string that parses as a date is
// replaced by its time.Time. Object keys for which skip returns true are
// copied untouched; they hold identifiers, not dates.
func Normalize(v any, skip func(key string) bool) any {
	switch val := v.(type) {
	case string:
		if t, ok := Parse(val); ok {
			return t
		}
		return val

	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = Normalize(val[i], skip)
		}
		return out

	case []string:
		out := make([]any, len(val))
		for i := range val {
			out[i] = Normalize(val[i], skip)
		}
		return out

	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if skip != nil && skip(k) {
				out[k] = item
				continue
			}
			out[k] = Normalize(item, skip)
		}
		return out

	default:
		return v
	}
}

// Parse reports whether s is a date string in one of the layouts accepted
// by cast (RFC 3339, RFC 1123, plain dates and the like).
func Parse(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := cast.ToTimeE(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
