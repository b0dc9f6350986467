// Package docpath reads and writes values inside loosely typed documents
// addressed by dotted paths. A path segment equal to "$" stands for every
// element of the array found at that position.
package docpath

import (
	"errors"
	"strconv"
	"strings"
)

const (
	Sep      = "."
	Wildcard = "$"

	wildSeg = Sep + Wildcard + Sep
)

// ErrInvalid is the sentinel wrapped by every *Error.
var ErrInvalid = errors.New("invalid path")

// Error describes a malformed path.
type Error struct {
	Path   string
	Reason string
}

func (e *Error) Error() string {
	if e.Path == "" {
		return "invalid path: " + e.Reason
	}
	return "invalid path '" + e.Path + "': " + e.Reason
}

func (e *Error) Unwrap() error { return ErrInvalid }

// Validate checks a path before it is used for projection or extraction.
func Validate(path string) error {
	if path == "" {
		return &Error{Reason: "path is required"}
	}
	if !strings.Contains(path, Sep) {
		return nil
	}

	switch {
	case strings.HasPrefix(path, Sep):
		return &Error{Path: path, Reason: "leading dot"}
	case strings.HasPrefix(path, Wildcard+Sep):
		return &Error{Path: path, Reason: "wildcard cannot be the first segment"}
	case strings.HasSuffix(path, Sep):
		return &Error{Path: path, Reason: "trailing dot"}
	case strings.HasSuffix(path, Sep+Wildcard):
		return &Error{Path: path, Reason: "nothing follows the wildcard"}
	case strings.Contains(path, Sep+Sep):
		return &Error{Path: path, Reason: "empty segment"}
	}
	return nil
}

// IsDynamic reports whether the path carries the wildcard marker anywhere.
func IsDynamic(path string) bool {
	return strings.Contains(path, Wildcard)
}

// Extract walks data along path and returns the values found. Wildcard
// segments fan out over arrays and the results are flattened one level into
// a []any with nil entries dropped. A path without a wildcard segment
// returns the value at path as is, like Get.
func Extract(path string, data any) (any, error) {
	if err := Validate(path); err != nil {
		return nil, err
	}
	return extract(path, data), nil
}

func extract(path string, data any) any {
	i := strings.Index(path, wildSeg)
	if i == -1 {
		return Get(data, path)
	}

	values := asSlice(Get(data, path[:i]))

	if rest := path[i+len(wildSeg):]; rest != "" {
		sub := make([]any, 0, len(values))
		for _, v := range values {
			switch sv := extract(rest, v).(type) {
			case []any:
				sub = append(sub, sv...)
			default:
				sub = append(sub, sv)
			}
		}
		values = sub
	}

	return compact(values)
}

// Get returns the value at path or nil when any segment is missing.
// A key equal to the whole path wins over traversal. Numeric segments index
// into arrays.
func Get(data any, path string) any {
	if m, ok := data.(map[string]any); ok {
		if v, ok := m[path]; ok {
			return v
		}
	}

	cur := data
	for _, seg := range strings.Split(path, Sep) {
		switch v := cur.(type) {
		case map[string]any:
			cur = v[seg]
		case []any:
			n, err := strconv.Atoi(seg)
			if err != nil || n < 0 || n >= len(v) {
				return nil
			}
			cur = v[n]
		case []map[string]any:
			n, err := strconv.Atoi(seg)
			if err != nil || n < 0 || n >= len(v) {
				return nil
			}
			cur = v[n]
		default:
			return nil
		}
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Set writes val at path inside m, creating intermediate objects as needed.
// Existing non-object values in the way are replaced.
func Set(m map[string]any, path string, val any) {
	segs := strings.Split(path, Sep)
	cur := m

	for _, seg := range segs[:len(segs)-1] {
		switch next := cur[seg].(type) {
		case map[string]any:
			cur = next
		default:
			nm := make(map[string]any)
			cur[seg] = nm
			cur = nm
		}
	}
	cur[segs[len(segs)-1]] = val
}

func asSlice(v any) []any {
	switch sv := v.(type) {
	case nil:
		return []any{}
	case []any:
		return sv
	case []map[string]any:
		out := make([]any, len(sv))
		for i := range sv {
			out[i] = sv[i]
		}
		return out
	default:
		return []any{sv}
	}
}

func compact(values []any) []any {
	out := values[:0:0]
	for _, v := range values {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}
