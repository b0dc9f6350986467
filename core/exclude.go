package core

import "strings"

// Exclude returns a copy of doc without the given dotted paths. Paths are
// removed in order. Arrays met along a path have the rest of the path
// removed from every element. doc itself is never modified.
func Exclude(doc Document, paths ...string) Document {
	var v any = doc
	for _, p := range paths {
		v = excludePath(v, p)
	}
	out, _ := v.(map[string]any)
	return out
}

func excludePath(v any, path string) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}

	out := make(map[string]any, len(m))
	for k, item := range m {
		out[k] = item
	}

	if _, ok := out[path]; ok {
		delete(out, path)
		return out
	}

	head, tail, ok := strings.Cut(path, ".")
	if !ok {
		return out
	}

	switch child := out[head].(type) {
	case map[string]any:
		out[head] = excludePath(child, tail)
	case []any:
		list := make([]any, len(child))
		for i := range child {
			list[i] = excludePath(child[i], tail)
		}
		out[head] = list
	case []map[string]any:
		list := make([]any, len(child))
		for i := range child {
			list[i] = excludePath(child[i], tail)
		}
		out[head] = list
	}
	return out
}
