package memdriver

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// match reports whether doc satisfies the predicate where.
func match(doc map[string]any, where map[string]any) (bool, error) {
	for k, cond := range where {
		var ok bool
		var err error

		switch k {
		case "$and", "$or", "$nor":
			ok, err = matchLogical(doc, k, cond)
		default:
			if strings.HasPrefix(k, "$") {
				return false, fmt.Errorf("memdriver: unknown top level operator '%s'", k)
			}
			ok, err = matchField(lookup(doc, k), cond)
		}

		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchLogical(doc map[string]any, op string, cond any) (bool, error) {
	list, ok := cond.([]any)
	if !ok {
		if ms, ok := cond.([]map[string]any); ok {
			for _, m := range ms {
				list = append(list, m)
			}
		} else {
			return false, fmt.Errorf("memdriver: %s needs an array", op)
		}
	}

	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return false, fmt.Errorf("memdriver: %s entries must be objects", op)
		}
		ok, err := match(doc, m)
		if err != nil {
			return false, err
		}
		switch {
		case op == "$and" && !ok:
			return false, nil
		case op == "$or" && ok:
			return true, nil
		case op == "$nor" && ok:
			return false, nil
		}
	}
	return op != "$or", nil
}

// matchField tests the values found at a path against a condition: either
// an operator object or a value compared for equality.
func matchField(vals []any, cond any) (bool, error) {
	ops, ok := cond.(map[string]any)
	if !ok || !isOperatorDoc(ops) {
		return equals(vals, cond), nil
	}

	for op, arg := range ops {
		var ok bool
		switch op {
		case "$eq":
			ok = equals(vals, arg)
		case "$ne":
			ok = !equals(vals, arg)
		case "$gt", "$gte", "$lt", "$lte":
			ok = compares(vals, op, arg)
		case "$in", "$nin":
			list, isList := asList(arg)
			if !isList {
				return false, fmt.Errorf("memdriver: %s needs an array", op)
			}
			for _, v := range list {
				if equals(vals, v) {
					ok = true
					break
				}
			}
			if op == "$nin" {
				ok = !ok
			}
		case "$exists":
			want, _ := arg.(bool)
			ok = (len(vals) != 0) == want
		default:
			return false, fmt.Errorf("memdriver: unknown operator '%s'", op)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func isOperatorDoc(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

// equals follows MongoDB equality: a nil value also matches a missing
// field and an array field matches when any element does.
func equals(vals []any, want any) bool {
	if want == nil && len(vals) == 0 {
		return true
	}
	for _, v := range vals {
		if equal(v, want) {
			return true
		}
		if list, ok := v.([]any); ok {
			for _, e := range list {
				if equal(e, want) {
					return true
				}
			}
		}
	}
	return false
}

func compares(vals []any, op string, arg any) bool {
	test := func(v any) bool {
		n, ok := compare(v, arg)
		if !ok {
			return false
		}
		switch op {
		case "$gt":
			return n > 0
		case "$gte":
			return n >= 0
		case "$lt":
			return n < 0
		default:
			return n <= 0
		}
	}

	for _, v := range vals {
		if test(v) {
			return true
		}
		if list, ok := v.([]any); ok {
			for _, e := range list {
				if test(e) {
					return true
				}
			}
		}
	}
	return false
}

func equal(a, b any) bool {
	if n, ok := compare(a, b); ok {
		return n == 0
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.DeepEqual(a, b)
}

// compare orders two values of the same family: numbers, strings or times.
func compare(a, b any) (int, bool) {
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			switch {
			case x < y:
				return -1, true
			case x > y:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}

	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			}
			return 1, true
		}
	}
	return 0, false
}

// order sorts values of mixed families: missing values first, then numbers,
// strings, times and everything else.
func order(a, b any) int {
	if n, ok := compare(a, b); ok {
		return n
	}
	ra, rb := rank(a), rank(b)
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func rank(v any) int {
	if v == nil {
		return 0
	}
	if _, ok := toFloat(v); ok {
		return 1
	}
	switch v.(type) {
	case string:
		return 2
	case time.Time:
		return 3
	case bool:
		return 4
	}
	return 5
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func asList(v any) ([]any, bool) {
	if list, ok := v.([]any); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// lookup returns every value found at path. Arrays met before the end of
// the path are walked element by element unless the next segment is an
// index.
func lookup(doc map[string]any, path string) []any {
	return walk(doc, splitPath(path))
}

func walk(v any, segs []string) []any {
	if len(segs) == 0 {
		return []any{v}
	}

	switch val := v.(type) {
	case map[string]any:
		child, ok := val[segs[0]]
		if !ok {
			return nil
		}
		return walk(child, segs[1:])

	case []any:
		if i, err := strconv.Atoi(segs[0]); err == nil {
			if i < 0 || i >= len(val) {
				return nil
			}
			return walk(val[i], segs[1:])
		}
		var out []any
		for _, e := range val {
			out = append(out, walk(e, segs)...)
		}
		return out
	}
	return nil
}

func first(vals []any) any {
	if len(vals) == 0 {
		return nil
	}
	return vals[0]
}

func splitPath(p string) []string {
	return strings.Split(p, ".")
}
