package core

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
)

// stringifyID converts identifier values of any store to their string form
func stringifyID(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	case interface{ Hex() string }:
		return v.Hex()
	case fmt.Stringer:
		return v.String()
	case float64:
		// Check if it's a whole number
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// dedupKey maps a value to a comparable key: numbers of any width compare
// equal by value and uncomparable values compare by their printed form.
func dedupKey(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case time.Time:
		return n.UnixNano()
	}
	if v == nil {
		return nil
	}
	if reflect.TypeOf(v).Comparable() {
		return v
	}
	return fmt.Sprintf("%T:%v", v, v)
}

// uniqBy keeps the first element of every group sharing a key.
func uniqBy(values []any, key func(any) any) []any {
	seen := make(map[any]struct{}, len(values))
	out := make([]any, 0, len(values))
	for _, v := range values {
		k := key(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

// truthy follows the loose truth rules of JSON-ish data: nil, false, zero,
// NaN and the empty string are false.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int32:
		return val != 0
	case int64:
		return val != 0
	case float32:
		return val != 0 && !math.IsNaN(float64(val))
	case float64:
		return val != 0 && !math.IsNaN(val)
	}
	return true
}

// toSlice returns v as []any when it holds a slice. Fixed size arrays such
// as xid.ID or bson.ObjectID are scalar identifiers and are not spread.
func toSlice(v any) ([]any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case []any:
		return val, true
	case []map[string]any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = val[i]
		}
		return out, true
	case []byte:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// toAny converts a document list into the []any form used for nested
// values.
func toAny(docs []Document) []any {
	out := make([]any, len(docs))
	for i := range docs {
		out[i] = docs[i]
	}
	return out
}

// cloneValue deep copies maps and slices. Other values are shared.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = cloneValue(val[i])
		}
		return out
	default:
		return v
	}
}

// toLocation coerces {lat, lon}, {lat, lng}, a GeoJSON point or a
// [lng, lat] pair into {lat, lon}. Missing coordinates are left out.
func toLocation(v any) map[string]any {
	loc := make(map[string]any, 2)

	if m, ok := v.(map[string]any); ok {
		if c, ok := m["coordinates"]; ok && m["type"] == "Point" {
			v = c
		} else {
			if lat, ok := m["lat"]; ok && lat != nil {
				loc["lat"] = lat
			}
			if lon, ok := m["lon"]; ok && lon != nil {
				loc["lon"] = lon
			} else if lng, ok := m["lng"]; ok && lng != nil {
				loc["lon"] = lng
			}
			return loc
		}
	}

	if pair, ok := toSlice(v); ok {
		if len(pair) > 0 && pair[0] != nil {
			loc["lon"] = pair[0]
		}
		if len(pair) > 1 && pair[1] != nil {
			loc["lat"] = pair[1]
		}
	}
	return loc
}
