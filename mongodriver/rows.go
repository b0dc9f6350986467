package mongodriver

import (
	"context"
	"regexp"
	"sort"

	"github.com/dosco/docfind/core"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

const idField = "_id"

// cursor materializes MongoDB results as plain documents.
type cursor struct {
	cur *mongo.Cursor
}

func (c *cursor) Materialize(ctx context.Context) ([]core.Document, error) {
	defer c.cur.Close(ctx) //nolint:errcheck

	var raw []bson.M
	if err := c.cur.All(ctx, &raw); err != nil {
		return nil, err
	}

	docs := make([]core.Document, len(raw))
	for i := range raw {
		docs[i] = plain(raw[i]).(map[string]any)
	}
	return docs, nil
}

// plain converts decoded BSON into the map[string]any / []any shapes the
// engine walks. Dates become time.Time; ObjectIDs are kept.
func plain(v any) any {
	switch val := v.(type) {
	case bson.M:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = plain(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = plain(item)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = plain(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(val))
		for i := range val {
			out[i] = plain(val[i])
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = plain(val[i])
		}
		return out
	case bson.DateTime:
		return val.Time().UTC()
	default:
		return v
	}
}

// projection builds an inclusion projection in a stable key order.
func projection(p map[string]bool) bson.D {
	if len(p) == 0 {
		return nil
	}
	keys := make([]string, 0, len(p))
	for k, on := range p {
		if on {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)

	d := make(bson.D, len(keys))
	for i, k := range keys {
		d[i] = bson.E{Key: k, Value: 1}
	}
	return d
}

func sortDoc(s core.Sort) bson.D {
	d := make(bson.D, len(s))
	for i, sf := range s {
		d[i] = bson.E{Key: sf.Field, Value: sf.Direction()}
	}
	return d
}

var hexID = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// coerceIDs returns a copy of filter with hex strings compared against _id
// turned into ObjectIDs, both as plain values and inside operator objects
// such as $in. The caller's maps are never modified.
func coerceIDs(filter map[string]any) map[string]any {
	out := make(map[string]any, len(filter))
	for k, v := range filter {
		switch k {
		case idField:
			v = coerceID(v)
		case "$and", "$or", "$nor":
			if list, ok := v.([]any); ok {
				nl := make([]any, len(list))
				for i, item := range list {
					if m, ok := item.(map[string]any); ok {
						nl[i] = coerceIDs(m)
					} else {
						nl[i] = item
					}
				}
				v = nl
			}
		}
		out[k] = v
	}
	return out
}

func coerceID(v any) any {
	switch val := v.(type) {
	case string:
		if hexID.MatchString(val) {
			if oid, err := bson.ObjectIDFromHex(val); err == nil {
				return oid
			}
		}
		return val
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = coerceID(val[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for op, arg := range val {
			out[op] = coerceID(arg)
		}
		return out
	default:
		return v
	}
}
