package core

import (
	"testing"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type xidChecker struct{}

func (xidChecker) IsIdentifier(v any) bool {
	_, ok := v.(xid.ID)
	return ok
}

func format(t *testing.T, fields []Field, doc Document, remaining bool) Document {
	t.Helper()
	_, err := compilePlan(fields)
	require.NoError(t, err)

	fm := &formatter{fields: fields, ids: xidChecker{}, idField: "_id", remaining: remaining}
	out, err := fm.format(doc)
	require.NoError(t, err)
	return out
}

func TestFormatMapOp(t *testing.T) {
	doc := Document{
		"tags": []any{
			map[string]any{"type": "color", "v": "red"},
			map[string]any{"type": "size", "v": "M"},
			map[string]any{"type": "", "v": 0},
		},
		"notes": []any{map[string]any{"text": "hi"}},
	}

	fields := []Field{MapField("attrs", MapOp{
		Input: []string{"tags", "notes", "absent"},
		In: map[string]map[string]string{
			"tags":   {"name": "type", "value": "v"},
			"notes":  {"body": "text"},
			"absent": {"x": "y"},
			"unused": {"x": "y"},
		},
	})}

	out := format(t, fields, doc, false)
	assert.Equal(t, Document{"attrs": []any{
		map[string]any{"name": "color", "value": "red"},
		map[string]any{"name": "size", "value": "M"},
		map[string]any{},
		map[string]any{"body": "hi"},
	}}, out)
}

func TestFormatSkipsIncompleteMapOp(t *testing.T) {
	f, err := NewField(map[string]any{
		"field": "attrs",
		"value": map[string]any{"op": "map", "input": []any{"tags"}},
	})
	require.NoError(t, err)
	assert.Equal(t, FieldSkip, f.Kind)

	out := format(t, []Field{f, BareField("name")}, Document{"name": "n", "tags": []any{}}, false)
	assert.Equal(t, Document{"name": "n"}, out)
}

func TestFormatOverwrite(t *testing.T) {
	fields := []Field{
		PathField("x", "a"),
		LiteralField("x", "literal"),
		BareField("keep"),
	}
	out := format(t, fields, Document{"a": 1, "keep": true, "other": 2}, false)
	assert.Equal(t, Document{"x": "literal", "keep": true}, out)

	out = format(t, fields, Document{"a": 1, "keep": true, "other": 2}, true)
	assert.Equal(t, Document{"a": 1, "x": "literal", "keep": true, "other": 2}, out)
}

func TestFormatMakeUnique(t *testing.T) {
	id1, id2 := xid.New(), xid.New()

	tests := []struct {
		name  string
		field Field
		doc   Document
		want  any
	}{
		{
			name:  "identifiers",
			field: Field{Kind: FieldPath, Name: "out", Path: "l.$.id", MakeUnique: true},
			doc: Document{"l": []any{
				map[string]any{"id": id1}, map[string]any{"id": id2}, map[string]any{"id": id1},
			}},
			want: []any{id1, id2},
		},
		{
			name:  "scalars",
			field: Field{Kind: FieldPath, Name: "out", Path: "l.$.v", MakeUnique: true},
			doc: Document{"l": []any{
				map[string]any{"v": 1}, map[string]any{"v": 1.0}, map[string]any{"v": "1"}, map[string]any{"v": nil},
			}},
			want: []any{1, "1"},
		},
		{
			name:  "without makeUnique",
			field: Field{Kind: FieldPath, Name: "out", Path: "l.$.v"},
			doc: Document{"l": []any{
				map[string]any{"v": 1}, map[string]any{"v": 1},
			}},
			want: []any{1, 1},
		},
		{
			name:  "missing array",
			field: Field{Kind: FieldPath, Name: "out", Path: "l.$.v", MakeUnique: true},
			doc:   Document{},
			want:  []any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := format(t, []Field{tt.field}, tt.doc, false)
			assert.Equal(t, tt.want, out["out"])
		})
	}
}

func TestFormatMakeUniqueObjects(t *testing.T) {
	doc := Document{"orders": []any{
		map[string]any{"buyer": map[string]any{"_id": 1, "n": "a"}},
		map[string]any{"buyer": map[string]any{"_id": 1.0, "n": "b"}},
		map[string]any{"buyer": map[string]any{"_id": 2, "n": "c"}},
	}}

	out := format(t, []Field{{Kind: FieldPath, Name: "buyers", Path: "orders.$.buyer", MakeUnique: true}}, doc, false)
	assert.Equal(t, []any{
		map[string]any{"_id": 1, "n": "a"},
		map[string]any{"_id": 2, "n": "c"},
	}, out["buyers"])
}

func TestFormatUniqBy(t *testing.T) {
	items := []any{
		map[string]any{"id": "1", "name": "a"},
		map[string]any{"id": 1, "name": "b"},
		map[string]any{"id": 2, "name": "c"},
		map[string]any{"name": "d"},
	}
	doc := Document{"items": items}

	out := format(t, []Field{{Kind: FieldPath, Name: "items", Path: "items", UniqBy: "id"}}, doc, false)
	assert.Equal(t, []any{
		map[string]any{"id": "1", "name": "a"},
		map[string]any{"id": "2", "name": "c"},
		map[string]any{"name": "d"},
	}, out["items"])

	// the source document keeps its original values
	assert.Equal(t, 2, items[2].(map[string]any)["id"])
}

func TestFormatUniqByKeepsIdentifiers(t *testing.T) {
	id := xid.New()
	doc := Document{"owner": id}

	out := format(t, []Field{{Kind: FieldPath, Name: "owner", Path: "owner", UniqBy: "id"}}, doc, false)
	assert.Equal(t, id, out["owner"])

	v, ok := toSlice(id)
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestFormatBareNull(t *testing.T) {
	doc := Document{"deletedAt": nil, "name": "ann"}

	out := format(t, []Field{BareField("deletedAt"), BareField("name"), BareField("absent")}, doc, false)

	assert.Equal(t, Document{"deletedAt": nil, "name": "ann"}, out)
	assert.NotContains(t, out, "absent")
}

func TestFormatDynamicWithoutWildcardSegment(t *testing.T) {
	doc := Document{
		"price$": 5,
		"$":      []any{"a", "b", "a"},
		"list$":  []any{1, 2},
	}

	out := format(t, []Field{
		{Kind: FieldPath, Name: "price", Path: "price$"},
		{Kind: FieldPath, Name: "keys", Path: "$", MakeUnique: true},
		{Kind: FieldPath, Name: "list", Path: "list$"},
		{Kind: FieldPath, Name: "none", Path: "none$"},
	}, doc, false)

	assert.Equal(t, Document{
		"price": 5,
		"keys":  []any{"a", "b"},
		"list":  []any{1, 2},
	}, out)
	assert.Equal(t, []any{"a", "b", "a"}, doc["$"])
}

func TestFormatLocation(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want map[string]any
	}{
		{"lat lon", map[string]any{"lat": 1.0, "lon": 2.0}, map[string]any{"lat": 1.0, "lon": 2.0}},
		{"lat lng", map[string]any{"lat": 1.0, "lng": 2.0}, map[string]any{"lat": 1.0, "lon": 2.0}},
		{"lon wins over lng", map[string]any{"lat": 1.0, "lon": 2.0, "lng": 3.0}, map[string]any{"lat": 1.0, "lon": 2.0}},
		{"zero coordinates", map[string]any{"lat": 0.0, "lon": 0.0}, map[string]any{"lat": 0.0, "lon": 0.0}},
		{"pair", []any{2.0, 1.0}, map[string]any{"lat": 1.0, "lon": 2.0}},
		{"float pair", []float64{2, 1}, map[string]any{"lat": 1.0, "lon": 2.0}},
		{"geojson", map[string]any{"type": "Point", "coordinates": []any{2.0, 1.0}}, map[string]any{"lat": 1.0, "lon": 2.0}},
		{"missing", nil, map[string]any{}},
		{"scalar", "x", map[string]any{}},
		{"identifier", xid.New(), map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toLocation(tt.in))

			out := format(t, []Field{{Kind: FieldPath, Name: "loc", Path: "geo", Type: FieldTypeLocation}},
				Document{"geo": tt.in}, false)
			assert.Equal(t, tt.want, out["loc"])
		})
	}
}

func TestStringifyID(t *testing.T) {
	id := xid.New()

	tests := []struct {
		in   any
		want string
	}{
		{"abc", "abc"},
		{1.0, "1"},
		{1.5, "1.5"},
		{42, "42"},
		{int64(7), "7"},
		{true, "true"},
		{id, id.String()},
		{nil, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, stringifyID(tt.in))
	}
}

func TestTruthy(t *testing.T) {
	for _, v := range []any{nil, false, 0, 0.0, "", int64(0)} {
		assert.False(t, truthy(v), "%#v", v)
	}
	for _, v := range []any{true, 1, -1.5, "x", []any{}, map[string]any{}} {
		assert.True(t, truthy(v), "%#v", v)
	}
}
