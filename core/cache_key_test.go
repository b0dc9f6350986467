package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanKey_SameFields(t *testing.T) {
	a := []Field{BareField("name"), PathField("city", "address.city")}
	b := []Field{BareField("name"), PathField("city", "address.city")}

	ka, err := planKey(a)
	require.NoError(t, err)
	kb, err := planKey(b)
	require.NoError(t, err)

	if ka != kb {
		t.Errorf("expected same key for equal field lists, got %d vs %d", ka, kb)
	}
}

func TestPlanKey_DifferentFields(t *testing.T) {
	tests := []struct {
		name string
		a, b []Field
	}{
		{
			name: "different path",
			a:    []Field{PathField("city", "address.city")},
			b:    []Field{PathField("city", "address.town")},
		},
		{
			name: "different order",
			a:    []Field{BareField("a"), BareField("b")},
			b:    []Field{BareField("b"), BareField("a")},
		},
		{
			name: "resolve flag",
			a:    []Field{PathField("city", "address.city")},
			b:    []Field{{Kind: FieldPath, Name: "city", Path: "address.city", Resolve: true}},
		},
		{
			name: "map descriptor",
			a:    []Field{MapField("m", MapOp{Input: []string{"x"}, In: map[string]map[string]string{"x": {"a": "b"}}})},
			b:    []Field{MapField("m", MapOp{Input: []string{"x"}, In: map[string]map[string]string{"x": {"a": "c"}}})},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ka, err := planKey(tt.a)
			require.NoError(t, err)
			kb, err := planKey(tt.b)
			require.NoError(t, err)
			assert.NotEqual(t, ka, kb)
		})
	}
}

func TestPlanKey_IgnoresLiteralValues(t *testing.T) {
	values := []any{nil, 0, 0.0, "", false, map[string]any{}, []any{}}

	want, err := planKey([]Field{LiteralField("v", "x")})
	require.NoError(t, err)

	for _, v := range values {
		k, err := planKey([]Field{LiteralField("v", v)})
		require.NoError(t, err)
		assert.Equal(t, want, k, "literal %#v", v)
	}
}

func TestPlanCacheLiteralsKeepTheirValue(t *testing.T) {
	df, err := NewDocFind(&Config{PlanCacheSize: 10}, nopStore{})
	require.NoError(t, err)

	doc := Document{"name": "ann"}
	for _, v := range []any{nil, 0, "", false} {
		f := &Filter{Fields: []Field{LiteralField("v", v)}}
		_, err := df.plan(f.Fields)
		require.NoError(t, err)

		out, err := df.newFormatter(f).format(doc)
		require.NoError(t, err)
		assert.Equal(t, Document{"v": v}, out)
	}
	assert.Equal(t, 1, df.cache.Len())
}

func TestPlanCache(t *testing.T) {
	df, err := NewDocFind(&Config{PlanCacheSize: 10}, nopStore{})
	require.NoError(t, err)

	fields := []Field{BareField("name")}
	p1, err := df.plan(fields)
	require.NoError(t, err)
	p2, err := df.plan([]Field{BareField("name")})
	require.NoError(t, err)

	assert.Same(t, p1, p2)
	assert.Equal(t, 1, df.cache.Len())

	_, err = df.plan([]Field{BareField("bad.")})
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.Equal(t, 1, df.cache.Len(), "invalid plans are not cached")
}

func TestPlanCacheDisabled(t *testing.T) {
	df, err := NewDocFind(&Config{DisablePlanCache: true}, nopStore{})
	require.NoError(t, err)

	p1, err := df.plan([]Field{BareField("name")})
	require.NoError(t, err)
	p2, err := df.plan([]Field{BareField("name")})
	require.NoError(t, err)

	assert.NotSame(t, p1, p2)
	assert.Equal(t, 0, df.cache.Len())
}

type nopStore struct{}

func (nopStore) Collection(string) Collection { return nil }
