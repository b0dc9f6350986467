package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompilePlan(t *testing.T) {
	tests := []struct {
		name    string
		fields  []Field
		want    map[string]bool
		wantErr bool
	}{
		{
			name:   "bare and plain paths are projected",
			fields: []Field{BareField("name"), PathField("city", "address.city")},
			want:   map[string]bool{"name": true, "address.city": true},
		},
		{
			name: "computed fields are not projected",
			fields: []Field{
				LiteralField("kind", "x"),
				PathField("skus", "orders.$.sku"),
				{Kind: FieldPath, Name: "late", Path: "a.b", Resolve: true},
				MapField("m", MapOp{Input: []string{"a"}}),
				{Kind: FieldSkip, Name: "skip"},
			},
			want: nil,
		},
		{
			name:    "literal values are never validated",
			fields:  []Field{LiteralField("kind", ".x."), BareField("ok")},
			want:    map[string]bool{"ok": true},
			wantErr: false,
		},
		{
			name:    "invalid dynamic path",
			fields:  []Field{PathField("skus", "orders.$")},
			wantErr: true,
		},
		{
			name:    "invalid resolved path",
			fields:  []Field{{Kind: FieldPath, Name: "late", Path: "a.", Resolve: true}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := compilePlan(tt.fields)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.projection)
		})
	}
}

func TestValidateFilter(t *testing.T) {
	rel := func(r Relation) Includes {
		return Includes{{Field: "x", Relation: &r}}
	}

	tests := []struct {
		name    string
		filter  *Filter
		wantErr bool
	}{
		{"ok", &Filter{Collection: "a", Fields: []Field{BareField("b")}, Exclude: []string{"c.d"}}, false},
		{"no collection", &Filter{}, true},
		{"bad exclude", &Filter{Collection: "a", Exclude: []string{"c."}}, true},
		{"unknown relation", &Filter{Collection: "a", Include: rel(Relation{
			Kind: "some", Collection: "b", ForeignKey: "c"})}, true},
		{"relation without collection", &Filter{Collection: "a", Include: rel(Relation{
			Kind: RelHasMany, ForeignKey: "c"})}, true},
		{"relation without foreign key", &Filter{Collection: "a", Include: rel(Relation{
			Kind: RelHasMany, Collection: "b"})}, true},
		{"habtm without through", &Filter{Collection: "a", Include: rel(Relation{
			Kind: RelHasAndBelongsToMany, Collection: "b", ForeignKey: "c", RelationKey: "d"})}, true},
		{"bad scope path", &Filter{Collection: "a", Include: rel(Relation{
			Kind: RelHasMany, Collection: "b", ForeignKey: "c",
			Scope: &Filter{Fields: []Field{BareField(".y")}}})}, true},
		{"scope without collection", &Filter{Collection: "a", Include: rel(Relation{
			Kind: RelHasAndBelongsToMany, Collection: "b", ForeignKey: "c",
			Through: "t", RelationKey: "d", ThroughScope: &Filter{Where: map[string]any{"e": 1}}})}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilter(tt.filter)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
