package mongodriver

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dosco/docfind/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestPlain(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	oid := bson.NewObjectID()

	in := bson.M{
		"_id":     oid,
		"at":      bson.NewDateTimeFromTime(at),
		"address": bson.D{{Key: "city", Value: "Oslo"}},
		"tags":    bson.A{"a", bson.M{"b": bson.A{1}}},
	}

	assert.Equal(t, map[string]any{
		"_id":     oid,
		"at":      at,
		"address": map[string]any{"city": "Oslo"},
		"tags":    []any{"a", map[string]any{"b": []any{1}}},
	}, plain(in))
}

func TestFindOptionsHelpers(t *testing.T) {
	assert.Nil(t, projection(nil))
	assert.Nil(t, projection(map[string]bool{"a": false}))
	assert.Equal(t, bson.D{{Key: "a", Value: 1}, {Key: "b.c", Value: 1}},
		projection(map[string]bool{"b.c": true, "a": true}))

	assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}, {Key: "name", Value: 1}},
		sortDoc(core.Sort{{Field: "createdAt", Desc: true}, {Field: "name"}}))
}

func TestCoerceIDs(t *testing.T) {
	oid := bson.NewObjectID()
	hex := oid.Hex()

	tests := []struct {
		name string
		in   map[string]any
		want map[string]any
	}{
		{
			name: "plain",
			in:   map[string]any{"_id": hex},
			want: map[string]any{"_id": oid},
		},
		{
			name: "in operator",
			in:   map[string]any{"_id": map[string]any{"$in": []any{hex, "short"}}},
			want: map[string]any{"_id": map[string]any{"$in": []any{oid, "short"}}},
		},
		{
			name: "other keys untouched",
			in:   map[string]any{"ownerId": hex},
			want: map[string]any{"ownerId": hex},
		},
		{
			name: "inside or",
			in:   map[string]any{"$or": []any{map[string]any{"_id": hex}}},
			want: map[string]any{"$or": []any{map[string]any{"_id": oid}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, coerceIDs(tt.in))
		})
	}

	in := map[string]any{"$or": []any{map[string]any{"_id": hex}}}
	coerceIDs(in)
	assert.Equal(t, hex, in["$or"].([]any)[0].(map[string]any)["_id"])
}

// Integration test that requires a running MongoDB instance. Set
// MONGODB_URI to run it.
func TestWithMongoDB(t *testing.T) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		t.Skip("Skipping MongoDB integration test - MONGODB_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := Connect(ctx, mongoURI, "docfind_test", WithObjectIDCoercion())
	if err != nil {
		t.Skipf("Skipping MongoDB integration test - server not available: %v", err)
	}
	defer s.Close(ctx) //nolint:errcheck

	db := s.Client().Database(s.Database())
	users, posts := db.Collection("users"), db.Collection("posts")
	_ = users.Drop(ctx)
	_ = posts.Drop(ctx)

	ann, bob := bson.NewObjectID(), bson.NewObjectID()
	_, err = users.InsertMany(ctx, []any{
		bson.M{"_id": ann, "name": "Alice", "age": 30},
		bson.M{"_id": bob, "name": "Bob", "age": 25},
	})
	require.NoError(t, err)

	_, err = posts.InsertMany(ctx, []any{
		bson.M{"title": "a", "ownerId": ann, "createdAt": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		bson.M{"title": "b", "ownerId": ann, "createdAt": time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		bson.M{"title": "c", "ownerId": bob, "createdAt": time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)

	assert.True(t, s.IsIdentifier(ann))

	df, err := core.NewDocFind(nil, s)
	require.NoError(t, err)

	t.Run("has many with date predicate", func(t *testing.T) {
		res, err := df.Find(ctx, &core.Filter{
			Collection: "users",
			Where:      map[string]any{"_id": ann.Hex()},
			Include: core.Includes{{Field: "posts", Relation: &core.Relation{
				Kind:       core.RelHasMany,
				Collection: "posts",
				ForeignKey: "ownerId",
				Scope: &core.Filter{
					Where: map[string]any{"createdAt": map[string]any{"$gt": "2024-01-15T00:00:00Z"}},
				},
			}}},
		})
		require.NoError(t, err)
		require.Len(t, res, 1)

		list := res[0]["posts"].([]any)
		require.Len(t, list, 1)
		assert.Equal(t, "b", list[0].(core.Document)["title"])
	})

	t.Run("projection sort and unique owners", func(t *testing.T) {
		res, err := df.Find(ctx, &core.Filter{
			Collection: "posts",
			Fields:     []core.Field{core.BareField("title")},
			Sort:       core.Sort{{Field: "createdAt", Desc: true}},
			Limit:      2,
		})
		require.NoError(t, err)
		assert.Equal(t, []core.Document{{"title": "c"}, {"title": "b"}}, res)

		res, err = df.Find(ctx, &core.Filter{
			Collection: "users",
			Sort:       core.Sort{{Field: "name"}},
			Include: core.Includes{{Field: "posts", Relation: &core.Relation{
				Kind:       core.RelHasMany,
				Collection: "posts",
				ForeignKey: "ownerId",
			}}},
			Fields: []core.Field{
				core.BareField("name"),
				{Kind: core.FieldPath, Name: "owners", Path: "posts.$.ownerId", MakeUnique: true},
			},
		})
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, []any{ann}, res[0]["owners"])
	})
}
