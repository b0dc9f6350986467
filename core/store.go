package core

import "context"

// Document is one schemaless record. Nested objects are map[string]any and
// arrays are []any.
type Document = map[string]any

// OpIn is the membership operator used in relation predicates.
const OpIn = "$in"

// Store is the document store the engine reads from. Implementations must be
// safe for concurrent use when Config.Parallel is above one.
type Store interface {
	Collection(name string) Collection
}

// Collection runs one query against a named collection.
type Collection interface {
	Query(ctx context.Context, where map[string]any, opts QueryOptions) (Cursor, error)
}

// Cursor yields the documents of an executed query.
type Cursor interface {
	Materialize(ctx context.Context) ([]Document, error)
}

// IdentifierChecker is implemented by stores whose identifier values are
// opaque objects rather than plain strings.
type IdentifierChecker interface {
	IsIdentifier(v any) bool
}

// QueryOptions carries the query modifiers. Projection is shared with the
// engine's plan cache and must not be modified. A nil Projection selects
// every field.
type QueryOptions struct {
	Projection map[string]bool
	Sort       Sort
	Skip       int64
	Limit      int64
}
