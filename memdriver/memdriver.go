// Package memdriver is an in-memory document store for the docfind engine.
// It understands the subset of MongoDB query syntax the engine and most
// saved filters use and is meant for tests and embedding without a
// database.
package memdriver

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/dosco/docfind/core"
	"github.com/rs/xid"
)

const idField = "_id"

// Store holds named collections of documents. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	colls map[string][]map[string]any
}

// New creates an empty store.
func New() *Store {
	return &Store{colls: make(map[string][]map[string]any)}
}

// Insert adds documents to coll and returns their identifiers. Documents
// without an _id get a new xid.
func (s *Store) Insert(coll string, docs ...map[string]any) []any {
	ids := make([]any, 0, len(docs))

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range docs {
		c := normalize(d).(map[string]any)
		if _, ok := c[idField]; !ok {
			c[idField] = xid.New()
		}
		ids = append(ids, c[idField])
		s.colls[coll] = append(s.colls[coll], c)
	}
	return ids
}

// Load inserts the documents of every collection in data.
func (s *Store) Load(data map[string][]map[string]any) {
	for coll, docs := range data {
		s.Insert(coll, docs...)
	}
}

// Drop removes every document of coll.
func (s *Store) Drop(coll string) {
	s.mu.Lock()
	delete(s.colls, coll)
	s.mu.Unlock()
}

// Len returns the number of documents in coll.
func (s *Store) Len(coll string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.colls[coll])
}

// IsIdentifier reports whether v is an identifier generated by the store.
func (s *Store) IsIdentifier(v any) bool {
	_, ok := v.(xid.ID)
	return ok
}

func (s *Store) Collection(name string) core.Collection {
	return &collection{store: s, name: name}
}

type collection struct {
	store *Store
	name  string
}

func (c *collection) Query(ctx context.Context, where map[string]any, opts core.QueryOptions) (core.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Skip < 0 || opts.Limit < 0 {
		return nil, fmt.Errorf("memdriver: negative skip or limit")
	}

	c.store.mu.RLock()
	var docs []map[string]any
	for _, d := range c.store.colls[c.name] {
		ok, err := match(d, where)
		if err != nil {
			c.store.mu.RUnlock()
			return nil, err
		}
		if ok {
			docs = append(docs, normalize(d).(map[string]any))
		}
	}
	c.store.mu.RUnlock()

	if len(opts.Sort) != 0 {
		sortDocs(docs, opts.Sort)
	}

	if opts.Skip != 0 {
		if opts.Skip >= int64(len(docs)) {
			docs = nil
		} else {
			docs = docs[opts.Skip:]
		}
	}
	if opts.Limit != 0 && opts.Limit < int64(len(docs)) {
		docs = docs[:opts.Limit]
	}

	res := make([]core.Document, len(docs))
	for i, d := range docs {
		if opts.Projection != nil {
			d = project(d, opts.Projection)
		}
		res[i] = d
	}
	return &cursor{docs: res}, nil
}

type cursor struct {
	docs []core.Document
}

func (c *cursor) Materialize(ctx context.Context) ([]core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.docs, nil
}

func sortDocs(docs []map[string]any, by core.Sort) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, sf := range by {
			a := first(lookup(docs[i], sf.Field))
			b := first(lookup(docs[j], sf.Field))
			n := order(a, b)
			if n == 0 {
				continue
			}
			if sf.Desc {
				return n > 0
			}
			return n < 0
		}
		return false
	})
}

// project keeps the listed paths and _id.
func project(doc map[string]any, proj map[string]bool) map[string]any {
	out := make(map[string]any, len(proj)+1)
	if id, ok := doc[idField]; ok {
		out[idField] = id
	}
	for p, on := range proj {
		if on {
			copyPath(doc, out, splitPath(p))
		}
	}
	return out
}

func copyPath(src, dst map[string]any, segs []string) {
	v, ok := src[segs[0]]
	if !ok {
		return
	}
	if len(segs) == 1 {
		dst[segs[0]] = v
		return
	}

	switch val := v.(type) {
	case map[string]any:
		child, _ := dst[segs[0]].(map[string]any)
		if child == nil {
			child = make(map[string]any)
			dst[segs[0]] = child
		}
		copyPath(val, child, segs[1:])

	case []any:
		list, _ := dst[segs[0]].([]any)
		if list == nil {
			list = make([]any, 0, len(val))
			for _, e := range val {
				if _, ok := e.(map[string]any); ok {
					list = append(list, make(map[string]any))
				}
			}
			dst[segs[0]] = list
		}
		i := 0
		for _, e := range val {
			em, ok := e.(map[string]any)
			if !ok {
				continue
			}
			copyPath(em, list[i].(map[string]any), segs[1:])
			i++
		}
	}
}

// normalize deep copies v, turning every slice into []any.
func normalize(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = normalize(val[i])
		}
		return out
	case []byte, xid.ID:
		return val
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	}
	return v
}
