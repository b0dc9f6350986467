// Package mongodriver runs docfind queries against MongoDB.
package mongodriver

import (
	"context"
	"fmt"
	"sync"

	"github.com/dosco/docfind/core"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Store implements core.Store over one MongoDB database.
type Store struct {
	client    *mongo.Client
	database  string
	db        *mongo.Database
	coerceIDs bool

	mu    sync.Mutex
	colls map[string]*mongo.Collection
}

type Option func(*Store)

// WithObjectIDCoercion turns 24 character hex strings compared against _id
// into ObjectIDs, so identifiers taken from JSON requests match.
func WithObjectIDCoercion() Option {
	return func(s *Store) {
		s.coerceIDs = true
	}
}

// NewStore creates a store over an existing client.
func NewStore(client *mongo.Client, database string, opts ...Option) *Store {
	s := &Store{
		client:   client,
		database: database,
		db:       client.Database(database),
		colls:    make(map[string]*mongo.Collection),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Connect creates a client for uri, checks the server is reachable and
// returns a store over database.
func Connect(ctx context.Context, uri, database string, opts ...Option) (*Store, error) {
	if database == "" {
		return nil, fmt.Errorf("mongodriver: database name is required")
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return NewStore(client, database, opts...), nil
}

// Client returns the underlying MongoDB client.
func (s *Store) Client() *mongo.Client {
	return s.client
}

// Database returns the database name.
func (s *Store) Database() string {
	return s.database
}

// Ping checks the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// IsIdentifier reports whether v is an ObjectID.
func (s *Store) IsIdentifier(v any) bool {
	_, ok := v.(bson.ObjectID)
	return ok
}

func (s *Store) Collection(name string) core.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.colls[name]
	if !ok {
		c = s.db.Collection(name)
		s.colls[name] = c
	}
	return &collection{coll: c, coerceIDs: s.coerceIDs}
}

type collection struct {
	coll      *mongo.Collection
	coerceIDs bool
}

func (c *collection) Query(ctx context.Context, where map[string]any, opts core.QueryOptions) (core.Cursor, error) {
	var filter map[string]any
	if c.coerceIDs {
		filter = coerceIDs(where)
	} else {
		filter = make(map[string]any, len(where))
		for k, v := range where {
			filter[k] = v
		}
	}

	cur, err := c.coll.Find(ctx, filter, findOptions(opts))
	if err != nil {
		return nil, err
	}
	return &cursor{cur: cur}, nil
}

func findOptions(opts core.QueryOptions) *options.FindOptionsBuilder {
	fo := options.Find()
	if p := projection(opts.Projection); p != nil {
		fo.SetProjection(p)
	}
	if len(opts.Sort) != 0 {
		fo.SetSort(sortDoc(opts.Sort))
	}
	if opts.Skip > 0 {
		fo.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		fo.SetLimit(opts.Limit)
	}
	return fo
}
