// Package core resolves declarative filters against a document store. A
// filter names a collection and a predicate, the relations to attach to
// every result and the shape of the returned documents. Relations are
// resolved by running the whole engine again on the related collection, so
// includes nest to any depth.
package core

import (
	"context"

	"github.com/dosco/docfind/core/internal/dates"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/dosco/docfind/core"

// DocFind runs filters against a store. It is safe for concurrent use.
type DocFind struct {
	conf   *Config
	store  Store
	ids    IdentifierChecker
	log    *zap.Logger
	cache  planCache
	tracer trace.Tracer
}

type Option func(*DocFind) error

// OptionSetLogger sets the logger used for debug and warning output
func OptionSetLogger(log *zap.Logger) Option {
	return func(df *DocFind) error {
		df.log = log
		return nil
	}
}

// OptionSetIdentifierChecker overrides the identifier detection used by
// makeUnique. By default the store is used when it implements
// IdentifierChecker.
func OptionSetIdentifierChecker(ids IdentifierChecker) Option {
	return func(df *DocFind) error {
		df.ids = ids
		return nil
	}
}

// OptionSetTracerProvider sets the tracer provider, the global one is used
// otherwise.
func OptionSetTracerProvider(tp trace.TracerProvider) Option {
	return func(df *DocFind) error {
		df.tracer = tp.Tracer(tracerName)
		return nil
	}
}

// NewDocFind creates a new engine over store. A nil conf uses the defaults.
func NewDocFind(conf *Config, store Store, options ...Option) (*DocFind, error) {
	if store == nil {
		return nil, errNilStore
	}

	c := Config{}
	if conf != nil {
		c = *conf
	}
	c.setDefaults()

	df := &DocFind{
		conf:   &c,
		store:  store,
		log:    zap.NewNop(),
		tracer: otel.Tracer(tracerName),
	}
	if ids, ok := store.(IdentifierChecker); ok {
		df.ids = ids
	}

	for _, op := range options {
		if err := op(df); err != nil {
			return nil, err
		}
	}

	if err := df.initCache(); err != nil {
		return nil, err
	}
	return df, nil
}

// Find returns the shaped documents of f. Validation failures abort the
// call with an error wrapping ErrInvalidPath; store errors are returned
// as they are.
func (df *DocFind) Find(ctx context.Context, f *Filter) ([]Document, error) {
	return df.find(ctx, f, 0)
}

// Find runs f against store with the default configuration.
func Find(ctx context.Context, store Store, f *Filter) ([]Document, error) {
	df, err := NewDocFind(nil, store)
	if err != nil {
		return nil, err
	}
	return df.Find(ctx, f)
}

func (df *DocFind) find(ctx context.Context, f *Filter, depth int) (docs []Document, err error) {
	if f == nil || f.Collection == "" {
		return nil, ErrEmptyCollection
	}
	if df.conf.MaxDepth > 0 && depth > df.conf.MaxDepth {
		return nil, ErrMaxDepth
	}

	ctx, span := df.tracer.Start(ctx, "docfind.find")
	span.SetAttributes(
		attribute.String("collection", f.Collection),
		attribute.Int("depth", depth))
	defer func() {
		if err != nil {
			spanError(span, err)
		}
		span.End()
	}()

	p, err := df.plan(f.Fields)
	if err != nil {
		return nil, err
	}

	where := f.Where
	if !df.conf.DisableDateNormalize && where != nil {
		where = dates.Normalize(where, df.conf.isIDKey).(map[string]any)
	}

	cur, err := df.store.Collection(f.Collection).Query(ctx, where, QueryOptions{
		Projection: p.projection,
		Sort:       f.Sort,
		Skip:       f.Skip,
		Limit:      f.Limit,
	})
	if err != nil {
		return nil, err
	}
	if docs, err = cur.Materialize(ctx); err != nil {
		return nil, err
	}

	df.log.Debug("query",
		zap.String("collection", f.Collection),
		zap.Int("depth", depth),
		zap.Int("count", len(docs)))
	span.SetAttributes(attribute.Int("count", len(docs)))

	for _, inc := range f.Include {
		if err = df.resolveInclude(ctx, inc, docs, depth); err != nil {
			return nil, err
		}
	}

	if f.Fields != nil {
		if docs, err = df.newFormatter(f).formatAll(docs); err != nil {
			return nil, err
		}
	}

	if len(f.Exclude) != 0 {
		for i := range docs {
			docs[i] = Exclude(docs[i], f.Exclude...)
		}
	}
	return docs, nil
}

func spanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
