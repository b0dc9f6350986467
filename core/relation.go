package core

import (
	"context"

	"github.com/dosco/docfind/core/internal/docpath"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// resolveInclude attaches one include entry to every document. With
// Config.Parallel above one the documents are resolved concurrently, each
// goroutine writing only to its own document.
func (df *DocFind) resolveInclude(ctx context.Context, inc Include, docs []Document, depth int) error {
	if inc.Relation == nil {
		return nil
	}

	ctx, span := df.tracer.Start(ctx, "docfind.include")
	span.SetAttributes(
		attribute.String("field", inc.Field),
		attribute.String("relation", string(inc.Relation.Kind)),
		attribute.String("collection", inc.Relation.Collection),
		attribute.Int("instances", len(docs)))
	defer span.End()

	if df.conf.Parallel < 2 || len(docs) < 2 {
		for _, doc := range docs {
			if err := df.resolve(ctx, inc.Relation, inc.Field, doc, depth); err != nil {
				spanError(span, err)
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(df.conf.Parallel)

	for _, doc := range docs {
		doc := doc
		g.Go(func() error {
			return df.resolve(gctx, inc.Relation, inc.Field, doc, depth)
		})
	}
	if err := g.Wait(); err != nil {
		spanError(span, err)
		return err
	}
	return nil
}

// resolve runs the sub-queries of rel for one document and stores the
// result under field.
func (df *DocFind) resolve(ctx context.Context, rel *Relation, field string, doc Document, depth int) error {
	pk := rel.PrimaryKey
	if pk == "" {
		pk = df.conf.IDField
	}

	switch rel.Kind {
	case RelBelongsTo:
		return df.resolveOne(ctx, rel, field, doc, pk, doc[rel.ForeignKey], depth)

	case RelHasOne:
		return df.resolveOne(ctx, rel, field, doc, rel.ForeignKey, doc[pk], depth)

	case RelHasMany:
		key := doc[pk]
		if key == nil {
			doc[field] = []any{}
			return nil
		}
		sub := subFilter(rel.Scope, rel.Collection, map[string]any{rel.ForeignKey: key})
		res, err := df.find(ctx, sub, depth+1)
		if err != nil {
			return err
		}
		doc[field] = toAny(res)

	case RelHasAndBelongsToMany:
		keys, err := df.throughKeys(ctx, rel, doc[pk], depth)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			doc[field] = []any{}
			return nil
		}
		rpk := rel.RelationPrimaryKey
		if rpk == "" {
			rpk = df.conf.IDField
		}
		return df.resolveIn(ctx, rel, field, doc, rpk, keys, depth)

	case RelReferencesMany:
		var keys []any
		if v := doc[rel.ForeignKey]; truthy(v) {
			if list, ok := toSlice(v); ok {
				keys = list
			} else {
				keys = []any{v}
			}
		}
		if len(keys) == 0 {
			doc[field] = []any{}
			return nil
		}
		return df.resolveIn(ctx, rel, field, doc, pk, keys, depth)

	default:
		df.log.Warn("unknown relation, include skipped",
			zap.String("field", field),
			zap.String("relation", string(rel.Kind)))
	}
	return nil
}

// resolveOne stores the first document matching {matchKey: val}, or removes
// field when there is none.
func (df *DocFind) resolveOne(
	ctx context.Context,
	rel *Relation,
	field string,
	doc Document,
	matchKey string,
	val any,
	depth int,
) error {
	if val == nil {
		delete(doc, field)
		return nil
	}

	sub := subFilter(rel.Scope, rel.Collection, map[string]any{matchKey: val})
	if sub.Limit == 0 {
		sub.Limit = 1
	}

	res, err := df.find(ctx, sub, depth+1)
	if err != nil {
		return err
	}
	if len(res) == 0 {
		delete(doc, field)
		return nil
	}
	doc[field] = res[0]
	return nil
}

// resolveIn stores every document whose matchKey is one of keys.
func (df *DocFind) resolveIn(
	ctx context.Context,
	rel *Relation,
	field string,
	doc Document,
	matchKey string,
	keys []any,
	depth int,
) error {
	sub := subFilter(rel.Scope, rel.Collection, map[string]any{
		matchKey: map[string]any{OpIn: keys},
	})
	res, err := df.find(ctx, sub, depth+1)
	if err != nil {
		return err
	}
	doc[field] = toAny(res)
	return nil
}

// throughKeys reads the relation keys linked to val in the join collection.
func (df *DocFind) throughKeys(ctx context.Context, rel *Relation, val any, depth int) ([]any, error) {
	if val == nil {
		return nil, nil
	}

	sub := subFilter(rel.ThroughScope, rel.Through, map[string]any{rel.ForeignKey: val})
	sub.Fields = []Field{BareField(df.conf.IDField), BareField(rel.RelationKey)}

	res, err := df.find(ctx, sub, depth+1)
	if err != nil {
		return nil, err
	}

	keys := make([]any, 0, len(res))
	for _, d := range res {
		if k := docpath.Get(d, rel.RelationKey); k != nil {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
