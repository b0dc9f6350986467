package core_test

import (
	"context"
	"testing"

	"github.com/dosco/docfind/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTracedEngine(t *testing.T) (*core.DocFind, *tracetest.SpanRecorder) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	df, err := core.NewDocFind(nil, newStore(), core.OptionSetTracerProvider(tp))
	require.NoError(t, err)
	return df, sr
}

func TestFindSpans(t *testing.T) {
	df, sr := newTracedEngine(t)

	_, err := df.Find(context.Background(), &core.Filter{
		Collection: "users",
		Include: core.Includes{{Field: "posts", Relation: &core.Relation{
			Kind: core.RelHasMany, Collection: "posts", ForeignKey: "ownerId",
		}}},
	})
	require.NoError(t, err)

	counts := map[string]int{}
	for _, s := range sr.Ended() {
		counts[s.Name()]++
		assert.Equal(t, codes.Unset, s.Status().Code)
	}
	// one sub-query per user
	assert.Equal(t, map[string]int{"docfind.find": 3, "docfind.include": 1}, counts)

	var root sdktrace.ReadOnlySpan
	for _, s := range sr.Ended() {
		if s.Name() == "docfind.find" && !s.Parent().IsValid() {
			root = s
		}
	}
	require.NotNil(t, root)
	assert.Contains(t, root.Attributes(), attribute.String("collection", "users"))
	assert.Contains(t, root.Attributes(), attribute.Int("count", 2))
}

func TestFindSpanError(t *testing.T) {
	df, sr := newTracedEngine(t)

	_, err := df.Find(context.Background(), &core.Filter{
		Collection: "users",
		Fields:     []core.Field{core.PathField("x", "a..b")},
	})
	require.ErrorIs(t, err, core.ErrInvalidPath)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
