package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "event.index", "")
	require.Len(t, root.TraceID, 36)

	childCtx, child := StartChildSpan(ctx, "indexer.index")
	child.SetAttr("tokens", 4)
	child.End()
	root.End()

	assert.Same(t, child, SpanFromContext(childCtx))
	assert.Equal(t, root.TraceID, child.TraceID)
	require.Len(t, root.Children, 1)

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "msg=span"))
	assert.Contains(t, out, "tokens=4")
}

func TestChildWithoutParentIsNil(t *testing.T) {
	ctx := context.Background()
	got, span := StartChildSpan(ctx, "orphan")
	assert.Nil(t, span)
	assert.Equal(t, ctx, got)
	span.SetAttr("k", "v")
	span.End()
	span.Log(slog.Default())
}
