package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildSpansJoinParentTrace(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "startup", "run-1")
	_, a := StartChildSpan(ctx, "open sink")
	_, b := StartChildSpan(ctx, "open sink")
	a.End()
	b.EndWithError(errors.New("refused"))
	root.End()

	children := root.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "run-1", children[0].TraceID)
	assert.NoError(t, children[0].Err())
	assert.EqualError(t, children[1].Err(), "refused")
	assert.Same(t, root, SpanFromContext(ctx))
}

func TestChildWithoutParentIsRoot(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "orphan")
	assert.Empty(t, span.TraceID)
	assert.Nil(t, SpanFromContext(context.Background()))
}

func TestEndIsIdempotent(t *testing.T) {
	_, span := StartSpan(context.Background(), "s", "t")
	span.End()
	d := span.Duration()
	span.End()
	assert.Equal(t, d, span.Duration())
}

func TestLogWritesTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "startup", "run-1")
	_, child := StartChildSpan(ctx, "open sink")
	child.SetAttr("worker", 3)
	child.EndWithError(errors.New("refused"))
	root.End()

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	root.Log(context.Background(), log)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "span=startup")
	assert.Contains(t, lines[0], "depth=0")
	assert.Contains(t, lines[1], "level=WARN")
	assert.Contains(t, lines[1], "worker=3")
	assert.Contains(t, lines[1], "error=refused")
}
