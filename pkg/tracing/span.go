// Package tracing records lightweight span trees carried through Go contexts.
// A load run traces its startup: one root span per run and one child span per
// worker connection, logged through slog once startup completes.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey struct{}

// Span is a timed operation within a trace.
type Span struct {
	Name    string
	TraceID string

	mu        sync.Mutex
	startTime time.Time
	duration  time.Duration
	ended     bool
	err       error
	children  []*Span
	attrs     []any
}

// StartSpan creates a root span and stores it in the returned context.
func StartSpan(ctx context.Context, name string, traceID string) (context.Context, *Span) {
	span := &Span{Name: name, TraceID: traceID, startTime: time.Now()}
	return context.WithValue(ctx, contextKey{}, span), span
}

// StartChildSpan creates a span under the one in ctx. Without a parent the
// child becomes a root with an empty trace ID.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	child := &Span{Name: name, startTime: time.Now()}
	if parent := SpanFromContext(ctx); parent != nil {
		child.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, child)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, contextKey{}, child), child
}

func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

// End fixes the span duration. Later calls are ignored.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.duration = time.Since(s.startTime)
}

// EndWithError records err as the outcome and ends the span.
func (s *Span) EndWithError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.End()
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

func (s *Span) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Children returns a copy of the direct child spans.
func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Span, len(s.children))
	copy(out, s.children)
	return out
}

// Log writes the span tree to logger at debug level, failed spans at warn.
func (s *Span) Log(ctx context.Context, logger *slog.Logger) {
	s.log(ctx, logger, 0)
}

func (s *Span) log(ctx context.Context, logger *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", s.duration.Milliseconds(),
		"depth", depth,
	}
	attrs = append(attrs, s.attrs...)
	level := slog.LevelDebug
	if s.err != nil {
		attrs = append(attrs, "error", s.err)
		level = slog.LevelWarn
	}
	children := s.children
	s.mu.Unlock()

	logger.Log(ctx, level, "span", attrs...)
	for _, child := range children {
		child.log(ctx, logger, depth+1)
	}
}
