// Package tracing times the stages of a request. A Span measures one stage,
// nested spans measure the stages inside it, and the finished tree is emitted
// as one debug log line per stage, labelled with its path (e.g. "search/rank").
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey struct{}

// Span is one timed stage of a request.
type Span struct {
	name      string
	requestID string
	started   time.Time
	elapsed   time.Duration

	mu       sync.Mutex
	attrs    []slog.Attr
	children []*Span
}

// Start begins a root span for a request and stores it in the returned
// context so nested stages can attach to it.
func Start(ctx context.Context, name, requestID string) (context.Context, *Span) {
	s := &Span{
		name:      name,
		requestID: requestID,
		started:   time.Now(),
	}
	return context.WithValue(ctx, contextKey{}, s), s
}

// Nested begins a span under the one carried by ctx. Without a parent in ctx
// it behaves like a root span with no request id.
func Nested(ctx context.Context, name string) (context.Context, *Span) {
	s := &Span{
		name:    name,
		started: time.Now(),
	}
	if parent, ok := ctx.Value(contextKey{}).(*Span); ok {
		s.requestID = parent.requestID
		parent.mu.Lock()
		parent.children = append(parent.children, s)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, contextKey{}, s), s
}

// SetAttr records a key-value pair that is logged with the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, slog.Any(key, value))
	s.mu.Unlock()
}

// End freezes the span's elapsed time. Ending twice keeps the first value.
func (s *Span) End() time.Duration {
	if s.elapsed == 0 {
		s.elapsed = time.Since(s.started)
	}
	return s.elapsed
}

// Finish ends the span and logs the whole tree at debug level, one line per
// stage. A span still running when its root finishes is ended here.
func (s *Span) Finish(logger *slog.Logger) {
	s.End()
	s.emit(logger, s.name)
}

func (s *Span) emit(logger *slog.Logger, path string) {
	s.End()
	attrs := make([]slog.Attr, 0, len(s.attrs)+3)
	attrs = append(attrs,
		slog.String("stage", path),
		slog.String("request_id", s.requestID),
		slog.Int64("duration_ms", s.elapsed.Milliseconds()),
	)

	s.mu.Lock()
	attrs = append(attrs, s.attrs...)
	children := s.children
	s.mu.Unlock()

	logger.LogAttrs(context.Background(), slog.LevelDebug, "trace", attrs...)
	for _, child := range children {
		child.emit(logger, path+"/"+child.name)
	}
}
