package logger

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type key int

const queryKey key = 0

// NewQueryContext tags a context with a fresh query id. Every log line
// emitted while handling that query carries the id.
func NewQueryContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, queryKey, uuid.New().String())
}

func WithQueryID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, queryKey, id)
}

func QueryID(ctx context.Context) string {
	if id, ok := ctx.Value(queryKey).(string); ok {
		return id
	}
	return ""
}

type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := QueryID(ctx); id != "" {
		r.AddAttrs(slog.String("query_id", id))
	}
	return h.Handler.Handle(ctx, r)
}
