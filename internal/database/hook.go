package database

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// slowQueryThreshold marks queries worth surfacing at warn level even when
// they succeed. Sequence-bump transactions hold a row lock, so anything
// slower than this delays every writer behind it on the same channel.
const slowQueryThreshold = 250 * time.Millisecond

// maxLoggedQueryLen bounds logged query text; message bodies can make
// INSERT statements arbitrarily long.
const maxLoggedQueryLen = 512

// Hook implements bun.QueryHook interface for logging queries with zap.
type Hook struct {
	logger *zap.Logger
}

// NewHook creates a new Hook with zap logger.
func NewHook(logger *zap.Logger) *Hook {
	return &Hook{logger: logger.Named("db_query")}
}

// BeforeQuery logs the query before execution.
func (h *Hook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

// AfterQuery logs the query outcome, its operation, and execution time.
func (h *Hook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	duration := time.Since(event.StartTime)

	query := event.Query
	if len(query) > maxLoggedQueryLen {
		query = query[:maxLoggedQueryLen] + "..."
	}

	fields := []zap.Field{
		zap.String("operation", event.Operation()),
		zap.String("query", query),
		zap.Duration("duration", duration),
	}

	switch {
	case event.Err != nil:
		h.logger.Error("Query failed", append(fields, zap.Error(event.Err))...)
	case duration >= slowQueryThreshold:
		h.logger.Warn("Slow query", fields...)
	default:
		h.logger.Debug("Query executed", fields...)
	}
}
