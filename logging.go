package ldapobject

import (
	"context"
	"log/slog"
	"time"
)

// logOperation wraps one directory operation with structured start/finish
// logging: operation name, the caller-supplied fields, duration and outcome.
func (c *Conn) logOperation(ctx context.Context, operation string, fields map[string]any, fn func() error) error {
	attrs := make([]any, 0, 2*len(fields)+4)
	attrs = append(attrs, slog.String("operation", operation))
	for key, value := range fields {
		attrs = append(attrs, slog.Any(key, value))
	}

	c.logger.DebugContext(ctx, "directory operation starting", attrs...)

	start := time.Now()
	err := fn()
	attrs = append(attrs, slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		c.logger.ErrorContext(ctx, "directory operation failed", attrs...)
		return err
	}

	c.logger.DebugContext(ctx, "directory operation completed", attrs...)
	return nil
}
