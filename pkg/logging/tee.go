package logging

import (
	"context"
	"errors"
	"log/slog"
)

// teeHandler sends each record to the console handler and to the JSON log
// file handler. Each side filters by its own level.
type teeHandler struct {
	console slog.Handler
	file    slog.Handler
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.console.Enabled(ctx, level) || h.file.Enabled(ctx, level)
}

// Handle writes r to every side that accepts its level. A failed console
// write does not stop the file write.
func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	if h.console.Enabled(ctx, r.Level) {
		errs = append(errs, h.console.Handle(ctx, r.Clone()))
	}
	if h.file.Enabled(ctx, r.Level) {
		errs = append(errs, h.file.Handle(ctx, r))
	}
	return errors.Join(errs...)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{console: h.console.WithAttrs(attrs), file: h.file.WithAttrs(attrs)}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{console: h.console.WithGroup(name), file: h.file.WithGroup(name)}
}
