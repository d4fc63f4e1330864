package logging

import (
	"context"
	"log/slog"
)

// ComponentAttr is the attribute key whose value picks the level
// override from a Spec. Loggers are usually derived with
// logger.With(logging.ComponentAttr, "manager").
const ComponentAttr = "component"

type componentFilter struct {
	next     slog.Handler
	spec     *Spec
	minLevel slog.Level
}

// NewFilteringHandler returns a handler that forwards a record to next
// only when its level reaches the level spec assigns to the logger's
// component. The last component attribute wins. next must itself
// accept trace so the filter alone decides.
func NewFilteringHandler(next slog.Handler, spec *Spec) slog.Handler {
	return &componentFilter{
		next:     next,
		spec:     spec,
		minLevel: spec.BaseLevel.ToSlog(),
	}
}

func (f *componentFilter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= f.minLevel
}

func (f *componentFilter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < f.minLevel {
		return nil
	}
	return f.next.Handle(ctx, r)
}

func (f *componentFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := f.derive(f.next.WithAttrs(attrs))
	for i := len(attrs) - 1; i >= 0; i-- {
		if attrs[i].Key == ComponentAttr {
			derived.minLevel = f.spec.LevelFor(attrs[i].Value.String()).ToSlog()
			break
		}
	}
	return derived
}

func (f *componentFilter) WithGroup(name string) slog.Handler {
	return f.derive(f.next.WithGroup(name))
}

func (f *componentFilter) derive(next slog.Handler) *componentFilter {
	c := *f
	c.next = next
	return &c
}
