// Package audit observes every bus event for traceability. The listener is a
// sink: it never mutates state and never fails delivery.
package audit

import (
	"context"
	"log/slog"

	"caseflow/internal/eventbus"
)

type Listener struct {
	logger *slog.Logger
}

func NewListener(logger *slog.Logger) *Listener {
	return &Listener{logger: logger}
}

func (l *Listener) Register(bus *eventbus.Bus) {
	bus.SubscribeAll("audit", l.on)
}

func (l *Listener) on(ctx context.Context, evt eventbus.Event) error {
	l.logger.InfoContext(ctx, "audit event",
		"event_type", string(evt.Type),
		"occurred_at", evt.OccurredAt,
		"data", evt.Data,
	)
	return nil
}
