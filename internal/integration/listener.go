package integration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"caseflow/internal/eventbus"
)

// Listener turns BlockVersionFinalized events into outbox records. The
// append is keyed on block version id, so at-least-once delivery from the
// bus collapses to exactly one record.
type Listener struct {
	store  Store
	logger *slog.Logger
	clock  func() time.Time
}

func NewListener(store Store, logger *slog.Logger) *Listener {
	return &Listener{store: store, logger: logger, clock: time.Now}
}

func (l *Listener) Register(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.TypeBlockVersionFinal, "integration-outbox", l.on)
}

func (l *Listener) on(ctx context.Context, evt eventbus.Event) error {
	e, ok := evt.Data.(eventbus.BlockVersionFinalized)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Data, evt.Type)
	}
	rec := Record{
		ID:             uuid.New(),
		BlockVersionID: e.BlockVersionID,
		PartyID:        e.PartyID,
		Kind:           e.Kind,
		FinalStatus:    e.FinalStatus,
		CreatedAt:      l.clock(),
	}
	if err := l.store.Append(ctx, rec); err != nil {
		return err
	}
	l.logger.DebugContext(ctx, "downstream notification queued",
		"block_version_id", e.BlockVersionID.String(),
		"party_id", e.PartyID.String(),
		"kind", e.Kind,
		"final_status", e.FinalStatus,
	)
	return nil
}
