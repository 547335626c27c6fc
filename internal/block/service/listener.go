package service

import (
	"context"
	"fmt"

	"caseflow/internal/eventbus"
)

// RegisterListeners subscribes the block version manager to the bus.
// EnsureOpenVersion is idempotent, so redelivered BlockReviewRequested
// events are harmless.
func (s *Service) RegisterListeners(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.TypeBlockReviewRequested, "block-review", s.onBlockReviewRequested)
}

func (s *Service) onBlockReviewRequested(ctx context.Context, evt eventbus.Event) error {
	e, ok := evt.Data.(eventbus.BlockReviewRequested)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Data, evt.Type)
	}
	_, err := s.EnsureOpenVersion(ctx, e.PartyID, e.Kind)
	return err
}
