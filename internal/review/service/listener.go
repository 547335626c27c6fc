package service

import (
	"context"
	"fmt"

	"caseflow/internal/eventbus"
)

// Listener reacts to bus events on behalf of the review orchestrator. The
// policy runs at listen time so a redelivered HitQualified re-derives the
// same target set, which the upsert-if-absent store calls absorb.
type Listener struct {
	service *Service
	policy  TargetPolicy
	bus     *eventbus.Bus
}

func NewListener(service *Service, policy TargetPolicy, bus *eventbus.Bus) *Listener {
	return &Listener{service: service, policy: policy, bus: bus}
}

func (l *Listener) Register(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.TypeHitQualified, "review-start", l.onHitQualified)
	bus.Subscribe(eventbus.TypeBlockVersionFinal, "review-complete", l.onBlockVersionFinalized)
}

func (l *Listener) onHitQualified(ctx context.Context, evt eventbus.Event) error {
	e, ok := evt.Data.(eventbus.HitQualified)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Data, evt.Type)
	}
	targets, members, err := l.policy.Derive(ctx, e.PartyID)
	if err != nil {
		return err
	}
	return l.bus.Run(ctx, func(ctx context.Context) error {
		_, err := l.service.StartReview(ctx, e.HitID, e.PartyID, targets, members)
		return err
	})
}

func (l *Listener) onBlockVersionFinalized(ctx context.Context, evt eventbus.Event) error {
	e, ok := evt.Data.(eventbus.BlockVersionFinalized)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Data, evt.Type)
	}
	return l.bus.Run(ctx, func(ctx context.Context) error {
		return l.service.RecordFinalizedVersion(ctx, e.BlockVersionID, e.PartyID, e.Kind, e.FinalStatus)
	})
}
