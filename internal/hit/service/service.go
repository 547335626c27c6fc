// Package service records qualifying compliance signals and emits the causal
// chain's first event.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"caseflow/internal/eventbus"
	"caseflow/internal/hit/models"
	"caseflow/internal/hit/store"
	partystore "caseflow/internal/party/store"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/sentinel"
)

type Service struct {
	hits    store.Store
	parties partystore.Store
	bus     *eventbus.Bus
	logger  *slog.Logger
	tracer  trace.Tracer
	clock   func() time.Time
}

type Option func(*Service)

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(hits store.Store, parties partystore.Store, bus *eventbus.Bus, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		hits:    hits,
		parties: parties,
		bus:     bus,
		logger:  logger,
		tracer:  otel.Tracer("caseflow/hit"),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReceiveQualifiedHit records a qualified hit and publishes HitQualified
// after commit. Every call creates a new hit; deduplicating repeated
// real-world signals is the caller's concern.
func (s *Service) ReceiveQualifiedHit(ctx context.Context, partyID id.PartyID, hitType string, payload json.RawMessage) (models.Hit, error) {
	ctx, span := s.tracer.Start(ctx, "hit.ReceiveQualifiedHit")
	defer span.End()

	if _, err := s.parties.FindByID(ctx, partyID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Hit{}, dErrors.Newf(dErrors.CodeNotFound, "party %s not found", partyID)
		}
		return models.Hit{}, dErrors.Wrap(err, dErrors.CodeInternal, "look up party")
	}

	hit, err := models.New(partyID, hitType, payload, s.clock())
	if err != nil {
		return models.Hit{}, err
	}

	err = s.bus.Run(ctx, func(ctx context.Context) error {
		if err := s.hits.Insert(ctx, hit); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "insert hit")
		}
		return s.bus.Publish(ctx, eventbus.New(eventbus.TypeHitQualified, eventbus.HitQualified{
			HitID:   hit.ID,
			PartyID: partyID,
			HitType: hitType,
		}))
	})
	if err != nil {
		return models.Hit{}, err
	}

	s.logger.InfoContext(ctx, "qualified hit recorded",
		"hit_id", hit.ID.String(),
		"party_id", partyID.String(),
		"hit_type", hitType,
	)
	return hit, nil
}
