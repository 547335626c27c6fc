package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"caseflow/internal/party/models"
	"caseflow/internal/party/store"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/sentinel"
)

// Service keeps party registration thin: parties are referenced by every
// other area but never deleted in this scope.
type Service struct {
	parties store.Store
	logger  *slog.Logger
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

func New(parties store.Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{parties: parties, logger: logger, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, partyType, subType, externalRef string) (models.Party, error) {
	party, err := models.New(partyType, subType, externalRef, s.clock())
	if err != nil {
		return models.Party{}, err
	}
	if err := s.parties.Insert(ctx, party); err != nil {
		return models.Party{}, dErrors.Wrap(err, dErrors.CodeInternal, "insert party")
	}
	s.logger.InfoContext(ctx, "party created", "party_id", party.ID.String(), "type", partyType)
	return party, nil
}

func (s *Service) Get(ctx context.Context, partyID id.PartyID) (models.Party, error) {
	party, err := s.parties.FindByID(ctx, partyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Party{}, dErrors.Newf(dErrors.CodeNotFound, "party %s not found", partyID)
		}
		return models.Party{}, dErrors.Wrap(err, dErrors.CodeInternal, "find party")
	}
	return party, nil
}
