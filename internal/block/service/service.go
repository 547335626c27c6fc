// Package service implements the block version manager: it owns the temporal
// version chain per (party, kind) and is the only component that mutates
// BlockVersion rows.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	blockmetrics "caseflow/internal/block/metrics"
	"caseflow/internal/block/models"
	"caseflow/internal/block/store"
	"caseflow/internal/eventbus"
	partystore "caseflow/internal/party/store"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/sentinel"
)

// ensureRetries bounds the re-read loop when concurrent writers race on the
// same (party, kind). Each loser re-reads, so two attempts normally suffice.
const ensureRetries = 3

type Service struct {
	blocks  store.Store
	parties partystore.Store
	bus     *eventbus.Bus
	logger  *slog.Logger
	metrics *blockmetrics.Metrics
	tracer  trace.Tracer
	clock   func() time.Time
}

type Option func(*Service)

func WithMetrics(m *blockmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock sets the time source for testability.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(blocks store.Store, parties partystore.Store, bus *eventbus.Bus, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		blocks:  blocks,
		parties: parties,
		bus:     bus,
		logger:  logger,
		tracer:  otel.Tracer("caseflow/block"),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureOpenVersion returns the open version for (partyID, kind), creating
// the block and/or the next version when absent. Safe to call redundantly
// from duplicate or retried events: repeated calls for the same trigger
// return the same version row.
func (s *Service) EnsureOpenVersion(ctx context.Context, partyID id.PartyID, kind string) (models.BlockVersion, error) {
	ctx, span := s.tracer.Start(ctx, "block.EnsureOpenVersion")
	defer span.End()

	if _, err := s.parties.FindByID(ctx, partyID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.BlockVersion{}, dErrors.Newf(dErrors.CodeNotFound, "party %s not found", partyID)
		}
		return models.BlockVersion{}, dErrors.Wrap(err, dErrors.CodeInternal, "look up party")
	}

	candidate, err := models.NewBlock(partyID, kind)
	if err != nil {
		return models.BlockVersion{}, err
	}

	// Each attempt gets its own unit of work. A lost insert race aborts the
	// surrounding transaction, so the re-read needs a fresh one.
	for attempt := 0; attempt < ensureRetries; attempt++ {
		var version models.BlockVersion
		err := s.bus.Run(ctx, func(ctx context.Context) error {
			var err error
			version, err = s.openOrCreateVersion(ctx, candidate, kind)
			return err
		})
		if err == nil {
			return version, nil
		}
		if errors.Is(err, sentinel.ErrConflict) {
			if s.metrics != nil {
				s.metrics.EnsureConflicts.Inc()
			}
			continue
		}
		return models.BlockVersion{}, err
	}
	return models.BlockVersion{}, dErrors.Newf(dErrors.CodeConflict,
		"could not ensure open version for party %s kind %s", partyID, kind)
}

func (s *Service) openOrCreateVersion(ctx context.Context, candidate models.Block, kind string) (models.BlockVersion, error) {
	block, err := s.blocks.InsertOrGetBlock(ctx, candidate)
	if err != nil {
		return models.BlockVersion{}, dErrors.Wrap(err, dErrors.CodeInternal, "insert or get block")
	}

	open, err := s.blocks.OpenVersion(ctx, block.ID)
	if err == nil {
		return open, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return models.BlockVersion{}, dErrors.Wrap(err, dErrors.CodeInternal, "find open version")
	}

	max, err := s.blocks.MaxVersionNo(ctx, block.ID)
	if err != nil {
		return models.BlockVersion{}, dErrors.Wrap(err, dErrors.CodeInternal, "max version no")
	}
	version := models.NewVersion(block.ID, max+1, s.clock())

	if err := s.blocks.InsertVersion(ctx, version); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// A concurrent writer won; the caller re-reads its row.
			return models.BlockVersion{}, err
		}
		return models.BlockVersion{}, dErrors.Wrap(err, dErrors.CodeInternal, "insert version")
	}
	if s.metrics != nil {
		s.metrics.VersionsOpened.WithLabelValues(kind).Inc()
	}
	s.logger.InfoContext(ctx, "block version opened",
		"party_id", candidate.PartyID.String(),
		"kind", kind,
		"version_no", version.VersionNo,
	)
	return version, nil
}

// FinalizeVersion closes the version with a terminal status and publishes
// BlockVersionFinalized after the change is committed. A second finalize
// attempt is rejected with CodeAlreadyFinalized and emits nothing.
func (s *Service) FinalizeVersion(ctx context.Context, versionID id.BlockVersionID, finalStatus models.VersionStatus) error {
	ctx, span := s.tracer.Start(ctx, "block.FinalizeVersion")
	defer span.End()

	if !finalStatus.Terminal() {
		return dErrors.Newf(dErrors.CodeValidation, "%s is not a terminal status", finalStatus)
	}

	return s.bus.Run(ctx, func(ctx context.Context) error {
		version, err := s.blocks.FindVersion(ctx, versionID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.Newf(dErrors.CodeNotFound, "block version %s not found", versionID)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "find version")
		}
		if !version.Open() {
			return dErrors.Newf(dErrors.CodeAlreadyFinalized, "block version %s is already finalized", versionID)
		}

		now := s.clock()
		version.ValidTo = &now
		version.Status = finalStatus
		if err := s.blocks.CloseVersion(ctx, version); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Newf(dErrors.CodeAlreadyFinalized, "block version %s is already finalized", versionID)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "close version")
		}

		block, err := s.blocks.FindBlockByID(ctx, version.BlockID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "version without block")
		}

		if s.metrics != nil {
			s.metrics.VersionsFinalized.WithLabelValues(block.Kind, string(finalStatus)).Inc()
		}
		s.logger.InfoContext(ctx, "block version finalized",
			"party_id", block.PartyID.String(),
			"kind", block.Kind,
			"version_id", versionID.String(),
			"final_status", string(finalStatus),
		)
		return s.bus.Publish(ctx, eventbus.New(eventbus.TypeBlockVersionFinal, eventbus.BlockVersionFinalized{
			BlockVersionID: versionID,
			PartyID:        block.PartyID,
			Kind:           block.Kind,
			FinalStatus:    string(finalStatus),
		}))
	})
}

// RequestReview is the inbound command surface: it validates input and
// stages BlockReviewRequested; the listener performs the actual ensure. This
// keeps the command path and the event path identical.
func (s *Service) RequestReview(ctx context.Context, partyID id.PartyID, kind string) error {
	if kind == "" {
		return dErrors.New(dErrors.CodeValidation, "block kind is required")
	}
	if _, err := s.parties.FindByID(ctx, partyID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "party %s not found", partyID)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "look up party")
	}
	return s.bus.Run(ctx, func(ctx context.Context) error {
		return s.bus.Publish(ctx, eventbus.New(eventbus.TypeBlockReviewRequested, eventbus.BlockReviewRequested{
			PartyID: partyID,
			Kind:    kind,
		}))
	})
}
