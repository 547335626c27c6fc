// Package service implements the review orchestrator: review creation,
// target tracking, and the derived closure check. It is the only component
// that mutates ReviewInstance and ReviewTarget rows.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	blockmodels "caseflow/internal/block/models"
	hitstore "caseflow/internal/hit/store"
	partystore "caseflow/internal/party/store"
	"caseflow/internal/review/models"
	"caseflow/internal/review/store"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/sentinel"
)

type Service struct {
	reviews store.Store
	hits    hitstore.Store
	parties partystore.Store
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

func New(reviews store.Store, hits hitstore.Store, parties partystore.Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		reviews: reviews,
		hits:    hits,
		parties: parties,
		logger:  logger,
		tracer:  otel.Tracer("caseflow/review"),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartReview creates the review instance for a hit along with its target
// set and member roster. Exactly one review exists per hit: a redelivered
// trigger returns the existing instance and upserts targets without
// duplication.
func (s *Service) StartReview(ctx context.Context, hitID id.HitID, pivotPartyID id.PartyID, targets []Target, members []Member) (models.ReviewInstance, error) {
	ctx, span := s.tracer.Start(ctx, "review.StartReview")
	defer span.End()

	if _, err := s.hits.FindByID(ctx, hitID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.ReviewInstance{}, dErrors.Newf(dErrors.CodeNotFound, "hit %s not found", hitID)
		}
		return models.ReviewInstance{}, dErrors.Wrap(err, dErrors.CodeInternal, "look up hit")
	}
	if _, err := s.parties.FindByID(ctx, pivotPartyID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.ReviewInstance{}, dErrors.Newf(dErrors.CodeNotFound, "party %s not found", pivotPartyID)
		}
		return models.ReviewInstance{}, dErrors.Wrap(err, dErrors.CodeInternal, "look up party")
	}

	now := s.clock()
	review, err := s.reviews.InsertOrGetReview(ctx, models.NewReview(hitID, pivotPartyID, now))
	if err != nil {
		return models.ReviewInstance{}, dErrors.Wrap(err, dErrors.CodeInternal, "insert review")
	}

	for _, target := range targets {
		row, err := models.NewTarget(review.ID, target.PartyID, target.Kind)
		if err != nil {
			return models.ReviewInstance{}, err
		}
		if _, err := s.reviews.InsertTargetIfAbsent(ctx, row); err != nil {
			return models.ReviewInstance{}, dErrors.Wrap(err, dErrors.CodeInternal, "insert target")
		}
	}
	for _, member := range members {
		row := models.ReviewMember{
			ReviewID:      review.ID,
			MemberPartyID: member.PartyID,
			RelationType:  member.RelationType,
			AddedAt:       now,
		}
		if _, err := s.reviews.InsertMemberIfAbsent(ctx, row); err != nil {
			return models.ReviewInstance{}, dErrors.Wrap(err, dErrors.CodeInternal, "insert member")
		}
	}

	s.logger.InfoContext(ctx, "review started",
		"review_id", review.ID.String(),
		"hit_id", hitID.String(),
		"pivot_party_id", pivotPartyID.String(),
		"targets", len(targets),
	)
	return review, nil
}

// RecordFinalizedVersion completes every PENDING target matching the
// finalized (party, kind) and recomputes closure for the affected reviews.
// Idempotent: redelivery finds no PENDING target and changes nothing.
func (s *Service) RecordFinalizedVersion(ctx context.Context, versionID id.BlockVersionID, partyID id.PartyID, kind, finalStatus string) error {
	ctx, span := s.tracer.Start(ctx, "review.RecordFinalizedVersion")
	defer span.End()

	status, err := blockmodels.ParseVersionStatus(finalStatus)
	if err != nil {
		return err
	}

	pending, err := s.reviews.PendingTargets(ctx, partyID, kind)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "list pending targets")
	}

	now := s.clock()
	for _, target := range pending {
		flipped, err := s.reviews.CompleteTarget(ctx, target.TargetID, versionID, status, now)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "complete target")
		}
		if !flipped {
			continue
		}
		s.logger.InfoContext(ctx, "review target completed",
			"review_id", target.ReviewID.String(),
			"target_party_id", partyID.String(),
			"block_kind", kind,
			"final_status", finalStatus,
		)
		if err := s.maybeCloseReview(ctx, target.ReviewID, now); err != nil {
			return err
		}
	}
	return nil
}

// maybeCloseReview recomputes the derived closure property: a review closes
// when all its targets are DONE.
func (s *Service) maybeCloseReview(ctx context.Context, reviewID id.ReviewID, now time.Time) error {
	targets, err := s.reviews.ListTargets(ctx, reviewID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "list targets")
	}
	for _, t := range targets {
		if t.State != models.TargetDone {
			return nil
		}
	}
	if err := s.reviews.CloseReview(ctx, reviewID, now); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "close review")
	}
	s.logger.InfoContext(ctx, "review closed", "review_id", reviewID.String())
	return nil
}

// Review returns a review with its targets and members.
func (s *Service) Review(ctx context.Context, reviewID id.ReviewID) (models.ReviewInstance, []models.ReviewTarget, []models.ReviewMember, error) {
	review, err := s.reviews.FindReview(ctx, reviewID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.ReviewInstance{}, nil, nil, dErrors.Newf(dErrors.CodeNotFound, "review %s not found", reviewID)
		}
		return models.ReviewInstance{}, nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "find review")
	}
	targets, err := s.reviews.ListTargets(ctx, reviewID)
	if err != nil {
		return models.ReviewInstance{}, nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "list targets")
	}
	members, err := s.reviews.ListMembers(ctx, reviewID)
	if err != nil {
		return models.ReviewInstance{}, nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "list members")
	}
	return review, targets, members, nil
}
