// Package service assembles the aggregated case view for a party: its
// blocks with full version history, the reviews pivoting on it, and the
// qualified hits that started them.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	blockmodels "caseflow/internal/block/models"
	blockstore "caseflow/internal/block/store"
	hitmodels "caseflow/internal/hit/models"
	hitstore "caseflow/internal/hit/store"
	partymodels "caseflow/internal/party/models"
	partystore "caseflow/internal/party/store"
	reviewmodels "caseflow/internal/review/models"
	reviewstore "caseflow/internal/review/store"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/sentinel"
)

// BlockView is a block with its complete version chain, newest last.
type BlockView struct {
	Block    blockmodels.Block
	Versions []blockmodels.BlockVersion
}

// ReviewView is a review with its targets and members.
type ReviewView struct {
	Review  reviewmodels.ReviewInstance
	Targets []reviewmodels.ReviewTarget
	Members []reviewmodels.ReviewMember
}

// CaseSummary is the full aggregated view for one party.
type CaseSummary struct {
	Party       partymodels.Party
	Blocks      []BlockView
	Reviews     []ReviewView
	Hits        []hitmodels.Hit
	GeneratedAt time.Time
}

// Service aggregates from the area stores. Reads only.
type Service struct {
	parties partystore.Store
	blocks  blockstore.Store
	reviews reviewstore.Store
	hits    hitstore.Store
	logger  *slog.Logger
	clock   func() time.Time
}

type Option func(*Service)

func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

func New(parties partystore.Store, blocks blockstore.Store, reviews reviewstore.Store, hits hitstore.Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		parties: parties,
		blocks:  blocks,
		reviews: reviews,
		hits:    hits,
		logger:  logger,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summary builds the case view for partyID. The party itself is loaded
// first so a missing party fails fast; the remaining reads fan out.
func (s *Service) Summary(ctx context.Context, partyID id.PartyID) (CaseSummary, error) {
	party, err := s.parties.FindByID(ctx, partyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return CaseSummary{}, dErrors.Newf(dErrors.CodeNotFound, "party %s not found", partyID)
		}
		return CaseSummary{}, dErrors.Wrap(err, dErrors.CodeInternal, "look up party")
	}

	var (
		blocks  []blockmodels.Block
		reviews []reviewmodels.ReviewInstance
		hits    []hitmodels.Hit
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		blocks, err = s.blocks.ListBlocksByParty(gctx, partyID)
		return err
	})
	g.Go(func() error {
		var err error
		reviews, err = s.reviews.ListReviewsByPivot(gctx, partyID)
		return err
	})
	g.Go(func() error {
		var err error
		hits, err = s.hits.ListByParty(gctx, partyID)
		return err
	})
	if err := g.Wait(); err != nil {
		return CaseSummary{}, err
	}

	blockViews := make([]BlockView, len(blocks))
	reviewViews := make([]ReviewView, len(reviews))

	g, gctx = errgroup.WithContext(ctx)
	for i, block := range blocks {
		g.Go(func() error {
			versions, err := s.blocks.ListVersions(gctx, block.ID)
			if err != nil {
				return err
			}
			blockViews[i] = BlockView{Block: block, Versions: versions}
			return nil
		})
	}
	for i, review := range reviews {
		g.Go(func() error {
			targets, err := s.reviews.ListTargets(gctx, review.ID)
			if err != nil {
				return err
			}
			members, err := s.reviews.ListMembers(gctx, review.ID)
			if err != nil {
				return err
			}
			reviewViews[i] = ReviewView{Review: review, Targets: targets, Members: members}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return CaseSummary{}, err
	}

	s.logger.DebugContext(ctx, "case summary assembled",
		"party_id", partyID,
		"blocks", len(blockViews),
		"reviews", len(reviewViews),
		"hits", len(hits),
	)

	return CaseSummary{
		Party:       party,
		Blocks:      blockViews,
		Reviews:     reviewViews,
		Hits:        hits,
		GeneratedAt: s.clock().UTC(),
	}, nil
}
