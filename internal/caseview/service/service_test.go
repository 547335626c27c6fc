package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

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
)

type CaseViewSuite struct {
	suite.Suite
	ctx     context.Context
	parties *partystore.InMemoryStore
	blocks  *blockstore.InMemoryStore
	reviews *reviewstore.InMemoryStore
	hits    *hitstore.InMemoryStore
	service *Service
	now     time.Time
}

func TestCaseViewSuite(t *testing.T) {
	suite.Run(t, new(CaseViewSuite))
}

func (s *CaseViewSuite) SetupTest() {
	s.ctx = context.Background()
	s.parties = partystore.NewMemory()
	s.blocks = blockstore.NewMemory()
	s.reviews = reviewstore.NewMemory()
	s.hits = hitstore.NewMemory()
	s.now = time.Date(2026, 5, 2, 11, 0, 0, 0, time.UTC)
	s.service = New(s.parties, s.blocks, s.reviews, s.hits, slog.Default(),
		WithClock(func() time.Time { return s.now }),
	)
}

func (s *CaseViewSuite) seedParty() partymodels.Party {
	party, err := partymodels.New("ORGANISATION", "LLC", "crm-77", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.parties.Insert(s.ctx, party))
	return party
}

// ============================================================================
// Summary
// ============================================================================

func (s *CaseViewSuite) TestSummary() {
	s.Run("unknown party fails fast", func() {
		_, err := s.service.Summary(s.ctx, id.NewPartyID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("empty case returns party with no history", func() {
		party := s.seedParty()

		summary, err := s.service.Summary(s.ctx, party.ID)
		s.Require().NoError(err)

		s.Equal(party.ID, summary.Party.ID)
		s.Empty(summary.Blocks)
		s.Empty(summary.Reviews)
		s.Empty(summary.Hits)
		s.Equal(s.now, summary.GeneratedAt)
	})

	s.Run("aggregates blocks with full version chains", func() {
		party := s.seedParty()

		block, err := blockmodels.NewBlock(party.ID, "NAME_SCREENING")
		s.Require().NoError(err)
		block, err = s.blocks.InsertOrGetBlock(s.ctx, block)
		s.Require().NoError(err)

		v1 := blockmodels.NewVersion(block.ID, 1, s.now)
		s.Require().NoError(s.blocks.InsertVersion(s.ctx, v1))
		closedAt := s.now.Add(time.Hour)
		v1.ValidTo = &closedAt
		v1.Status = blockmodels.StatusApproved
		s.Require().NoError(s.blocks.CloseVersion(s.ctx, v1))
		s.Require().NoError(s.blocks.InsertVersion(s.ctx, blockmodels.NewVersion(block.ID, 2, closedAt)))

		summary, err := s.service.Summary(s.ctx, party.ID)
		s.Require().NoError(err)

		s.Require().Len(summary.Blocks, 1)
		view := summary.Blocks[0]
		s.Equal(block.ID, view.Block.ID)
		s.Require().Len(view.Versions, 2)
		s.Equal(1, view.Versions[0].VersionNo)
		s.Equal(blockmodels.StatusApproved, view.Versions[0].Status)
		s.Equal(2, view.Versions[1].VersionNo)
		s.True(view.Versions[1].Open())
	})

	s.Run("aggregates reviews with targets and members", func() {
		party := s.seedParty()
		member := s.seedParty()

		hit, err := hitmodels.New(party.ID, "SANCTIONS", json.RawMessage(`{"list":"OFAC"}`), s.now)
		s.Require().NoError(err)
		s.Require().NoError(s.hits.Insert(s.ctx, hit))

		review, err := s.reviews.InsertOrGetReview(s.ctx, reviewmodels.NewReview(hit.ID, party.ID, s.now))
		s.Require().NoError(err)

		target, err := reviewmodels.NewTarget(review.ID, party.ID, "NAME_SCREENING")
		s.Require().NoError(err)
		_, err = s.reviews.InsertTargetIfAbsent(s.ctx, target)
		s.Require().NoError(err)
		_, err = s.reviews.InsertMemberIfAbsent(s.ctx, reviewmodels.ReviewMember{
			ReviewID:      review.ID,
			MemberPartyID: member.ID,
			RelationType:  "UBO",
			AddedAt:       s.now,
		})
		s.Require().NoError(err)

		summary, err := s.service.Summary(s.ctx, party.ID)
		s.Require().NoError(err)

		s.Require().Len(summary.Hits, 1)
		s.Equal(hit.ID, summary.Hits[0].ID)

		s.Require().Len(summary.Reviews, 1)
		view := summary.Reviews[0]
		s.Equal(review.ID, view.Review.ID)
		s.Require().Len(view.Targets, 1)
		s.Equal("NAME_SCREENING", view.Targets[0].BlockKind)
		s.Equal(reviewmodels.TargetPending, view.Targets[0].State)
		s.Require().Len(view.Members, 1)
		s.Equal(member.ID, view.Members[0].MemberPartyID)
		s.Equal("UBO", view.Members[0].RelationType)
	})

	s.Run("reviews pivoting on other parties are excluded", func() {
		party := s.seedParty()
		other := s.seedParty()

		hit, err := hitmodels.New(other.ID, "SANCTIONS", nil, s.now)
		s.Require().NoError(err)
		s.Require().NoError(s.hits.Insert(s.ctx, hit))
		_, err = s.reviews.InsertOrGetReview(s.ctx, reviewmodels.NewReview(hit.ID, other.ID, s.now))
		s.Require().NoError(err)

		summary, err := s.service.Summary(s.ctx, party.ID)
		s.Require().NoError(err)
		s.Empty(summary.Reviews)
		s.Empty(summary.Hits)
	})
}
