package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"caseflow/internal/block/models"
	blockstore "caseflow/internal/block/store"
	"caseflow/internal/eventbus"
	partymodels "caseflow/internal/party/models"
	partystore "caseflow/internal/party/store"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/sentinel"
)

type BlockServiceSuite struct {
	suite.Suite
	blocks  *blockstore.InMemoryStore
	parties *partystore.InMemoryStore
	bus     *eventbus.Bus
	service *Service
	partyID id.PartyID
}

func TestBlockServiceSuite(t *testing.T) {
	suite.Run(t, new(BlockServiceSuite))
}

func (s *BlockServiceSuite) SetupTest() {
	s.blocks = blockstore.NewMemory()
	s.parties = partystore.NewMemory()
	s.bus = eventbus.NewBus(slog.Default())
	s.service = New(s.blocks, s.parties, s.bus, slog.Default())

	party, err := partymodels.New("LEGAL_ENTITY", "LLC", "ext-1", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.parties.Insert(context.Background(), party))
	s.partyID = party.ID
}

// =============================================================================
// EnsureOpenVersion
// =============================================================================

func (s *BlockServiceSuite) TestEnsureOpenVersion() {
	ctx := context.Background()

	s.Run("creates block and first version", func() {
		version, err := s.service.EnsureOpenVersion(ctx, s.partyID, "NAME_SCREENING")
		s.Require().NoError(err)
		s.Equal(1, version.VersionNo)
		s.True(version.Open())
		s.Equal(models.StatusInReview, version.Status)
	})

	s.Run("is idempotent while a version is open", func() {
		first, err := s.service.EnsureOpenVersion(ctx, s.partyID, "NAME_SCREENING")
		s.Require().NoError(err)
		second, err := s.service.EnsureOpenVersion(ctx, s.partyID, "NAME_SCREENING")
		s.Require().NoError(err)
		s.Equal(first.ID, second.ID)
	})

	s.Run("unknown party is rejected", func() {
		_, err := s.service.EnsureOpenVersion(ctx, id.NewPartyID(), "NAME_SCREENING")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("blank kind is rejected", func() {
		_, err := s.service.EnsureOpenVersion(ctx, s.partyID, "  ")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("distinct kinds get distinct blocks", func() {
		a, err := s.service.EnsureOpenVersion(ctx, s.partyID, "NAME_SCREENING")
		s.Require().NoError(err)
		b, err := s.service.EnsureOpenVersion(ctx, s.partyID, "PEP_SCREENING")
		s.Require().NoError(err)
		s.NotEqual(a.BlockID, b.BlockID)
	})
}

func (s *BlockServiceSuite) TestEnsureOpenVersion_Concurrent() {
	ctx := context.Background()
	const writers = 16

	versions := make([]models.BlockVersion, writers)
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			versions[i], errs[i] = s.service.EnsureOpenVersion(ctx, s.partyID, "NAME_SCREENING")
		}()
	}
	wg.Wait()

	// Every caller observed the same open version.
	for i := range writers {
		s.Require().NoError(errs[i])
		s.Equal(versions[0].ID, versions[i].ID)
	}
}

// txState mimics a SQL transaction that becomes unusable after the first
// failed statement, the way postgres aborts a transaction on a unique
// violation.
type txState struct{ aborted bool }

type txStateKey struct{}

type abortingRunner struct{ begun int }

func (r *abortingRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.begun++
	st := &txState{}
	err := fn(context.WithValue(ctx, txStateKey{}, st))
	if err != nil {
		st.aborted = true
	}
	return err
}

// racedStore loses the first InsertVersion to a concurrent writer: it plants
// the winner's row and reports a conflict.
type racedStore struct {
	*blockstore.InMemoryStore
	raced    bool
	winnerID id.BlockVersionID
}

func (r *racedStore) InsertOrGetBlock(ctx context.Context, block models.Block) (models.Block, error) {
	if st, ok := ctx.Value(txStateKey{}).(*txState); ok && st.aborted {
		return models.Block{}, errors.New("current transaction is aborted, commands ignored until end of transaction block")
	}
	return r.InMemoryStore.InsertOrGetBlock(ctx, block)
}

func (r *racedStore) InsertVersion(ctx context.Context, version models.BlockVersion) error {
	if !r.raced {
		r.raced = true
		winner := models.NewVersion(version.BlockID, version.VersionNo, time.Now())
		if err := r.InMemoryStore.InsertVersion(ctx, winner); err != nil {
			return err
		}
		r.winnerID = winner.ID
		return sentinel.ErrConflict
	}
	return r.InMemoryStore.InsertVersion(ctx, version)
}

func (s *BlockServiceSuite) TestEnsureOpenVersion_LostRaceRetriesInFreshUnitOfWork() {
	ctx := context.Background()

	runner := &abortingRunner{}
	blocks := &racedStore{InMemoryStore: s.blocks}
	bus := eventbus.NewBus(slog.Default(), eventbus.WithTxStarter(runner))
	service := New(blocks, s.parties, bus, slog.Default())

	version, err := service.EnsureOpenVersion(ctx, s.partyID, "NAME_SCREENING")
	s.Require().NoError(err)

	// The loser re-read the winner's row rather than erroring, and did so in
	// a second transaction: the first one is aborted after the conflict.
	s.Equal(blocks.winnerID, version.ID)
	s.Equal(2, runner.begun)
}

// =============================================================================
// FinalizeVersion
// =============================================================================

func (s *BlockServiceSuite) TestFinalizeVersion() {
	ctx := context.Background()

	s.Run("closes the version and emits the finalized event", func() {
		var events []eventbus.BlockVersionFinalized
		s.bus.Subscribe(eventbus.TypeBlockVersionFinal, "test", func(_ context.Context, evt eventbus.Event) error {
			events = append(events, evt.Data.(eventbus.BlockVersionFinalized))
			return nil
		})

		version, err := s.service.EnsureOpenVersion(ctx, s.partyID, "NAME_SCREENING")
		s.Require().NoError(err)

		s.Require().NoError(s.service.FinalizeVersion(ctx, version.ID, models.StatusApproved))

		closed, err := s.blocks.FindVersion(ctx, version.ID)
		s.Require().NoError(err)
		s.False(closed.Open())
		s.Equal(models.StatusApproved, closed.Status)
		s.NotNil(closed.ValidTo)

		s.Require().Len(events, 1)
		s.Equal(version.ID, events[0].BlockVersionID)
		s.Equal(s.partyID, events[0].PartyID)
		s.Equal("NAME_SCREENING", events[0].Kind)
		s.Equal(string(models.StatusApproved), events[0].FinalStatus)
	})

	s.Run("next ensure opens the successor version", func() {
		version, err := s.service.EnsureOpenVersion(ctx, s.partyID, "PEP_SCREENING")
		s.Require().NoError(err)
		s.Require().NoError(s.service.FinalizeVersion(ctx, version.ID, models.StatusRejected))

		next, err := s.service.EnsureOpenVersion(ctx, s.partyID, "PEP_SCREENING")
		s.Require().NoError(err)
		s.Equal(version.VersionNo+1, next.VersionNo)
		s.Equal(version.BlockID, next.BlockID)
	})

	s.Run("unknown version is rejected", func() {
		err := s.service.FinalizeVersion(ctx, id.NewBlockVersionID(), models.StatusApproved)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("non-terminal status is rejected", func() {
		version, err := s.service.EnsureOpenVersion(ctx, s.partyID, "ADVERSE_MEDIA")
		s.Require().NoError(err)
		err = s.service.FinalizeVersion(ctx, version.ID, models.StatusInReview)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("double finalize is rejected and emits nothing", func() {
		version, err := s.service.EnsureOpenVersion(ctx, s.partyID, "SANCTIONS")
		s.Require().NoError(err)
		s.Require().NoError(s.service.FinalizeVersion(ctx, version.ID, models.StatusApproved))

		var emitted int
		s.bus.Subscribe(eventbus.TypeBlockVersionFinal, "late", func(_ context.Context, _ eventbus.Event) error {
			emitted++
			return nil
		})

		err = s.service.FinalizeVersion(ctx, version.ID, models.StatusRejected)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyFinalized))
		s.Equal(0, emitted)

		// The stored row keeps its original outcome.
		closed, err := s.blocks.FindVersion(ctx, version.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, closed.Status)
	})
}

// =============================================================================
// RequestReview and the event path
// =============================================================================

func (s *BlockServiceSuite) TestRequestReview() {
	ctx := context.Background()
	s.service.RegisterListeners(s.bus)

	s.Run("opens a version through the listener", func() {
		s.Require().NoError(s.service.RequestReview(ctx, s.partyID, "NAME_SCREENING"))

		block, err := s.blocks.FindBlock(ctx, s.partyID, "NAME_SCREENING")
		s.Require().NoError(err)
		open, err := s.blocks.OpenVersion(ctx, block.ID)
		s.Require().NoError(err)
		s.Equal(1, open.VersionNo)
	})

	s.Run("redelivered request is absorbed", func() {
		s.Require().NoError(s.service.RequestReview(ctx, s.partyID, "NAME_SCREENING"))
		s.Require().NoError(s.service.RequestReview(ctx, s.partyID, "NAME_SCREENING"))

		block, err := s.blocks.FindBlock(ctx, s.partyID, "NAME_SCREENING")
		s.Require().NoError(err)
		versions, err := s.blocks.ListVersions(ctx, block.ID)
		s.Require().NoError(err)
		s.Len(versions, 1)
	})

	s.Run("unknown party is rejected", func() {
		err := s.service.RequestReview(ctx, id.NewPartyID(), "NAME_SCREENING")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("blank kind is rejected", func() {
		err := s.service.RequestReview(ctx, s.partyID, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
