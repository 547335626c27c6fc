//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"caseflow/internal/block/models"
	"caseflow/internal/block/store"
	partymodels "caseflow/internal/party/models"
	partystore "caseflow/internal/party/store"
	id "caseflow/pkg/domain"
	"caseflow/pkg/sentinel"
	"caseflow/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	parties  *partystore.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.parties = partystore.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "block_versions", "blocks", "parties")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) seedParty() id.PartyID {
	party, err := partymodels.New("PERSON", "", "", time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.parties.Insert(context.Background(), party))
	return party.ID
}

// TestConcurrentBlockCreation verifies that concurrent InsertOrGetBlock
// calls for the same (party, kind) converge on a single row.
func (s *PostgresStoreSuite) TestConcurrentBlockCreation() {
	ctx := context.Background()
	partyID := s.seedParty()
	const goroutines = 50

	var wg sync.WaitGroup
	blockIDs := make([]id.BlockID, goroutines)
	errs := make([]error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			block := models.Block{ID: id.BlockID(uuid.New()), PartyID: partyID, Kind: "NAME_SCREENING"}
			got, err := s.store.InsertOrGetBlock(ctx, block)
			blockIDs[i], errs[i] = got.ID, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < goroutines; i++ {
		s.Require().NoError(errs[i])
		s.Equal(blockIDs[0], blockIDs[i], "all callers must see the same block")
	}
}

// TestConcurrentOpenVersionViolation verifies the partial unique index:
// exactly one of many concurrent open-version inserts succeeds.
func (s *PostgresStoreSuite) TestConcurrentOpenVersionViolation() {
	ctx := context.Background()
	partyID := s.seedParty()

	block, err := s.store.InsertOrGetBlock(ctx, models.Block{
		ID: id.BlockID(uuid.New()), PartyID: partyID, Kind: "NAME_SCREENING",
	})
	s.Require().NoError(err)

	const goroutines = 50
	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(versionNo int) {
			defer wg.Done()
			err := s.store.InsertVersion(ctx, models.NewVersion(block.ID, versionNo, time.Now().UTC()))
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrConflict) {
				conflictCount.Add(1)
			}
		}(i + 1)
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one open version insert should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should conflict")

	open, err := s.store.OpenVersion(ctx, block.ID)
	s.Require().NoError(err)
	s.True(open.Open())
}

// TestVersionNoReuseRejected verifies UNIQUE (block_id, version_no) even
// after the previous holder of the number is closed.
func (s *PostgresStoreSuite) TestVersionNoReuseRejected() {
	ctx := context.Background()
	partyID := s.seedParty()

	block, err := s.store.InsertOrGetBlock(ctx, models.Block{
		ID: id.BlockID(uuid.New()), PartyID: partyID, Kind: "NAME_SCREENING",
	})
	s.Require().NoError(err)

	v1 := models.NewVersion(block.ID, 1, time.Now().UTC())
	s.Require().NoError(s.store.InsertVersion(ctx, v1))

	now := time.Now().UTC()
	v1.ValidTo = &now
	v1.Status = models.StatusApproved
	s.Require().NoError(s.store.CloseVersion(ctx, v1))

	err = s.store.InsertVersion(ctx, models.NewVersion(block.ID, 1, time.Now().UTC()))
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	s.Require().NoError(s.store.InsertVersion(ctx, models.NewVersion(block.ID, 2, time.Now().UTC())))
}

// TestConcurrentClose verifies the close compare-and-set: one writer wins,
// the rest see a conflict, and the committed status is the winner's.
func (s *PostgresStoreSuite) TestConcurrentClose() {
	ctx := context.Background()
	partyID := s.seedParty()

	block, err := s.store.InsertOrGetBlock(ctx, models.Block{
		ID: id.BlockID(uuid.New()), PartyID: partyID, Kind: "NAME_SCREENING",
	})
	s.Require().NoError(err)

	version := models.NewVersion(block.ID, 1, time.Now().UTC())
	s.Require().NoError(s.store.InsertVersion(ctx, version))

	const goroutines = 20
	var wg sync.WaitGroup
	var successCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := version
			now := time.Now().UTC()
			v.ValidTo = &now
			v.Status = models.StatusApproved
			if err := s.store.CloseVersion(ctx, v); err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one close should win")

	closed, err := s.store.FindVersion(ctx, version.ID)
	s.Require().NoError(err)
	s.False(closed.Open())
	s.Equal(models.StatusApproved, closed.Status)
}

func (s *PostgresStoreSuite) TestVersionRoundTrip() {
	ctx := context.Background()
	partyID := s.seedParty()

	block, err := s.store.InsertOrGetBlock(ctx, models.Block{
		ID: id.BlockID(uuid.New()), PartyID: partyID, Kind: "PEP_SCREENING",
	})
	s.Require().NoError(err)

	version := models.NewVersion(block.ID, 1, time.Now().UTC())
	version.Payload = []byte(`{"screened_name":"ACME"}`)
	s.Require().NoError(s.store.InsertVersion(ctx, version))

	got, err := s.store.FindVersion(ctx, version.ID)
	s.Require().NoError(err)
	s.Equal(version.ID, got.ID)
	s.Equal(1, got.VersionNo)
	s.Equal(models.StatusInReview, got.Status)
	s.JSONEq(`{"screened_name":"ACME"}`, string(got.Payload))

	versions, err := s.store.ListVersions(ctx, block.ID)
	s.Require().NoError(err)
	s.Len(versions, 1)
}
