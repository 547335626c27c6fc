package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	blockmodels "caseflow/internal/block/models"
	blockservice "caseflow/internal/block/service"
	blockstore "caseflow/internal/block/store"
	"caseflow/internal/eventbus"
	partymodels "caseflow/internal/party/models"
	partystore "caseflow/internal/party/store"
	id "caseflow/pkg/domain"
)

type BlockHandlerSuite struct {
	suite.Suite
	ctx     context.Context
	router  chi.Router
	parties *partystore.InMemoryStore
	service *blockservice.Service
}

func TestBlockHandlerSuite(t *testing.T) {
	suite.Run(t, new(BlockHandlerSuite))
}

func (s *BlockHandlerSuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.parties = partystore.NewMemory()
	bus := eventbus.NewBus(logger)
	s.service = blockservice.New(blockstore.NewMemory(), s.parties, bus, logger)
	s.service.RegisterListeners(bus)

	s.router = chi.NewRouter()
	New(s.service, logger).Register(s.router)
}

func (s *BlockHandlerSuite) seedParty() partymodels.Party {
	party, err := partymodels.New("PERSON", "", "", time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.parties.Insert(s.ctx, party))
	return party
}

func (s *BlockHandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *BlockHandlerSuite) TestHandleRequestReview() {
	s.Run("accepted for a known party", func() {
		party := s.seedParty()
		body := fmt.Sprintf(`{"party_id":%q,"kind":"NAME_SCREENING"}`, party.ID)

		w := s.do(http.MethodPost, "/api/blocks/review", body)
		require.Equal(s.T(), http.StatusAccepted, w.Code)

		version, err := s.service.EnsureOpenVersion(s.ctx, party.ID, "NAME_SCREENING")
		require.NoError(s.T(), err)
		assert.Equal(s.T(), 1, version.VersionNo, "the listener already opened version 1")
	})

	s.Run("unknown party is 404", func() {
		body := fmt.Sprintf(`{"party_id":%q,"kind":"NAME_SCREENING"}`, id.NewPartyID())
		w := s.do(http.MethodPost, "/api/blocks/review", body)
		assert.Equal(s.T(), http.StatusNotFound, w.Code)
	})

	s.Run("missing kind is rejected", func() {
		body := fmt.Sprintf(`{"party_id":%q}`, id.NewPartyID())
		w := s.do(http.MethodPost, "/api/blocks/review", body)
		assert.Equal(s.T(), http.StatusUnprocessableEntity, w.Code)
	})

	s.Run("malformed party id is rejected", func() {
		w := s.do(http.MethodPost, "/api/blocks/review", `{"party_id":"nope","kind":"NAME_SCREENING"}`)
		assert.Equal(s.T(), http.StatusUnprocessableEntity, w.Code)
	})
}

func (s *BlockHandlerSuite) TestHandleFinalizeVersion() {
	s.Run("finalizes an open version", func() {
		party := s.seedParty()
		version, err := s.service.EnsureOpenVersion(s.ctx, party.ID, "NAME_SCREENING")
		require.NoError(s.T(), err)

		w := s.do(http.MethodPost,
			"/api/blocks/versions/"+version.ID.String()+"/finalize",
			`{"final_status":"APPROVED"}`)
		require.Equal(s.T(), http.StatusOK, w.Code)

		var resp map[string]string
		require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(s.T(), version.ID.String(), resp["block_version_id"])
		assert.Equal(s.T(), string(blockmodels.StatusApproved), resp["final_status"])
	})

	s.Run("double finalize is a conflict", func() {
		party := s.seedParty()
		version, err := s.service.EnsureOpenVersion(s.ctx, party.ID, "NAME_SCREENING")
		require.NoError(s.T(), err)

		path := "/api/blocks/versions/" + version.ID.String() + "/finalize"
		require.Equal(s.T(), http.StatusOK, s.do(http.MethodPost, path, `{"final_status":"APPROVED"}`).Code)
		assert.Equal(s.T(), http.StatusConflict, s.do(http.MethodPost, path, `{"final_status":"REJECTED"}`).Code)
	})

	s.Run("unknown status is rejected", func() {
		w := s.do(http.MethodPost,
			"/api/blocks/versions/"+id.NewBlockVersionID().String()+"/finalize",
			`{"final_status":"MAYBE"}`)
		assert.Equal(s.T(), http.StatusUnprocessableEntity, w.Code)
	})

	s.Run("non-terminal status is rejected", func() {
		party := s.seedParty()
		version, err := s.service.EnsureOpenVersion(s.ctx, party.ID, "NAME_SCREENING")
		require.NoError(s.T(), err)

		w := s.do(http.MethodPost,
			"/api/blocks/versions/"+version.ID.String()+"/finalize",
			`{"final_status":"IN_REVIEW"}`)
		assert.Equal(s.T(), http.StatusUnprocessableEntity, w.Code)
	})

	s.Run("unknown version is 404", func() {
		w := s.do(http.MethodPost,
			"/api/blocks/versions/"+id.NewBlockVersionID().String()+"/finalize",
			`{"final_status":"APPROVED"}`)
		assert.Equal(s.T(), http.StatusNotFound, w.Code)
	})
}
