package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	partyservice "caseflow/internal/party/service"
	partystore "caseflow/internal/party/store"
	id "caseflow/pkg/domain"
)

type PartyHandlerSuite struct {
	suite.Suite
	router chi.Router
}

func TestPartyHandlerSuite(t *testing.T) {
	suite.Run(t, new(PartyHandlerSuite))
}

func (s *PartyHandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := partyservice.New(partystore.NewMemory(), logger)
	s.router = chi.NewRouter()
	New(service, logger).Register(s.router)
}

func (s *PartyHandlerSuite) do(method, path string, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *PartyHandlerSuite) TestHandleCreate() {
	s.Run("creates a party", func() {
		w := s.do(http.MethodPost, "/api/parties", `{"type":"ORGANISATION","sub_type":"LLC","external_ref":"crm-42"}`)
		require.Equal(s.T(), http.StatusCreated, w.Code)

		var resp PartyResponse
		require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(s.T(), "ORGANISATION", resp.Type)
		assert.Equal(s.T(), "LLC", resp.SubType)
		assert.Equal(s.T(), "crm-42", resp.ExternalRef)
		assert.NotEmpty(s.T(), resp.CreatedAt)

		_, err := id.ParsePartyID(resp.ID)
		assert.NoError(s.T(), err, "response must carry a valid party id")
	})

	s.Run("missing type is rejected", func() {
		w := s.do(http.MethodPost, "/api/parties", `{"sub_type":"LLC"}`)
		assert.Equal(s.T(), http.StatusUnprocessableEntity, w.Code)
	})

	s.Run("unknown fields are rejected", func() {
		w := s.do(http.MethodPost, "/api/parties", `{"type":"PERSON","surprise":true}`)
		assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	})

	s.Run("malformed body is rejected", func() {
		w := s.do(http.MethodPost, "/api/parties", `{"type":`)
		assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	})
}

func (s *PartyHandlerSuite) TestHandleGet() {
	s.Run("returns the created party", func() {
		created := s.do(http.MethodPost, "/api/parties", `{"type":"PERSON"}`)
		require.Equal(s.T(), http.StatusCreated, created.Code)
		var resp PartyResponse
		require.NoError(s.T(), json.Unmarshal(created.Body.Bytes(), &resp))

		w := s.do(http.MethodGet, "/api/parties/"+resp.ID, "")
		require.Equal(s.T(), http.StatusOK, w.Code)

		var got PartyResponse
		require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(s.T(), resp, got)
	})

	s.Run("unknown party is 404", func() {
		w := s.do(http.MethodGet, "/api/parties/"+id.NewPartyID().String(), "")
		assert.Equal(s.T(), http.StatusNotFound, w.Code)
	})

	s.Run("malformed id is rejected before lookup", func() {
		w := s.do(http.MethodGet, "/api/parties/not-a-uuid", "")
		assert.Equal(s.T(), http.StatusUnprocessableEntity, w.Code)
	})
}
