package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/party/models"
	"caseflow/internal/platform/middleware"
	"caseflow/internal/transport/http/shared"
	id "caseflow/pkg/domain"
)

// Service defines the interface for party operations.
type Service interface {
	Create(ctx context.Context, partyType, subType, externalRef string) (models.Party, error)
	Get(ctx context.Context, partyID id.PartyID) (models.Party, error)
}

// Handler wires party endpoints to the party service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a party handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts party endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/parties", h.HandleCreate)
	r.Get("/api/parties/{partyID}", h.HandleGet)
}

// HandleCreate handles POST /api/parties requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	start := time.Now()

	req, err := shared.DecodeValid[*CreatePartyRequest](r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid create party request",
			"request_id", requestID,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	party, err := h.service.Create(ctx, req.Type, req.SubType, req.ExternalRef)
	if err != nil {
		h.logger.ErrorContext(ctx, "party creation failed",
			"request_id", requestID,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "party created",
		"request_id", requestID,
		"party_id", party.ID,
		"party_type", party.Type,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	shared.WriteJSON(w, http.StatusCreated, FromParty(party))
}

// HandleGet handles GET /api/parties/{partyID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	partyID, err := id.ParsePartyID(chi.URLParam(r, "partyID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	party, err := h.service.Get(ctx, partyID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, FromParty(party))
}
