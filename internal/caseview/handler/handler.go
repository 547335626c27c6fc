package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	caseview "caseflow/internal/caseview/service"
	"caseflow/internal/platform/middleware"
	"caseflow/internal/transport/http/shared"
	id "caseflow/pkg/domain"
)

// Service defines the interface for the aggregated case view.
type Service interface {
	Summary(ctx context.Context, partyID id.PartyID) (caseview.CaseSummary, error)
}

// Handler wires the case view endpoint to the caseview service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a caseview handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the case view endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/parties/{partyID}/kyc360", h.HandleSummary)
}

// HandleSummary handles GET /api/parties/{partyID}/kyc360 requests.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	start := time.Now()

	partyID, err := id.ParsePartyID(chi.URLParam(r, "partyID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	summary, err := h.service.Summary(ctx, partyID)
	if err != nil {
		h.logger.ErrorContext(ctx, "case summary failed",
			"request_id", requestID,
			"party_id", partyID,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "case summary served",
		"request_id", requestID,
		"party_id", partyID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	shared.WriteJSON(w, http.StatusOK, FromSummary(summary))
}
