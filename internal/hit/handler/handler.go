package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/hit/models"
	"caseflow/internal/platform/middleware"
	"caseflow/internal/transport/http/shared"
	id "caseflow/pkg/domain"
)

// Service defines the interface for hit intake.
type Service interface {
	ReceiveQualifiedHit(ctx context.Context, partyID id.PartyID, hitType string, payload json.RawMessage) (models.Hit, error)
}

// Handler wires hit intake endpoints to the hit service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a hit handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts hit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/hits/qualified", h.HandleQualifiedHit)
}

// HitResponse is the wire representation of an accepted hit.
type HitResponse struct {
	ID         string `json:"id"`
	PartyID    string `json:"party_id"`
	HitType    string `json:"hit_type"`
	Status     string `json:"status"`
	OccurredAt string `json:"occurred_at"`
}

// HandleQualifiedHit handles POST /api/hits/qualified requests.
func (h *Handler) HandleQualifiedHit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	start := time.Now()

	req, err := shared.DecodeValid[*QualifiedHitRequest](r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid qualified hit request",
			"request_id", requestID,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	hit, err := h.service.ReceiveQualifiedHit(ctx, req.ParsedPartyID(), req.HitType, req.Payload)
	if err != nil {
		h.logger.ErrorContext(ctx, "qualified hit intake failed",
			"request_id", requestID,
			"party_id", req.PartyID,
			"hit_type", req.HitType,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "qualified hit accepted",
		"request_id", requestID,
		"hit_id", hit.ID,
		"party_id", hit.PartyID,
		"hit_type", hit.HitType,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	shared.WriteJSON(w, http.StatusAccepted, HitResponse{
		ID:         hit.ID.String(),
		PartyID:    hit.PartyID.String(),
		HitType:    hit.HitType,
		Status:     string(hit.Status),
		OccurredAt: hit.OccurredAt.UTC().Format(time.RFC3339Nano),
	})
}
