package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	blockmodels "caseflow/internal/block/models"
	"caseflow/internal/platform/middleware"
	"caseflow/internal/transport/http/shared"
	id "caseflow/pkg/domain"
)

// Service defines the interface for block operations.
type Service interface {
	RequestReview(ctx context.Context, partyID id.PartyID, kind string) error
	FinalizeVersion(ctx context.Context, versionID id.BlockVersionID, finalStatus blockmodels.VersionStatus) error
}

// Handler wires block endpoints to the block service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a block handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts block endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/blocks/review", h.HandleRequestReview)
	r.Post("/api/blocks/versions/{versionID}/finalize", h.HandleFinalizeVersion)
}

// HandleRequestReview handles POST /api/blocks/review requests. The block
// version is opened asynchronously, so the endpoint acknowledges with 202.
func (h *Handler) HandleRequestReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, err := shared.DecodeValid[*RequestReviewRequest](r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid request review request",
			"request_id", requestID,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	if err := h.service.RequestReview(ctx, req.ParsedPartyID(), req.Kind); err != nil {
		h.logger.ErrorContext(ctx, "request review failed",
			"request_id", requestID,
			"party_id", req.PartyID,
			"kind", req.Kind,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "block review requested",
		"request_id", requestID,
		"party_id", req.PartyID,
		"kind", req.Kind,
	)
	shared.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// HandleFinalizeVersion handles POST /api/blocks/versions/{versionID}/finalize.
func (h *Handler) HandleFinalizeVersion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	reviewerID := middleware.GetReviewerID(ctx)
	start := time.Now()

	versionID, err := id.ParseBlockVersionID(chi.URLParam(r, "versionID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	req, err := shared.DecodeValid[*FinalizeVersionRequest](r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid finalize request",
			"request_id", requestID,
			"block_version_id", versionID,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	if err := h.service.FinalizeVersion(ctx, versionID, req.ParsedStatus()); err != nil {
		h.logger.ErrorContext(ctx, "finalize version failed",
			"request_id", requestID,
			"block_version_id", versionID,
			"final_status", req.FinalStatus,
			"reviewer_id", reviewerID,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "block version finalized",
		"request_id", requestID,
		"block_version_id", versionID,
		"final_status", req.FinalStatus,
		"reviewer_id", reviewerID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	shared.WriteJSON(w, http.StatusOK, map[string]string{
		"block_version_id": versionID.String(),
		"final_status":     string(req.ParsedStatus()),
	})
}
