package handler

import (
	"strings"

	blockmodels "caseflow/internal/block/models"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// RequestReviewRequest is the HTTP request body for POST /api/blocks/review.
type RequestReviewRequest struct {
	PartyID string `json:"party_id"`
	Kind    string `json:"kind"`

	parsedPartyID id.PartyID
}

// Validate validates and parses the request.
func (r *RequestReviewRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	partyID, err := id.ParsePartyID(strings.TrimSpace(r.PartyID))
	if err != nil {
		return err
	}
	r.parsedPartyID = partyID

	r.Kind = strings.TrimSpace(r.Kind)
	if r.Kind == "" {
		return dErrors.New(dErrors.CodeValidation, "kind is required")
	}
	return nil
}

// ParsedPartyID returns the party ID parsed during validation.
func (r *RequestReviewRequest) ParsedPartyID() id.PartyID { return r.parsedPartyID }

// FinalizeVersionRequest is the HTTP request body for
// POST /api/blocks/versions/{versionID}/finalize.
type FinalizeVersionRequest struct {
	FinalStatus string `json:"final_status"`

	parsedStatus blockmodels.VersionStatus
}

// Validate validates and parses the request. The service rejects
// non-terminal statuses as finalize outcomes.
func (r *FinalizeVersionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	status, err := blockmodels.ParseVersionStatus(strings.TrimSpace(r.FinalStatus))
	if err != nil {
		return err
	}
	r.parsedStatus = status
	return nil
}

// ParsedStatus returns the status parsed during validation.
func (r *FinalizeVersionRequest) ParsedStatus() blockmodels.VersionStatus { return r.parsedStatus }
