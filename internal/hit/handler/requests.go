package handler

import (
	"encoding/json"
	"strings"

	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// QualifiedHitRequest is the HTTP request body for POST /api/hits/qualified.
// Only hits already qualified as true positives enter the workflow.
type QualifiedHitRequest struct {
	PartyID string          `json:"party_id"`
	HitType string          `json:"hit_type"`
	Payload json.RawMessage `json:"payload"`

	parsedPartyID id.PartyID
}

// Validate validates and parses the request.
func (r *QualifiedHitRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	partyID, err := id.ParsePartyID(strings.TrimSpace(r.PartyID))
	if err != nil {
		return err
	}
	r.parsedPartyID = partyID

	r.HitType = strings.TrimSpace(r.HitType)
	if r.HitType == "" {
		return dErrors.New(dErrors.CodeValidation, "hit_type is required")
	}
	if len(r.Payload) > 1<<20 {
		return dErrors.New(dErrors.CodeValidation, "payload must be at most 1MiB")
	}
	return nil
}

// ParsedPartyID returns the party ID parsed during validation.
func (r *QualifiedHitRequest) ParsedPartyID() id.PartyID { return r.parsedPartyID }
