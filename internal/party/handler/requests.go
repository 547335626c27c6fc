package handler

import (
	"strings"

	dErrors "caseflow/pkg/domain-errors"
)

// CreatePartyRequest is the HTTP request body for POST /api/parties.
type CreatePartyRequest struct {
	Type        string `json:"type"`
	SubType     string `json:"sub_type"`
	ExternalRef string `json:"external_ref"`
}

// Validate checks the request before it reaches the service.
func (r *CreatePartyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Type = strings.TrimSpace(r.Type)
	if r.Type == "" {
		return dErrors.New(dErrors.CodeValidation, "type is required")
	}
	if len(r.Type) > 64 || len(r.SubType) > 64 {
		return dErrors.New(dErrors.CodeValidation, "type and sub_type must be at most 64 characters")
	}
	if len(r.ExternalRef) > 256 {
		return dErrors.New(dErrors.CodeValidation, "external_ref must be at most 256 characters")
	}
	r.SubType = strings.TrimSpace(r.SubType)
	r.ExternalRef = strings.TrimSpace(r.ExternalRef)
	return nil
}
