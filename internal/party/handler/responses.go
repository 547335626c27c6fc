package handler

import (
	"time"

	"caseflow/internal/party/models"
)

// PartyResponse is the wire representation of a party.
type PartyResponse struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	SubType     string `json:"sub_type,omitempty"`
	ExternalRef string `json:"external_ref,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// FromParty converts a domain party into its wire form.
func FromParty(p models.Party) PartyResponse {
	return PartyResponse{
		ID:          p.ID.String(),
		Type:        p.Type,
		SubType:     p.SubType,
		ExternalRef: p.ExternalRef,
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}
