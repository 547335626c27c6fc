package models

import (
	"strings"
	"time"

	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// Party is anyone under compliance review: a person, an organisation, or an
// external system's counterpart (ExternalRef). The ID is immutable once
// assigned and UpdatedAt is strictly non-decreasing.
type Party struct {
	ID          id.PartyID
	Type        string
	SubType     string
	ExternalRef string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// New assigns identity and timestamps explicitly so callers (and tests) see
// the final record before any store interaction.
func New(partyType, subType, externalRef string, now time.Time) (Party, error) {
	if strings.TrimSpace(partyType) == "" {
		return Party{}, dErrors.New(dErrors.CodeValidation, "party type is required")
	}
	return Party{
		ID:          id.NewPartyID(),
		Type:        partyType,
		SubType:     subType,
		ExternalRef: externalRef,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
