package models

import (
	"encoding/json"
	"strings"
	"time"

	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// Status of a hit. Only qualified hits enter this system; disqualification
// happens upstream.
type Status string

const StatusQualifiedTrue Status = "QUALIFIED_TRUE"

// Hit is a qualifying compliance signal about a party. Immutable after
// creation in this scope.
type Hit struct {
	ID         id.HitID
	PartyID    id.PartyID
	HitType    string
	OccurredAt time.Time
	Payload    json.RawMessage
	Status     Status
}

func New(partyID id.PartyID, hitType string, payload json.RawMessage, now time.Time) (Hit, error) {
	if strings.TrimSpace(hitType) == "" {
		return Hit{}, dErrors.New(dErrors.CodeValidation, "hit type is required")
	}
	return Hit{
		ID:         id.NewHitID(),
		PartyID:    partyID,
		HitType:    hitType,
		OccurredAt: now,
		Payload:    payload,
		Status:     StatusQualifiedTrue,
	}, nil
}
