package eventbus

import (
	"time"

	id "caseflow/pkg/domain"
)

type Type string

const (
	TypeHitQualified         Type = "hit_qualified"
	TypeBlockReviewRequested Type = "block_review_requested"
	TypeBlockVersionFinal    Type = "block_version_finalized"
)

// Event is the envelope delivered to subscribers. Data holds one of the
// payload structs below.
type Event struct {
	Type       Type
	OccurredAt time.Time
	Data       any
}

func New(eventType Type, data any) Event {
	return Event{
		Type:       eventType,
		OccurredAt: time.Now(),
		Data:       data,
	}
}

// HitQualified is the causal chain's first event: a qualifying signal was
// recorded for a party.
type HitQualified struct {
	HitID   id.HitID
	PartyID id.PartyID
	HitType string
}

// BlockReviewRequested asks the block version manager to ensure an open
// decision version exists for (party, kind).
type BlockReviewRequested struct {
	PartyID id.PartyID
	Kind    string
}

// BlockVersionFinalized announces that a decision version was closed with a
// terminal status. Consumers must treat delivery as at-least-once and key
// idempotency on BlockVersionID.
type BlockVersionFinalized struct {
	BlockVersionID id.BlockVersionID
	PartyID        id.PartyID
	Kind           string
	FinalStatus    string
}
