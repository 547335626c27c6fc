package models

import (
	"time"

	blockmodels "caseflow/internal/block/models"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// ReviewInstance is the case opened in response to a Hit. At most one review
// exists per hit; ClosedAt is derived from target completion.
type ReviewInstance struct {
	ID           id.ReviewID
	HitID        id.HitID
	PivotPartyID id.PartyID
	StartedAt    time.Time
	ClosedAt     *time.Time
	Notes        string
}

func NewReview(hitID id.HitID, pivotPartyID id.PartyID, now time.Time) ReviewInstance {
	return ReviewInstance{
		ID:           id.NewReviewID(),
		HitID:        hitID,
		PivotPartyID: pivotPartyID,
		StartedAt:    now,
	}
}

// TargetState is the closed set of review target states. Transitions are
// PENDING to DONE only, never reversed.
type TargetState string

const (
	TargetPending TargetState = "PENDING"
	TargetDone    TargetState = "DONE"
)

// TargetID is the composite key of a review target.
type TargetID struct {
	ReviewID      id.ReviewID
	TargetPartyID id.PartyID
	BlockKind     string
}

// ReviewTarget is a (party, kind) pair within a review that must reach a
// finalized block version before the review can close.
type ReviewTarget struct {
	TargetID
	BlockVersionID *id.BlockVersionID
	State          TargetState
	FinalStatus    blockmodels.VersionStatus
	FinalizedAt    *time.Time
}

func NewTarget(reviewID id.ReviewID, targetPartyID id.PartyID, blockKind string) (ReviewTarget, error) {
	if blockKind == "" {
		return ReviewTarget{}, dErrors.New(dErrors.CodeValidation, "block kind is required")
	}
	return ReviewTarget{
		TargetID: TargetID{
			ReviewID:      reviewID,
			TargetPartyID: targetPartyID,
			BlockKind:     blockKind,
		},
		State: TargetPending,
	}, nil
}

// ReviewMember records a party swept into a review through a relation.
// Append-only roster, unique on (ReviewID, MemberPartyID, RelationType).
type ReviewMember struct {
	ReviewID      id.ReviewID
	MemberPartyID id.PartyID
	RelationType  string
	AddedAt       time.Time
}

// RelationTypeBlockScope declares which block kinds a relation type pulls
// into scope. Read-only policy data for target derivation.
type RelationTypeBlockScope struct {
	RelationType string
	BlockKind    string
	IsRequired   bool
	PolicyCode   string
}
