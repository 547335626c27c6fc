// Package domain holds the typed identifiers shared across caseflow areas.
// Typed IDs prevent cross-entity assignment at compile time, and the Parse*
// functions enforce the boundary invariant that every ID is a valid,
// non-nil UUID.
package domain

import (
	"github.com/google/uuid"

	dErrors "caseflow/pkg/domain-errors"
)

type (
	PartyID        uuid.UUID
	BlockID        uuid.UUID
	BlockVersionID uuid.UUID
	HitID          uuid.UUID
	ReviewID       uuid.UUID
)

func (id PartyID) String() string        { return uuid.UUID(id).String() }
func (id BlockID) String() string        { return uuid.UUID(id).String() }
func (id BlockVersionID) String() string { return uuid.UUID(id).String() }
func (id HitID) String() string          { return uuid.UUID(id).String() }
func (id ReviewID) String() string       { return uuid.UUID(id).String() }

func (id PartyID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id BlockID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id BlockVersionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id HitID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id ReviewID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }

// NewPartyID assigns a fresh identity. Identity assignment is an explicit
// factory step so tests can assert on known ids before any store interaction.
func NewPartyID() PartyID               { return PartyID(uuid.New()) }
func NewBlockID() BlockID               { return BlockID(uuid.New()) }
func NewBlockVersionID() BlockVersionID { return BlockVersionID(uuid.New()) }
func NewHitID() HitID                   { return HitID(uuid.New()) }
func NewReviewID() ReviewID             { return ReviewID(uuid.New()) }

func ParsePartyID(s string) (PartyID, error) {
	u, err := parseUUID(s, "party id")
	return PartyID(u), err
}

func ParseBlockVersionID(s string) (BlockVersionID, error) {
	u, err := parseUUID(s, "block version id")
	return BlockVersionID(u), err
}

func ParseHitID(s string) (HitID, error) {
	u, err := parseUUID(s, "hit id")
	return HitID(u), err
}

func ParseReviewID(s string) (ReviewID, error) {
	u, err := parseUUID(s, "review id")
	return ReviewID(u), err
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "%s is required", what)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid "+what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "%s must not be the nil UUID", what)
	}
	return u, nil
}
