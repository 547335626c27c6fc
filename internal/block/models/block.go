package models

import (
	"encoding/json"
	"strings"
	"time"

	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// Block is the logical compliance decision slot for a (party, kind) pair.
// Unique on (PartyID, Kind); its version chain holds the actual decisions.
type Block struct {
	ID      id.BlockID
	PartyID id.PartyID
	Kind    string
}

func NewBlock(partyID id.PartyID, kind string) (Block, error) {
	if strings.TrimSpace(kind) == "" {
		return Block{}, dErrors.New(dErrors.CodeValidation, "block kind is required")
	}
	return Block{ID: id.NewBlockID(), PartyID: partyID, Kind: kind}, nil
}

// VersionStatus is the closed set of block version states. Unrecognized
// values are rejected at the boundary rather than passed through untyped.
type VersionStatus string

const (
	StatusInReview     VersionStatus = "IN_REVIEW"
	StatusPendingAgent VersionStatus = "PENDING_AGENT"
	StatusApproved     VersionStatus = "APPROVED"
	StatusRejected     VersionStatus = "REJECTED"
)

// ParseVersionStatus validates an inbound status string.
func ParseVersionStatus(s string) (VersionStatus, error) {
	switch VersionStatus(s) {
	case StatusInReview, StatusPendingAgent, StatusApproved, StatusRejected:
		return VersionStatus(s), nil
	default:
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown block version status %q", s)
	}
}

// Terminal reports whether the status may close a version.
func (s VersionStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// BlockVersion is one temporally-scoped decision instance within a Block's
// history. At most one version per block is open (ValidTo == nil) at any
// committed point; VersionNo runs 1..N per block with no gaps or reuse.
type BlockVersion struct {
	ID        id.BlockVersionID
	BlockID   id.BlockID
	VersionNo int
	ValidFrom time.Time
	ValidTo   *time.Time
	Status    VersionStatus
	Payload   json.RawMessage
}

// NewVersion opens version number versionNo. The caller owns the "no open
// version exists" check; the store's constraints back it up.
func NewVersion(blockID id.BlockID, versionNo int, now time.Time) BlockVersion {
	return BlockVersion{
		ID:        id.NewBlockVersionID(),
		BlockID:   blockID,
		VersionNo: versionNo,
		ValidFrom: now,
		Status:    StatusInReview,
	}
}

// Open reports whether the version is still the live one for its block.
func (v BlockVersion) Open() bool { return v.ValidTo == nil }
