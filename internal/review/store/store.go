package store

import (
	"context"
	"time"

	blockmodels "caseflow/internal/block/models"
	"caseflow/internal/review/models"
	id "caseflow/pkg/domain"
)

// Store owns review instances, their target sets, and the member roster.
// Implementations enforce:
//
//   - one review per hit: InsertOrGetReview returns the existing instance to
//     a losing writer;
//   - targets unique on (reviewID, targetPartyID, blockKind): upsert-if-absent;
//   - target state transitions PENDING to DONE exactly once: CompleteTarget
//     is a compare-and-set that reports whether this call did the flip.
type Store interface {
	InsertOrGetReview(ctx context.Context, review models.ReviewInstance) (models.ReviewInstance, error)
	FindReview(ctx context.Context, reviewID id.ReviewID) (models.ReviewInstance, error)
	FindReviewByHit(ctx context.Context, hitID id.HitID) (models.ReviewInstance, error)
	ListReviewsByPivot(ctx context.Context, pivotPartyID id.PartyID) ([]models.ReviewInstance, error)
	CloseReview(ctx context.Context, reviewID id.ReviewID, closedAt time.Time) error

	InsertTargetIfAbsent(ctx context.Context, target models.ReviewTarget) (bool, error)
	ListTargets(ctx context.Context, reviewID id.ReviewID) ([]models.ReviewTarget, error)
	// PendingTargets returns all PENDING targets matching (party, kind)
	// across reviews.
	PendingTargets(ctx context.Context, targetPartyID id.PartyID, blockKind string) ([]models.ReviewTarget, error)
	CompleteTarget(ctx context.Context, targetID models.TargetID, versionID id.BlockVersionID, finalStatus blockmodels.VersionStatus, finalizedAt time.Time) (bool, error)

	InsertMemberIfAbsent(ctx context.Context, member models.ReviewMember) (bool, error)
	ListMembers(ctx context.Context, reviewID id.ReviewID) ([]models.ReviewMember, error)
}

// ScopeStore reads the relation-scope policy table. Read-only to the core.
type ScopeStore interface {
	ListByRelationTypes(ctx context.Context, relationTypes []string) ([]models.RelationTypeBlockScope, error)
}
