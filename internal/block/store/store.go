package store

import (
	"context"

	"caseflow/internal/block/models"
	id "caseflow/pkg/domain"
)

// Store owns blocks and their version chains. Implementations must uphold
// two constraints atomically:
//
//   - blocks are unique on (partyID, kind): InsertOrGetBlock never creates a
//     duplicate, it returns the existing row to the losing writer;
//   - at most one version per block has ValidTo == nil, and (blockID,
//     versionNo) is unique: InsertVersion returns sentinel.ErrConflict when
//     either would be violated, so the caller can re-read and retry.
type Store interface {
	InsertOrGetBlock(ctx context.Context, block models.Block) (models.Block, error)
	FindBlock(ctx context.Context, partyID id.PartyID, kind string) (models.Block, error)
	FindBlockByID(ctx context.Context, blockID id.BlockID) (models.Block, error)
	ListBlocksByParty(ctx context.Context, partyID id.PartyID) ([]models.Block, error)

	OpenVersion(ctx context.Context, blockID id.BlockID) (models.BlockVersion, error)
	MaxVersionNo(ctx context.Context, blockID id.BlockID) (int, error)
	InsertVersion(ctx context.Context, version models.BlockVersion) error
	FindVersion(ctx context.Context, versionID id.BlockVersionID) (models.BlockVersion, error)
	// CloseVersion sets ValidTo/Status if and only if the version is still
	// open. Returns sentinel.ErrConflict when it was closed concurrently.
	CloseVersion(ctx context.Context, version models.BlockVersion) error
	ListVersions(ctx context.Context, blockID id.BlockID) ([]models.BlockVersion, error)
}
