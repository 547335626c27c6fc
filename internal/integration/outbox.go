// Package integration propagates finalized block versions to the downstream
// system. A bus listener writes one outbox record per BlockVersionFinalized
// (upsert by block version id, so redelivery is absorbed), and the relay
// drains unpublished records to Kafka at-least-once.
package integration

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "caseflow/pkg/domain"
)

// Record is one pending downstream notification. BlockVersionID is the
// idempotency key end to end: the outbox is unique on it and the downstream
// consumer upserts by it.
type Record struct {
	ID             uuid.UUID
	BlockVersionID id.BlockVersionID
	PartyID        id.PartyID
	Kind           string
	FinalStatus    string
	CreatedAt      time.Time
	PublishedAt    *time.Time
}

// Store is the outbox. Append is idempotent on BlockVersionID.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Unpublished(ctx context.Context, limit int) ([]Record, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}
