package store

import (
	"context"

	"caseflow/internal/party/models"
	id "caseflow/pkg/domain"
)

// Store is interface-driven so domain logic stays testable and persistence
// can swap between in-memory and PostgreSQL without rewiring business code.
type Store interface {
	Insert(ctx context.Context, party models.Party) error
	FindByID(ctx context.Context, partyID id.PartyID) (models.Party, error)
}
