package store

import (
	"context"

	"caseflow/internal/hit/models"
	id "caseflow/pkg/domain"
)

type Store interface {
	Insert(ctx context.Context, hit models.Hit) error
	FindByID(ctx context.Context, hitID id.HitID) (models.Hit, error)
	ListByParty(ctx context.Context, partyID id.PartyID) ([]models.Hit, error)
}
