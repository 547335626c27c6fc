package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"caseflow/internal/party/models"
	id "caseflow/pkg/domain"
	"caseflow/pkg/sentinel"
	txcontext "caseflow/pkg/tx"
)

// PostgresStore persists parties in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Insert(ctx context.Context, party models.Party) error {
	query := `
		INSERT INTO parties (id, party_type, sub_type, external_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(party.ID), party.Type, party.SubType, party.ExternalRef,
		party.CreatedAt, party.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert party: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, partyID id.PartyID) (models.Party, error) {
	query := `
		SELECT id, party_type, sub_type, external_ref, created_at, updated_at
		FROM parties WHERE id = $1
	`
	var (
		p   models.Party
		raw uuid.UUID
	)
	err := s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(partyID)).Scan(
		&raw, &p.Type, &p.SubType, &p.ExternalRef, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return models.Party{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Party{}, fmt.Errorf("find party: %w", err)
	}
	p.ID = id.PartyID(raw)
	return p, nil
}
