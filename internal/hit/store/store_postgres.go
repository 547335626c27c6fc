package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"caseflow/internal/hit/models"
	id "caseflow/pkg/domain"
	"caseflow/pkg/sentinel"
	txcontext "caseflow/pkg/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Insert(ctx context.Context, hit models.Hit) error {
	query := `
		INSERT INTO hits (id, party_id, hit_type, occurred_at, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(hit.ID), uuid.UUID(hit.PartyID), hit.HitType,
		hit.OccurredAt, []byte(hit.Payload), string(hit.Status),
	)
	if err != nil {
		return fmt.Errorf("insert hit: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, hitID id.HitID) (models.Hit, error) {
	query := `
		SELECT id, party_id, hit_type, occurred_at, payload, status
		FROM hits WHERE id = $1
	`
	h, err := scanHit(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(hitID)))
	if err == sql.ErrNoRows {
		return models.Hit{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Hit{}, fmt.Errorf("find hit: %w", err)
	}
	return h, nil
}

func (s *PostgresStore) ListByParty(ctx context.Context, partyID id.PartyID) ([]models.Hit, error) {
	query := `
		SELECT id, party_id, hit_type, occurred_at, payload, status
		FROM hits WHERE party_id = $1 ORDER BY occurred_at
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(partyID))
	if err != nil {
		return nil, fmt.Errorf("list hits: %w", err)
	}
	defer rows.Close()

	var out []models.Hit
	for rows.Next() {
		h, err := scanHit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHit(row rowScanner) (models.Hit, error) {
	var (
		h            models.Hit
		hitID, party uuid.UUID
		payload      []byte
		status       string
	)
	if err := row.Scan(&hitID, &party, &h.HitType, &h.OccurredAt, &payload, &status); err != nil {
		return models.Hit{}, err
	}
	h.ID = id.HitID(hitID)
	h.PartyID = id.PartyID(party)
	h.Payload = payload
	h.Status = models.Status(status)
	return h, nil
}
