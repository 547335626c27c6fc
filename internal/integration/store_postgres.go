package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	id "caseflow/pkg/domain"
)

// PostgresStore backs the outbox with a pgx pool. The relay polls this table
// continuously, so it gets its own pool tuned independently of the request
// path's database handle.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Append(ctx context.Context, rec Record) error {
	query := `
		INSERT INTO integration_outbox (id, block_version_id, party_id, kind, final_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (block_version_id) DO NOTHING
	`
	_, err := s.pool.Exec(ctx, query,
		rec.ID, uuid.UUID(rec.BlockVersionID), uuid.UUID(rec.PartyID),
		rec.Kind, rec.FinalStatus, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append outbox record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Unpublished(ctx context.Context, limit int) ([]Record, error) {
	query := `
		SELECT id, block_version_id, party_id, kind, final_status, created_at
		FROM integration_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list unpublished: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var versionID, partyID uuid.UUID
		if err := rows.Scan(&rec.ID, &versionID, &partyID, &rec.Kind, &rec.FinalStatus, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox record: %w", err)
		}
		rec.BlockVersionID = id.BlockVersionID(versionID)
		rec.PartyID = id.PartyID(partyID)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE integration_outbox SET published_at = $2 WHERE id = ANY($1) AND published_at IS NULL`
	if _, err := s.pool.Exec(ctx, query, ids, at); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}
