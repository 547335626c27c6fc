package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"caseflow/internal/block/models"
	id "caseflow/pkg/domain"
	"caseflow/pkg/sentinel"
	txcontext "caseflow/pkg/tx"
)

// PostgresStore persists blocks and versions in PostgreSQL. The invariants
// ride on three constraints:
//
//	UNIQUE (party_id, kind)                 on blocks
//	UNIQUE (block_id, version_no)           on block_versions
//	UNIQUE (block_id) WHERE valid_to IS NULL on block_versions (partial index)
//
// A losing concurrent writer sees a 23505 and gets sentinel.ErrConflict.
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

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (s *PostgresStore) InsertOrGetBlock(ctx context.Context, block models.Block) (models.Block, error) {
	query := `
		INSERT INTO blocks (id, party_id, kind)
		VALUES ($1, $2, $3)
		ON CONFLICT (party_id, kind) DO NOTHING
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(block.ID), uuid.UUID(block.PartyID), block.Kind,
	)
	if err != nil {
		return models.Block{}, fmt.Errorf("insert block: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return block, nil
	}
	// Lost the race; the winner's row is the block.
	return s.FindBlock(ctx, block.PartyID, block.Kind)
}

func (s *PostgresStore) FindBlock(ctx context.Context, partyID id.PartyID, kind string) (models.Block, error) {
	query := `SELECT id, party_id, kind FROM blocks WHERE party_id = $1 AND kind = $2`
	return s.scanBlock(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(partyID), kind))
}

func (s *PostgresStore) FindBlockByID(ctx context.Context, blockID id.BlockID) (models.Block, error) {
	query := `SELECT id, party_id, kind FROM blocks WHERE id = $1`
	return s.scanBlock(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(blockID)))
}

func (s *PostgresStore) scanBlock(row *sql.Row) (models.Block, error) {
	var blockID, partyID uuid.UUID
	var b models.Block
	err := row.Scan(&blockID, &partyID, &b.Kind)
	if err == sql.ErrNoRows {
		return models.Block{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Block{}, fmt.Errorf("scan block: %w", err)
	}
	b.ID = id.BlockID(blockID)
	b.PartyID = id.PartyID(partyID)
	return b, nil
}

func (s *PostgresStore) ListBlocksByParty(ctx context.Context, partyID id.PartyID) ([]models.Block, error) {
	query := `SELECT id, party_id, kind FROM blocks WHERE party_id = $1 ORDER BY kind`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(partyID))
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	var out []models.Block
	for rows.Next() {
		var blockID, party uuid.UUID
		var b models.Block
		if err := rows.Scan(&blockID, &party, &b.Kind); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		b.ID = id.BlockID(blockID)
		b.PartyID = id.PartyID(party)
		out = append(out, b)
	}
	return out, rows.Err()
}

const versionColumns = `id, block_id, version_no, valid_from, valid_to, status, payload`

func (s *PostgresStore) OpenVersion(ctx context.Context, blockID id.BlockID) (models.BlockVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM block_versions WHERE block_id = $1 AND valid_to IS NULL`
	v, err := scanVersion(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(blockID)))
	if err == sql.ErrNoRows {
		return models.BlockVersion{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.BlockVersion{}, fmt.Errorf("find open version: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) MaxVersionNo(ctx context.Context, blockID id.BlockID) (int, error) {
	query := `SELECT COALESCE(MAX(version_no), 0) FROM block_versions WHERE block_id = $1`
	var max int
	if err := s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(blockID)).Scan(&max); err != nil {
		return 0, fmt.Errorf("max version no: %w", err)
	}
	return max, nil
}

func (s *PostgresStore) InsertVersion(ctx context.Context, version models.BlockVersion) error {
	query := `
		INSERT INTO block_versions (` + versionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(version.ID), uuid.UUID(version.BlockID), version.VersionNo,
		version.ValidFrom, version.ValidTo, string(version.Status), []byte(version.Payload),
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindVersion(ctx context.Context, versionID id.BlockVersionID) (models.BlockVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM block_versions WHERE id = $1`
	v, err := scanVersion(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(versionID)))
	if err == sql.ErrNoRows {
		return models.BlockVersion{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.BlockVersion{}, fmt.Errorf("find version: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) CloseVersion(ctx context.Context, version models.BlockVersion) error {
	// Compare-and-set on "still open" so a concurrent close loses cleanly.
	query := `
		UPDATE block_versions
		SET valid_to = $2, status = $3
		WHERE id = $1 AND valid_to IS NULL
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(version.ID), version.ValidTo, string(version.Status),
	)
	if err != nil {
		return fmt.Errorf("close version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close version: %w", err)
	}
	if n == 0 {
		var exists bool
		checkErr := s.q(ctx).QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM block_versions WHERE id = $1)`,
			uuid.UUID(version.ID)).Scan(&exists)
		if checkErr != nil {
			return fmt.Errorf("close version: %w", checkErr)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) ListVersions(ctx context.Context, blockID id.BlockID) ([]models.BlockVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM block_versions WHERE block_id = $1 ORDER BY version_no`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(blockID))
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []models.BlockVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (models.BlockVersion, error) {
	var (
		v                  models.BlockVersion
		versionID, blockID uuid.UUID
		validTo            sql.NullTime
		status             string
		payload            []byte
	)
	err := row.Scan(&versionID, &blockID, &v.VersionNo, &v.ValidFrom, &validTo, &status, &payload)
	if err != nil {
		return models.BlockVersion{}, err
	}
	v.ID = id.BlockVersionID(versionID)
	v.BlockID = id.BlockID(blockID)
	if validTo.Valid {
		t := validTo.Time
		v.ValidTo = &t
	}
	v.Status = models.VersionStatus(status)
	v.Payload = payload
	return v, nil
}
