package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	blockmodels "caseflow/internal/block/models"
	"caseflow/internal/review/models"
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

func (s *PostgresStore) InsertOrGetReview(ctx context.Context, review models.ReviewInstance) (models.ReviewInstance, error) {
	query := `
		INSERT INTO review_instances (id, hit_id, pivot_party_id, started_at, closed_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (hit_id) DO NOTHING
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(review.ID), uuid.UUID(review.HitID), uuid.UUID(review.PivotPartyID),
		review.StartedAt, review.ClosedAt, review.Notes,
	)
	if err != nil {
		return models.ReviewInstance{}, fmt.Errorf("insert review: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return review, nil
	}
	return s.FindReviewByHit(ctx, review.HitID)
}

const reviewColumns = `id, hit_id, pivot_party_id, started_at, closed_at, notes`

func (s *PostgresStore) FindReview(ctx context.Context, reviewID id.ReviewID) (models.ReviewInstance, error) {
	query := `SELECT ` + reviewColumns + ` FROM review_instances WHERE id = $1`
	return s.findOne(ctx, query, uuid.UUID(reviewID))
}

func (s *PostgresStore) FindReviewByHit(ctx context.Context, hitID id.HitID) (models.ReviewInstance, error) {
	query := `SELECT ` + reviewColumns + ` FROM review_instances WHERE hit_id = $1`
	return s.findOne(ctx, query, uuid.UUID(hitID))
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (models.ReviewInstance, error) {
	r, err := scanReview(s.q(ctx).QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return models.ReviewInstance{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.ReviewInstance{}, fmt.Errorf("find review: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListReviewsByPivot(ctx context.Context, pivotPartyID id.PartyID) ([]models.ReviewInstance, error) {
	query := `SELECT ` + reviewColumns + ` FROM review_instances WHERE pivot_party_id = $1 ORDER BY started_at`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(pivotPartyID))
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var out []models.ReviewInstance
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CloseReview(ctx context.Context, reviewID id.ReviewID, closedAt time.Time) error {
	query := `UPDATE review_instances SET closed_at = $2 WHERE id = $1 AND closed_at IS NULL`
	if _, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(reviewID), closedAt); err != nil {
		return fmt.Errorf("close review: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertTargetIfAbsent(ctx context.Context, target models.ReviewTarget) (bool, error) {
	query := `
		INSERT INTO review_targets (review_id, target_party_id, block_kind, block_version_id, state, final_status, finalized_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (review_id, target_party_id, block_kind) DO NOTHING
	`
	var versionID any
	if target.BlockVersionID != nil {
		versionID = uuid.UUID(*target.BlockVersionID)
	}
	res, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(target.ReviewID), uuid.UUID(target.TargetPartyID), target.BlockKind,
		versionID, string(target.State), string(target.FinalStatus), target.FinalizedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert target: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert target: %w", err)
	}
	return n > 0, nil
}

const targetColumns = `review_id, target_party_id, block_kind, block_version_id, state, final_status, finalized_at`

func (s *PostgresStore) ListTargets(ctx context.Context, reviewID id.ReviewID) ([]models.ReviewTarget, error) {
	query := `SELECT ` + targetColumns + ` FROM review_targets WHERE review_id = $1 ORDER BY target_party_id, block_kind`
	return s.queryTargets(ctx, query, uuid.UUID(reviewID))
}

func (s *PostgresStore) PendingTargets(ctx context.Context, targetPartyID id.PartyID, blockKind string) ([]models.ReviewTarget, error) {
	query := `SELECT ` + targetColumns + ` FROM review_targets WHERE target_party_id = $1 AND block_kind = $2 AND state = 'PENDING'`
	return s.queryTargets(ctx, query, uuid.UUID(targetPartyID), blockKind)
}

func (s *PostgresStore) queryTargets(ctx context.Context, query string, args ...any) ([]models.ReviewTarget, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query targets: %w", err)
	}
	defer rows.Close()

	var out []models.ReviewTarget
	for rows.Next() {
		var (
			t                 models.ReviewTarget
			reviewID, partyID uuid.UUID
			versionID         uuid.NullUUID
			state, status     string
			finalizedAt       sql.NullTime
		)
		if err := rows.Scan(&reviewID, &partyID, &t.BlockKind, &versionID, &state, &status, &finalizedAt); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		t.ReviewID = id.ReviewID(reviewID)
		t.TargetPartyID = id.PartyID(partyID)
		if versionID.Valid {
			v := id.BlockVersionID(versionID.UUID)
			t.BlockVersionID = &v
		}
		t.State = models.TargetState(state)
		t.FinalStatus = blockmodels.VersionStatus(status)
		if finalizedAt.Valid {
			at := finalizedAt.Time
			t.FinalizedAt = &at
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CompleteTarget(ctx context.Context, targetID models.TargetID, versionID id.BlockVersionID, finalStatus blockmodels.VersionStatus, finalizedAt time.Time) (bool, error) {
	// CAS on state so redelivered finalize events are absorbed.
	query := `
		UPDATE review_targets
		SET state = 'DONE', block_version_id = $4, final_status = $5, finalized_at = $6
		WHERE review_id = $1 AND target_party_id = $2 AND block_kind = $3 AND state = 'PENDING'
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(targetID.ReviewID), uuid.UUID(targetID.TargetPartyID), targetID.BlockKind,
		uuid.UUID(versionID), string(finalStatus), finalizedAt,
	)
	if err != nil {
		return false, fmt.Errorf("complete target: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete target: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) InsertMemberIfAbsent(ctx context.Context, member models.ReviewMember) (bool, error) {
	query := `
		INSERT INTO review_members (review_id, member_party_id, relation_type, added_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (review_id, member_party_id, relation_type) DO NOTHING
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(member.ReviewID), uuid.UUID(member.MemberPartyID), member.RelationType, member.AddedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert member: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) ListMembers(ctx context.Context, reviewID id.ReviewID) ([]models.ReviewMember, error) {
	query := `
		SELECT review_id, member_party_id, relation_type, added_at
		FROM review_members WHERE review_id = $1 ORDER BY added_at
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(reviewID))
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var out []models.ReviewMember
	for rows.Next() {
		var m models.ReviewMember
		var reviewUUID, memberUUID uuid.UUID
		if err := rows.Scan(&reviewUUID, &memberUUID, &m.RelationType, &m.AddedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.ReviewID = id.ReviewID(reviewUUID)
		m.MemberPartyID = id.PartyID(memberUUID)
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReview(row rowScanner) (models.ReviewInstance, error) {
	var (
		r               models.ReviewInstance
		reviewID, hitID uuid.UUID
		pivot           uuid.UUID
		closedAt        sql.NullTime
	)
	if err := row.Scan(&reviewID, &hitID, &pivot, &r.StartedAt, &closedAt, &r.Notes); err != nil {
		return models.ReviewInstance{}, err
	}
	r.ID = id.ReviewID(reviewID)
	r.HitID = id.HitID(hitID)
	r.PivotPartyID = id.PartyID(pivot)
	if closedAt.Valid {
		at := closedAt.Time
		r.ClosedAt = &at
	}
	return r, nil
}

// PostgresScopeStore reads the relation-scope policy table.
type PostgresScopeStore struct {
	db *sql.DB
}

func NewPostgresScopes(db *sql.DB) *PostgresScopeStore {
	return &PostgresScopeStore{db: db}
}

func (s *PostgresScopeStore) ListByRelationTypes(ctx context.Context, relationTypes []string) ([]models.RelationTypeBlockScope, error) {
	if len(relationTypes) == 0 {
		return nil, nil
	}
	query := `
		SELECT relation_type, block_kind, is_required, policy_code
		FROM relation_type_block_scope
		WHERE relation_type = ANY($1)
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(relationTypes))
	if err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}
	defer rows.Close()

	var out []models.RelationTypeBlockScope
	for rows.Next() {
		var sc models.RelationTypeBlockScope
		if err := rows.Scan(&sc.RelationType, &sc.BlockKind, &sc.IsRequired, &sc.PolicyCode); err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}
