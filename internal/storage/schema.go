// Package storage owns the Postgres schema. The unique indexes here are
// load-bearing: services rely on them as the last line of defense against
// concurrent writers, so changing them changes correctness, not just layout.
package storage

import (
	"context"
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS parties (
    id           UUID PRIMARY KEY,
    party_type   TEXT NOT NULL,
    sub_type     TEXT NOT NULL DEFAULT '',
    external_ref TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS hits (
    id          UUID PRIMARY KEY,
    party_id    UUID NOT NULL REFERENCES parties (id),
    hit_type    TEXT NOT NULL,
    occurred_at TIMESTAMPTZ NOT NULL,
    payload     JSONB,
    status      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_hits_party ON hits (party_id);

CREATE TABLE IF NOT EXISTS blocks (
    id       UUID PRIMARY KEY,
    party_id UUID NOT NULL REFERENCES parties (id),
    kind     TEXT NOT NULL,
    CONSTRAINT uq_blocks_party_kind UNIQUE (party_id, kind)
);

CREATE TABLE IF NOT EXISTS block_versions (
    id         UUID PRIMARY KEY,
    block_id   UUID NOT NULL REFERENCES blocks (id),
    version_no INTEGER NOT NULL,
    valid_from TIMESTAMPTZ NOT NULL,
    valid_to   TIMESTAMPTZ,
    status     TEXT NOT NULL,
    payload    JSONB,
    CONSTRAINT uq_block_versions_no UNIQUE (block_id, version_no)
);
-- At most one open version per block, enforced by the database.
CREATE UNIQUE INDEX IF NOT EXISTS uq_block_versions_open
    ON block_versions (block_id) WHERE valid_to IS NULL;

CREATE TABLE IF NOT EXISTS review_instances (
    id             UUID PRIMARY KEY,
    hit_id         UUID NOT NULL REFERENCES hits (id),
    pivot_party_id UUID NOT NULL REFERENCES parties (id),
    started_at     TIMESTAMPTZ NOT NULL,
    closed_at      TIMESTAMPTZ,
    notes          TEXT NOT NULL DEFAULT '',
    CONSTRAINT uq_review_instances_hit UNIQUE (hit_id)
);
CREATE INDEX IF NOT EXISTS idx_review_instances_pivot ON review_instances (pivot_party_id);

CREATE TABLE IF NOT EXISTS review_targets (
    review_id       UUID NOT NULL REFERENCES review_instances (id),
    target_party_id UUID NOT NULL REFERENCES parties (id),
    block_kind      TEXT NOT NULL,
    block_version_id UUID,
    state           TEXT NOT NULL,
    final_status    TEXT NOT NULL DEFAULT '',
    finalized_at    TIMESTAMPTZ,
    PRIMARY KEY (review_id, target_party_id, block_kind)
);
CREATE INDEX IF NOT EXISTS idx_review_targets_party_kind
    ON review_targets (target_party_id, block_kind) WHERE state = 'PENDING';

CREATE TABLE IF NOT EXISTS review_members (
    review_id       UUID NOT NULL REFERENCES review_instances (id),
    member_party_id UUID NOT NULL REFERENCES parties (id),
    relation_type   TEXT NOT NULL,
    added_at        TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (review_id, member_party_id, relation_type)
);

CREATE TABLE IF NOT EXISTS relation_type_block_scope (
    relation_type TEXT NOT NULL,
    block_kind    TEXT NOT NULL,
    is_required   BOOLEAN NOT NULL DEFAULT TRUE,
    policy_code   TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (relation_type, block_kind)
);

CREATE TABLE IF NOT EXISTS integration_outbox (
    id               UUID PRIMARY KEY,
    block_version_id UUID NOT NULL,
    party_id         UUID NOT NULL,
    kind             TEXT NOT NULL,
    final_status     TEXT NOT NULL,
    created_at       TIMESTAMPTZ NOT NULL,
    published_at     TIMESTAMPTZ,
    CONSTRAINT uq_integration_outbox_version UNIQUE (block_version_id)
);
CREATE INDEX IF NOT EXISTS idx_integration_outbox_pending
    ON integration_outbox (created_at) WHERE published_at IS NULL;
`

// Apply creates all tables and indexes. Idempotent.
func Apply(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
