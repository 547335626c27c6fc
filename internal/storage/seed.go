package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// SeedRelationScopes installs the default relation-scope policy rows used
// for target derivation. Idempotent, safe to run at every startup.
func SeedRelationScopes(ctx context.Context, db *sql.DB) error {
	rows := []struct {
		relationType string
		blockKind    string
		isRequired   bool
		policyCode   string
	}{
		{"UBO", "NAME_SCREENING", true, "OWNERSHIP"},
		{"DIRECTOR", "NAME_SCREENING", true, "CONTROL"},
		{"SHAREHOLDER", "NAME_SCREENING", false, "OWNERSHIP"},
		{"AUTHORIZED_SIGNATORY", "NAME_SCREENING", false, "CONTROL"},
	}

	query := `
		INSERT INTO relation_type_block_scope (relation_type, block_kind, is_required, policy_code)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (relation_type, block_kind) DO NOTHING
	`
	for _, row := range rows {
		if _, err := db.ExecContext(ctx, query, row.relationType, row.blockKind, row.isRequired, row.policyCode); err != nil {
			return fmt.Errorf("seed relation scope %s/%s: %w", row.relationType, row.blockKind, err)
		}
	}
	return nil
}
