package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reviewmodels "caseflow/internal/review/models"
	reviewstore "caseflow/internal/review/store"
	id "caseflow/pkg/domain"
)

type staticRelations struct {
	relations []Relation
	err       error
}

func (s staticRelations) RelationsOf(context.Context, id.PartyID) ([]Relation, error) {
	return s.relations, s.err
}

func scopeTable() *reviewstore.InMemoryScopeStore {
	return reviewstore.NewMemoryScopes([]reviewmodels.RelationTypeBlockScope{
		{RelationType: "UBO", BlockKind: "NAME_SCREENING", IsRequired: true, PolicyCode: "KYC-UBO-NS"},
		{RelationType: "UBO", BlockKind: "PEP_SCREENING", IsRequired: true, PolicyCode: "KYC-UBO-PEP"},
		{RelationType: "DIRECTOR", BlockKind: "NAME_SCREENING", IsRequired: true, PolicyCode: "KYC-DIR-NS"},
		{RelationType: "SHAREHOLDER", BlockKind: "NAME_SCREENING", IsRequired: false, PolicyCode: "KYC-SH-NS"},
	})
}

func TestPivotOnlyPolicy(t *testing.T) {
	pivot := id.NewPartyID()

	targets, members, err := PivotOnlyPolicy{}.Derive(context.Background(), pivot)
	require.NoError(t, err)

	assert.Equal(t, []Target{{PartyID: pivot, Kind: NameScreeningKind}}, targets)
	assert.Empty(t, members)
}

func TestScopePolicy(t *testing.T) {
	ctx := context.Background()
	pivot := id.NewPartyID()

	t.Run("no relations yields pivot-only scope", func(t *testing.T) {
		policy := NewScopePolicy(staticRelations{}, scopeTable())

		targets, members, err := policy.Derive(ctx, pivot)
		require.NoError(t, err)
		assert.Equal(t, []Target{{PartyID: pivot, Kind: NameScreeningKind}}, targets)
		assert.Empty(t, members)
	})

	t.Run("required scopes expand into targets", func(t *testing.T) {
		ubo := id.NewPartyID()
		director := id.NewPartyID()
		policy := NewScopePolicy(staticRelations{relations: []Relation{
			{PartyID: ubo, RelationType: "UBO"},
			{PartyID: director, RelationType: "DIRECTOR"},
		}}, scopeTable())

		targets, members, err := policy.Derive(ctx, pivot)
		require.NoError(t, err)

		assert.ElementsMatch(t, []Target{
			{PartyID: pivot, Kind: NameScreeningKind},
			{PartyID: ubo, Kind: "NAME_SCREENING"},
			{PartyID: ubo, Kind: "PEP_SCREENING"},
			{PartyID: director, Kind: "NAME_SCREENING"},
		}, targets)
		assert.ElementsMatch(t, []Member{
			{PartyID: ubo, RelationType: "UBO"},
			{PartyID: director, RelationType: "DIRECTOR"},
		}, members)
	})

	t.Run("optional scopes add membership but no targets", func(t *testing.T) {
		shareholder := id.NewPartyID()
		policy := NewScopePolicy(staticRelations{relations: []Relation{
			{PartyID: shareholder, RelationType: "SHAREHOLDER"},
		}}, scopeTable())

		targets, members, err := policy.Derive(ctx, pivot)
		require.NoError(t, err)

		assert.Equal(t, []Target{{PartyID: pivot, Kind: NameScreeningKind}}, targets)
		assert.Equal(t, []Member{{PartyID: shareholder, RelationType: "SHAREHOLDER"}}, members)
	})

	t.Run("relation source failure propagates", func(t *testing.T) {
		policy := NewScopePolicy(staticRelations{err: errors.New("graph unavailable")}, scopeTable())

		_, _, err := policy.Derive(ctx, pivot)
		require.Error(t, err)
	})
}
