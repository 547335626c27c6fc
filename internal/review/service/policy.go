package service

import (
	"context"

	reviewstore "caseflow/internal/review/store"
	id "caseflow/pkg/domain"
)

// Target is one (party, kind) pair a review must resolve.
type Target struct {
	PartyID id.PartyID
	Kind    string
}

// Member is a party swept into a review through a relation.
type Member struct {
	PartyID      id.PartyID
	RelationType string
}

// TargetPolicy derives the target set (and member roster) for a pivot party.
// The full derivation walks the party's relationship graph against the
// relation-scope table; that graph lives outside this system, so the policy
// is injected.
type TargetPolicy interface {
	Derive(ctx context.Context, pivotPartyID id.PartyID) ([]Target, []Member, error)
}

// NameScreeningKind is the decision kind the minimal policy reviews.
const NameScreeningKind = "NAME_SCREENING"

// PivotOnlyPolicy is the minimal policy: review the pivot party itself with
// a single NAME_SCREENING target.
type PivotOnlyPolicy struct{}

func (PivotOnlyPolicy) Derive(_ context.Context, pivotPartyID id.PartyID) ([]Target, []Member, error) {
	return []Target{{PartyID: pivotPartyID, Kind: NameScreeningKind}}, nil, nil
}

// Relation links a related party to the pivot by relation type. Supplied by
// whatever knows the relationship graph.
type Relation struct {
	PartyID      id.PartyID
	RelationType string
}

// RelationSource resolves a pivot party's relations.
type RelationSource interface {
	RelationsOf(ctx context.Context, pivotPartyID id.PartyID) ([]Relation, error)
}

// ScopePolicy expands the pivot's relations against the relation-scope table:
// every required (relationType, blockKind) row adds a target for the related
// party, and every related party joins the member roster.
type ScopePolicy struct {
	relations RelationSource
	scopes    reviewstore.ScopeStore
}

func NewScopePolicy(relations RelationSource, scopes reviewstore.ScopeStore) *ScopePolicy {
	return &ScopePolicy{relations: relations, scopes: scopes}
}

func (p *ScopePolicy) Derive(ctx context.Context, pivotPartyID id.PartyID) ([]Target, []Member, error) {
	targets := []Target{{PartyID: pivotPartyID, Kind: NameScreeningKind}}

	relations, err := p.relations.RelationsOf(ctx, pivotPartyID)
	if err != nil {
		return nil, nil, err
	}
	if len(relations) == 0 {
		return targets, nil, nil
	}

	relationTypes := make([]string, 0, len(relations))
	for _, rel := range relations {
		relationTypes = append(relationTypes, rel.RelationType)
	}
	scopes, err := p.scopes.ListByRelationTypes(ctx, relationTypes)
	if err != nil {
		return nil, nil, err
	}

	kindsByRelation := make(map[string][]string)
	for _, sc := range scopes {
		if sc.IsRequired {
			kindsByRelation[sc.RelationType] = append(kindsByRelation[sc.RelationType], sc.BlockKind)
		}
	}

	var members []Member
	for _, rel := range relations {
		members = append(members, Member{PartyID: rel.PartyID, RelationType: rel.RelationType})
		for _, kind := range kindsByRelation[rel.RelationType] {
			targets = append(targets, Target{PartyID: rel.PartyID, Kind: kind})
		}
	}
	return targets, members, nil
}
