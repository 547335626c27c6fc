package handler

import (
	"encoding/json"
	"time"

	"caseflow/internal/caseview/service"
)

// CaseSummaryResponse is the wire representation of the aggregated view.
type CaseSummaryResponse struct {
	Party       PartySummary    `json:"party"`
	Blocks      []BlockSummary  `json:"blocks"`
	Reviews     []ReviewSummary `json:"reviews"`
	Hits        []HitSummary    `json:"hits"`
	GeneratedAt string          `json:"generated_at"`
}

type PartySummary struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	SubType     string `json:"sub_type,omitempty"`
	ExternalRef string `json:"external_ref,omitempty"`
}

type BlockSummary struct {
	ID       string           `json:"id"`
	Kind     string           `json:"kind"`
	Versions []VersionSummary `json:"versions"`
}

type VersionSummary struct {
	ID        string  `json:"id"`
	VersionNo int     `json:"version_no"`
	Status    string  `json:"status"`
	ValidFrom string  `json:"valid_from"`
	ValidTo   *string `json:"valid_to,omitempty"`
}

type ReviewSummary struct {
	ID        string          `json:"id"`
	HitID     string          `json:"hit_id"`
	StartedAt string          `json:"started_at"`
	ClosedAt  *string         `json:"closed_at,omitempty"`
	Targets   []TargetSummary `json:"targets"`
	Members   []MemberSummary `json:"members"`
}

type TargetSummary struct {
	TargetPartyID string  `json:"target_party_id"`
	BlockKind     string  `json:"block_kind"`
	State         string  `json:"state"`
	FinalStatus   string  `json:"final_status,omitempty"`
	FinalizedAt   *string `json:"finalized_at,omitempty"`
}

type MemberSummary struct {
	MemberPartyID string `json:"member_party_id"`
	RelationType  string `json:"relation_type"`
}

type HitSummary struct {
	ID         string          `json:"id"`
	HitType    string          `json:"hit_type"`
	Status     string          `json:"status"`
	OccurredAt string          `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// FromSummary converts the domain aggregate into its wire form.
func FromSummary(summary service.CaseSummary) CaseSummaryResponse {
	resp := CaseSummaryResponse{
		Party: PartySummary{
			ID:          summary.Party.ID.String(),
			Type:        summary.Party.Type,
			SubType:     summary.Party.SubType,
			ExternalRef: summary.Party.ExternalRef,
		},
		Blocks:      make([]BlockSummary, 0, len(summary.Blocks)),
		Reviews:     make([]ReviewSummary, 0, len(summary.Reviews)),
		Hits:        make([]HitSummary, 0, len(summary.Hits)),
		GeneratedAt: summary.GeneratedAt.Format(time.RFC3339Nano),
	}

	for _, bv := range summary.Blocks {
		block := BlockSummary{
			ID:       bv.Block.ID.String(),
			Kind:     bv.Block.Kind,
			Versions: make([]VersionSummary, 0, len(bv.Versions)),
		}
		for _, v := range bv.Versions {
			block.Versions = append(block.Versions, VersionSummary{
				ID:        v.ID.String(),
				VersionNo: v.VersionNo,
				Status:    string(v.Status),
				ValidFrom: v.ValidFrom.UTC().Format(time.RFC3339Nano),
				ValidTo:   formatTimePtr(v.ValidTo),
			})
		}
		resp.Blocks = append(resp.Blocks, block)
	}

	for _, rv := range summary.Reviews {
		review := ReviewSummary{
			ID:        rv.Review.ID.String(),
			HitID:     rv.Review.HitID.String(),
			StartedAt: rv.Review.StartedAt.UTC().Format(time.RFC3339Nano),
			ClosedAt:  formatTimePtr(rv.Review.ClosedAt),
			Targets:   make([]TargetSummary, 0, len(rv.Targets)),
			Members:   make([]MemberSummary, 0, len(rv.Members)),
		}
		for _, t := range rv.Targets {
			review.Targets = append(review.Targets, TargetSummary{
				TargetPartyID: t.TargetPartyID.String(),
				BlockKind:     t.BlockKind,
				State:         string(t.State),
				FinalStatus:   string(t.FinalStatus),
				FinalizedAt:   formatTimePtr(t.FinalizedAt),
			})
		}
		for _, m := range rv.Members {
			review.Members = append(review.Members, MemberSummary{
				MemberPartyID: m.MemberPartyID.String(),
				RelationType:  m.RelationType,
			})
		}
		resp.Reviews = append(resp.Reviews, review)
	}

	for _, hit := range summary.Hits {
		resp.Hits = append(resp.Hits, HitSummary{
			ID:         hit.ID.String(),
			HitType:    hit.HitType,
			Status:     string(hit.Status),
			OccurredAt: hit.OccurredAt.UTC().Format(time.RFC3339Nano),
			Payload:    hit.Payload,
		})
	}

	return resp
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.UTC().Format(time.RFC3339Nano)
	return &formatted
}
