// Package models defines flow state structures for the support chatbot.
//
// Flow state is never stored in a session table. Each bot turn stamps the
// keys below into its metadata; the next turn reconstructs state by scanning
// history newest-first. A handler that finishes a flow must write an explicit
// null for its family so stale state cannot leak into an unrelated turn.
package models

import "time"

// Metadata keys stamped onto persisted bot turns.
const (
	MetaGuestOrderState     = "guestOrderFlowState"
	MetaEscalationState     = "ordersEscalationFlowState"
	MetaEscalationOffered   = "offeredCancelEscalation"
	MetaEscalationReasked   = "escalationReasked"
	MetaDisambiguationState = "recoDisambiguationState"
	MetaDisambiguationFran  = "recoDisambiguationFranchise"
	MetaDisambiguationHint  = "recoDisambiguationCategoryHint"
	MetaRecoLastFranchise   = "recoLastFranchise"
	MetaRecoLastType        = "recoLastType"
	MetaRecoPromptedFran    = "recoPromptedFranchise"
	MetaRecoSnapshotAt      = "recoSnapshotAt"
	MetaRecoSnapshotSource  = "recoSnapshotSource"
	MetaRecoSnapshotCount   = "recoSnapshotItemCount"
	MetaCatalogSnapshot     = "catalogSnapshot"
	MetaOrdersDataSource    = "ordersDataSource"
	MetaLastOrderID         = "lastOrderId"
	MetaResolvedBy          = "resolvedBy"
	MetaLLMPath             = "llmPath"
	MetaExternalEventID     = "externalEventId"
	MetaRoutedIntent        = "routedIntent"
	MetaPipelineFallbacks   = "pipelineFallbackCount"
)

// GuestOrderState is the guest order lookup flow state. Empty means no active
// flow.
type GuestOrderState string

const (
	GuestOrderNone            GuestOrderState = ""
	GuestOrderAwaitingAnswer  GuestOrderState = "awaiting_has_data_answer"
	GuestOrderAwaitingPayload GuestOrderState = "awaiting_lookup_payload"
)

// EscalationState is the orders escalation flow state.
type EscalationState string

const (
	EscalationNone            EscalationState = ""
	EscalationAwaitingConfirm EscalationState = "awaiting_cancelled_reason_confirmation"
)

// DisambiguationState is the recommendations disambiguation flow state.
type DisambiguationState string

const (
	DisambiguationNone           DisambiguationState = ""
	DisambiguationAwaitingCatVol DisambiguationState = "awaiting_category_or_volume"
	DisambiguationAwaitingVolume DisambiguationState = "awaiting_volume_detail"
)

// DisambiguationSnapshot carries the disambiguation state together with the
// franchise being disambiguated and an optional category hint.
type DisambiguationSnapshot struct {
	State        DisambiguationState `json:"state"`
	Franchise    string              `json:"franchise,omitempty"`
	CategoryHint string              `json:"category_hint,omitempty"`
}

// RecommendationsMemory is the remembered recommendations context: what was
// last shown, what the bot last asked about, and the catalog card snapshot.
type RecommendationsMemory struct {
	LastFranchise     string        `json:"last_franchise,omitempty"`
	LastType          string        `json:"last_type,omitempty"`
	PromptedFranchise string        `json:"prompted_franchise,omitempty"`
	SnapshotAt        time.Time     `json:"snapshot_at,omitempty"`
	SnapshotSource    string        `json:"snapshot_source,omitempty"`
	SnapshotItemCount int           `json:"snapshot_item_count,omitempty"`
	Snapshot          []CatalogItem `json:"snapshot,omitempty"`
}

// Default freshness windows for the recommendations memory.
const (
	// SnapshotFreshness bounds general reuse of a memory snapshot.
	SnapshotFreshness = 5 * time.Minute
	// PriceChallengeFreshness bounds snapshot reuse for price revalidation.
	PriceChallengeFreshness = 2 * time.Minute
)

// FreshAt reports whether the snapshot is usable at the given instant under
// the given window. A zero timestamp is never fresh.
func (m RecommendationsMemory) FreshAt(now time.Time, window time.Duration) bool {
	if m.SnapshotAt.IsZero() {
		return false
	}
	return now.Sub(m.SnapshotAt) <= window
}

// FlowSnapshot is the complete reconstructed state handed to the pipeline at
// the start of a turn.
type FlowSnapshot struct {
	GuestOrder     GuestOrderState        `json:"guest_order,omitempty"`
	Escalation     EscalationState        `json:"escalation,omitempty"`
	Disambiguation DisambiguationSnapshot `json:"disambiguation,omitempty"`
	Memory         RecommendationsMemory  `json:"memory,omitempty"`
}

// ActiveFlowCount returns how many flow families are active. The precedence
// checks in the pipeline are disjoint, so this is at most one at the start of
// any turn.
func (s FlowSnapshot) ActiveFlowCount() int {
	n := 0
	if s.GuestOrder != GuestOrderNone {
		n++
	}
	if s.Escalation != EscalationNone {
		n++
	}
	if s.Disambiguation.State != DisambiguationNone {
		n++
	}
	return n
}
