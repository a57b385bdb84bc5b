// Package flow implements the response resolution pipeline of the support
// chatbot: flow handlers, fallback resolvers, the precedence cascade that
// composes them, and the turn finalizer.
package flow

import (
	"time"

	"github.com/lacomiqueria/chatbot/internal/enrich"
	"github.com/lacomiqueria/chatbot/internal/models"
)

// ResolutionState is the single turn-local struct the pipeline threads
// through its stages. It is created fresh per turn from history-derived
// snapshots, mutated by successive resolver stages, consumed once by the
// finalizer, then discarded. Only selected fields reach persistence.
type ResolutionState struct {
	ConversationID string
	RequestID      string
	Source         string
	EventID        string
	RemoteIP       string
	Auth           enrich.AuthContext
	Now            time.Time

	// History is the recent window, newest first.
	History []models.Turn
	// Flows is the state reconstructed at the start of the turn.
	Flows models.FlowSnapshot

	// InboundText is the message exactly as the customer sent it. It is
	// what the history records; EffectiveText is what the pipeline acts on.
	InboundText string

	// Effective inputs: stages may rewrite the text, the routed intent, or
	// its entities mid-pipeline (e.g. "dale" becomes a full query).
	EffectiveText   string
	EffectiveIntent models.IntentResult

	// Flow state to persist on the bot turn. A nil pointer means the family
	// was not touched this turn; a pointer to the zero value is an explicit
	// clear. The finalizer turns these into metadata, including explicit
	// nulls.
	GuestOrderToPersist     *models.GuestOrderState
	EscalationToPersist     *models.EscalationState
	DisambiguationToPersist *models.DisambiguationSnapshot
	MemoryToPersist         *models.RecommendationsMemory

	// Extra bot-turn metadata.
	EscalationOffered bool
	EscalationReasked bool
	LastOrderID       string
	OrdersDataSource  string

	// Pipeline telemetry.
	LLMPath         string
	LLMAttempts     int
	ToolAttempts    int
	FallbackCount   int
	FallbackReasons []string
	ResolvedBy      string

	// Response, once set, short-circuits the remaining stages.
	Response *models.Wf1Response
}

// Resolved reports whether a terminal response has been produced.
func (s *ResolutionState) Resolved() bool { return s.Response != nil }

// Resolve records the terminal response and the stage that produced it.
func (s *ResolutionState) Resolve(stage string, resp *models.Wf1Response) {
	if s.Response != nil {
		return
	}
	s.ResolvedBy = stage
	s.Response = resp
}

// NoteFallback counts one fallback transition with its reason.
func (s *ResolutionState) NoteFallback(reason string) {
	s.FallbackCount++
	s.FallbackReasons = append(s.FallbackReasons, reason)
}

// ClearGuestOrder stamps an explicit clear for the guest order flow.
func (s *ResolutionState) ClearGuestOrder() {
	v := models.GuestOrderNone
	s.GuestOrderToPersist = &v
}

// SetGuestOrder stamps the guest order flow state.
func (s *ResolutionState) SetGuestOrder(v models.GuestOrderState) {
	s.GuestOrderToPersist = &v
}

// ClearEscalation stamps an explicit clear for the escalation flow.
func (s *ResolutionState) ClearEscalation() {
	v := models.EscalationNone
	s.EscalationToPersist = &v
}

// SetEscalation stamps the escalation flow state.
func (s *ResolutionState) SetEscalation(v models.EscalationState) {
	s.EscalationToPersist = &v
}

// ClearDisambiguation stamps an explicit clear for the disambiguation flow.
func (s *ResolutionState) ClearDisambiguation() {
	s.DisambiguationToPersist = &models.DisambiguationSnapshot{}
}

// SetDisambiguation stamps the disambiguation flow state.
func (s *ResolutionState) SetDisambiguation(v models.DisambiguationSnapshot) {
	s.DisambiguationToPersist = &v
}
