package flow

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lacomiqueria/chatbot/internal/flowstate"
	"github.com/lacomiqueria/chatbot/internal/metrics"
	"github.com/lacomiqueria/chatbot/internal/models"
)

// finalize is the single exit point of a resolved turn: it sanitizes the
// outbound message, persists the user and bot turns with the flow metadata
// stamps, marks the inbound event processed, and writes the audit record.
// Persistence failures surface as errors so the caller can release the dedup
// record for redelivery.
func (o *Orchestrator) finalize(s *ResolutionState, start time.Time) (*models.Wf1Response, error) {
	resp := s.Response
	resp.Message = sanitizeOutbound(resp.Message, flowstate.PriorBotGreeting(s.History))
	if resp.ConversationID == "" {
		resp.ConversationID = s.ConversationID
	}

	// The history keeps what the customer actually wrote, not the
	// pipeline's rewritten form of it.
	userTurn := models.Turn{
		ConversationID: s.ConversationID,
		Sender:         models.SenderUser,
		Content:        s.InboundText,
		CreatedAt:      s.Now,
	}
	if _, err := o.store.AppendTurn(userTurn); err != nil {
		return nil, fmt.Errorf("failed to persist user turn: %w", err)
	}

	botTurn := models.Turn{
		ConversationID: s.ConversationID,
		Sender:         models.SenderBot,
		Content:        resp.Message,
		Metadata:       botTurnMetadata(s),
		CreatedAt:      time.Now(),
	}
	if _, err := o.store.AppendTurn(botTurn); err != nil {
		return nil, fmt.Errorf("failed to persist bot turn: %w", err)
	}

	if err := o.store.SaveProcessedResult(s.Source, s.EventID, resp); err != nil {
		return nil, fmt.Errorf("failed to save processed result: %w", err)
	}

	o.audit(s, resp, start)
	o.metrics.Count(metrics.MessagesResolved, map[string]string{
		"intent":      s.EffectiveIntent.Intent,
		"resolved_by": s.ResolvedBy,
	})
	o.metrics.Duration(metrics.ResponseLatency, time.Since(start), map[string]string{"resolved_by": s.ResolvedBy})

	slog.Debug("turn resolved",
		"conversationID", s.ConversationID,
		"resolvedBy", s.ResolvedBy,
		"intent", s.EffectiveIntent.Intent,
		"llmAttempts", s.LLMAttempts,
		"fallbacks", s.FallbackCount)
	return resp, nil
}

func (o *Orchestrator) audit(s *ResolutionState, resp *models.Wf1Response, start time.Time) {
	status := models.AuditStatusSuccess
	if !resp.OK && !resp.RequiresAuth {
		status = models.AuditStatusFailure
	}
	rec := models.AuditRecord{
		RequestID:      s.RequestID,
		ConversationID: s.ConversationID,
		Status:         status,
		ResolvedBy:     s.ResolvedBy,
		Intent:         s.EffectiveIntent.Intent,
		LatencyMS:      time.Since(start).Milliseconds(),
		CreatedAt:      time.Now(),
	}
	if err := o.store.AddAuditRecord(rec); err != nil {
		slog.Error("failed to write audit record", "error", err, "requestID", s.RequestID)
	}
}

// botTurnMetadata assembles the metadata stamped onto the bot turn. Families
// resolved this turn write their values; families explicitly finished write
// nulls so the next reconstruction sees the flow as closed rather than
// falling through to an older stamp.
func botTurnMetadata(s *ResolutionState) models.Metadata {
	md := models.Metadata{
		models.MetaResolvedBy:      s.ResolvedBy,
		models.MetaRoutedIntent:    s.EffectiveIntent.Intent,
		models.MetaExternalEventID: s.EventID,
	}

	if p := s.GuestOrderToPersist; p != nil {
		md[models.MetaGuestOrderState] = nullableString(string(*p))
	}
	if p := s.EscalationToPersist; p != nil {
		md[models.MetaEscalationState] = nullableString(string(*p))
	}
	if p := s.DisambiguationToPersist; p != nil {
		md[models.MetaDisambiguationState] = nullableString(string(p.State))
		md[models.MetaDisambiguationFran] = nullableString(p.Franchise)
		md[models.MetaDisambiguationHint] = nullableString(p.CategoryHint)
	}
	if p := s.MemoryToPersist; p != nil {
		stampMemory(md, *p)
	}

	if s.EscalationOffered {
		md[models.MetaEscalationOffered] = true
	}
	if s.EscalationReasked {
		md[models.MetaEscalationReasked] = true
	}
	if s.LastOrderID != "" {
		md[models.MetaLastOrderID] = s.LastOrderID
	}
	if s.OrdersDataSource != "" {
		md[models.MetaOrdersDataSource] = s.OrdersDataSource
	}
	if s.LLMPath != "" {
		md[models.MetaLLMPath] = s.LLMPath
	}
	if s.FallbackCount > 0 {
		md[models.MetaPipelineFallbacks] = s.FallbackCount
	}
	return md
}

func stampMemory(md models.Metadata, mem models.RecommendationsMemory) {
	md[models.MetaRecoLastFranchise] = nullableString(mem.LastFranchise)
	md[models.MetaRecoLastType] = nullableString(mem.LastType)
	md[models.MetaRecoPromptedFran] = nullableString(mem.PromptedFranchise)
	if mem.SnapshotAt.IsZero() {
		md[models.MetaRecoSnapshotAt] = nil
		md[models.MetaRecoSnapshotSource] = nil
		md[models.MetaRecoSnapshotCount] = nil
		md[models.MetaCatalogSnapshot] = nil
		return
	}
	md[models.MetaRecoSnapshotAt] = mem.SnapshotAt.Format(time.RFC3339)
	md[models.MetaRecoSnapshotSource] = mem.SnapshotSource
	md[models.MetaRecoSnapshotCount] = mem.SnapshotItemCount
	if len(mem.Snapshot) > 0 {
		if raw, err := json.Marshal(mem.Snapshot); err == nil {
			md[models.MetaCatalogSnapshot] = string(raw)
		}
	}
}

// nullableString maps the empty string to an explicit metadata null.
func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
