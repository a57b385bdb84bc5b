package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lacomiqueria/chatbot/internal/flowstate"
	"github.com/lacomiqueria/chatbot/internal/metrics"
	"github.com/lacomiqueria/chatbot/internal/models"
)

// EscalationFlow confirms or declines a pending cancelled-order escalation.
// The flow is armed by the orders flow stamping the escalation state when its
// own reply offered to escalate; the bot's prior text is never re-parsed, so
// message copy and flow logic cannot drift apart.
type EscalationFlow struct {
	metrics metrics.Emitter
}

// NewEscalationFlow creates the escalation flow handler.
func NewEscalationFlow(em metrics.Emitter) *EscalationFlow {
	return &EscalationFlow{metrics: em}
}

// Handles claims turns with the escalation confirmation pending.
func (f *EscalationFlow) Handles(s *ResolutionState) bool {
	return s.Flows.Escalation == models.EscalationAwaitingConfirm
}

// Handle interprets the confirmation reply. An unclear answer re-asks once;
// a second unclear answer releases the turn to the rest of the pipeline.
func (f *EscalationFlow) Handle(ctx context.Context, s *ResolutionState) {
	answer := interpretYesNo(s.EffectiveText)
	slog.Debug("escalation flow", "answer", answer, "conversation_id", s.ConversationID)

	switch answer {
	case AnswerYes:
		orderID := flowstate.LastCancelledOrderID(s.History)
		message := msgEscalationNoOrder
		if orderID != "" {
			message = fmt.Sprintf(msgEscalationDone, orderID)
		}
		f.metrics.Count(metrics.MessagesResolved, map[string]string{"path": "escalation_confirmed"})
		s.LastOrderID = orderID
		s.ClearEscalation()
		s.Resolve("escalation", models.OkResponse(message, s.ConversationID, models.IntentOrders))

	case AnswerNo:
		s.ClearEscalation()
		s.Resolve("escalation", models.OkResponse(msgEscalationDecline, s.ConversationID, models.IntentOrders))

	default:
		if alreadyReasked(s.History) {
			// Second unclear answer: exit cleanly and let the pipeline
			// treat the message on its own terms.
			s.ClearEscalation()
			return
		}
		s.EscalationReasked = true
		s.SetEscalation(models.EscalationAwaitingConfirm)
		s.Resolve("escalation", models.OkResponse(msgEscalationReask, s.ConversationID, models.IntentOrders))
	}
}

// alreadyReasked reports whether the most recent bot turn was itself the
// escalation re-ask.
func alreadyReasked(rows []models.Turn) bool {
	for _, row := range rows {
		if row.Sender != models.SenderBot {
			continue
		}
		return row.Metadata.GetBool(models.MetaEscalationReasked)
	}
	return false
}
