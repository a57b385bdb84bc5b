package flow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lacomiqueria/chatbot/internal/metrics"
	"github.com/lacomiqueria/chatbot/internal/models"
)

func newEscalationState(text string, history []models.Turn) *ResolutionState {
	return &ResolutionState{
		ConversationID:  "wa:5491100000001",
		RequestID:       "req-1",
		Now:             time.Now(),
		History:         history,
		EffectiveText:   text,
		EffectiveIntent: models.IntentResult{Intent: models.IntentOrders},
		Flows:           models.FlowSnapshot{Escalation: models.EscalationAwaitingConfirm},
	}
}

func TestEscalationConfirm(t *testing.T) {
	f := NewEscalationFlow(metrics.NewMemoryEmitter())
	history := []models.Turn{
		{Sender: models.SenderBot, Content: "PEDIDO #31\nEstado: cancelado\n\n" + msgEscalationOffer},
	}

	s := newEscalationState("sí dale", history)
	f.Handle(context.Background(), s)

	if s.Response == nil || !s.Response.OK {
		t.Fatalf("Response = %+v", s.Response)
	}
	if !strings.Contains(s.Response.Message, "#31") {
		t.Errorf("Message = %q, want the cancelled order id", s.Response.Message)
	}
	if s.LastOrderID != "31" {
		t.Errorf("LastOrderID = %q", s.LastOrderID)
	}
	if s.EscalationToPersist == nil || *s.EscalationToPersist != models.EscalationNone {
		t.Errorf("EscalationToPersist = %v, want explicit clear", s.EscalationToPersist)
	}
}

func TestEscalationConfirmWithoutKnownOrder(t *testing.T) {
	f := NewEscalationFlow(metrics.NewMemoryEmitter())

	s := newEscalationState("sí", nil)
	f.Handle(context.Background(), s)

	if s.Response == nil || s.Response.Message != msgEscalationNoOrder {
		t.Fatalf("Response = %+v", s.Response)
	}
}

func TestEscalationDecline(t *testing.T) {
	f := NewEscalationFlow(metrics.NewMemoryEmitter())

	s := newEscalationState("no dejá", nil)
	f.Handle(context.Background(), s)

	if s.Response == nil || s.Response.Message != msgEscalationDecline {
		t.Fatalf("Response = %+v", s.Response)
	}
	if s.EscalationToPersist == nil || *s.EscalationToPersist != models.EscalationNone {
		t.Errorf("EscalationToPersist = %v, want explicit clear", s.EscalationToPersist)
	}
}

func TestEscalationUnclearReasksOnce(t *testing.T) {
	f := NewEscalationFlow(metrics.NewMemoryEmitter())

	s := newEscalationState("qué onda con los envíos?", nil)
	f.Handle(context.Background(), s)

	if s.Response == nil || s.Response.Message != msgEscalationReask {
		t.Fatalf("Response = %+v, want the re-ask", s.Response)
	}
	if !s.EscalationReasked {
		t.Error("EscalationReasked not set")
	}
	if s.EscalationToPersist == nil || *s.EscalationToPersist != models.EscalationAwaitingConfirm {
		t.Errorf("EscalationToPersist = %v, want still awaiting", s.EscalationToPersist)
	}
}

func TestEscalationSecondUnclearReleasesTurn(t *testing.T) {
	f := NewEscalationFlow(metrics.NewMemoryEmitter())
	history := []models.Turn{
		{Sender: models.SenderBot, Content: msgEscalationReask, Metadata: models.Metadata{
			models.MetaEscalationState:   string(models.EscalationAwaitingConfirm),
			models.MetaEscalationReasked: true,
		}},
	}

	s := newEscalationState("qué onda con los envíos?", history)
	f.Handle(context.Background(), s)

	if s.Resolved() {
		t.Fatalf("second unclear answer must release the turn, got %+v", s.Response)
	}
	if s.EscalationToPersist == nil || *s.EscalationToPersist != models.EscalationNone {
		t.Errorf("EscalationToPersist = %v, want explicit clear", s.EscalationToPersist)
	}
}
