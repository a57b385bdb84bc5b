package flow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lacomiqueria/chatbot/internal/enrich"
	"github.com/lacomiqueria/chatbot/internal/metrics"
	"github.com/lacomiqueria/chatbot/internal/models"
)

func newOrdersState(text string) *ResolutionState {
	return &ResolutionState{
		ConversationID:  "wa:5491100000001",
		RequestID:       "req-1",
		Now:             time.Now(),
		Auth:            enrich.AuthContext{Token: "tok", CustomerID: "c9"},
		EffectiveText:   text,
		EffectiveIntent: models.IntentResult{Intent: models.IntentOrders},
	}
}

func TestOrdersHandles(t *testing.T) {
	f := NewOrdersFlow(&fakeOrdersAPI{}, metrics.NewMemoryEmitter())

	s := newOrdersState("dónde está mi pedido")
	if !f.Handles(s) {
		t.Error("authenticated orders intent must be claimed")
	}
	s.Auth = enrich.AuthContext{}
	if f.Handles(s) {
		t.Error("unauthenticated turn must not be claimed")
	}
}

func TestOrdersDetailAndListAgree(t *testing.T) {
	api := &fakeOrdersAPI{
		detail: &models.Order{ID: "77", RawState: "enviado", Tracking: "AR1", Items: []models.OrderItem{{Title: "Akira Vol. 3", Quantity: 1}}},
		list:   []models.OrderSummary{{ID: "77", RawState: "shipped"}},
	}
	f := NewOrdersFlow(api, metrics.NewMemoryEmitter())

	s := newOrdersState("cómo viene el pedido #77")
	f.Handle(context.Background(), s)

	if s.Response == nil || !s.Response.OK {
		t.Fatalf("Response = %+v", s.Response)
	}
	// "enviado" and "shipped" canonicalize to the same state.
	if strings.Contains(s.Response.Message, "inconsistencia") {
		t.Errorf("agreeing sources reported as conflict:\n%s", s.Response.Message)
	}
	if s.OrdersDataSource != models.OrdersSourceBoth {
		t.Errorf("OrdersDataSource = %q", s.OrdersDataSource)
	}
	if s.LastOrderID != "77" {
		t.Errorf("LastOrderID = %q", s.LastOrderID)
	}
}

func TestOrdersStateConflict(t *testing.T) {
	api := &fakeOrdersAPI{
		detail: &models.Order{ID: "77", RawState: "enviado"},
		list:   []models.OrderSummary{{ID: "77", RawState: "cancelado"}},
	}
	em := metrics.NewMemoryEmitter()
	f := NewOrdersFlow(api, em)

	s := newOrdersState("qué pasó con el pedido #77")
	f.Handle(context.Background(), s)

	if s.Response == nil {
		t.Fatal("turn not resolved")
	}
	// Both raw labels must be quoted so the customer sees what the two
	// sources actually said.
	if !strings.Contains(s.Response.Message, `"enviado"`) || !strings.Contains(s.Response.Message, `"cancelado"`) {
		t.Errorf("conflict message missing raw labels:\n%s", s.Response.Message)
	}
	if s.OrdersDataSource != models.OrdersSourceConflict {
		t.Errorf("OrdersDataSource = %q", s.OrdersDataSource)
	}
	if got := em.TotalCount(metrics.OrdersDataConflicts); got != 1 {
		t.Errorf("orders_data_conflicts = %d, want 1", got)
	}
	// A conflicting state must never arm the escalation flow.
	if s.EscalationToPersist != nil {
		t.Errorf("EscalationToPersist = %v, want untouched", s.EscalationToPersist)
	}
}

func TestOrdersUnknownRawStateNeverConflicts(t *testing.T) {
	api := &fakeOrdersAPI{
		detail: &models.Order{ID: "77", RawState: "esperando stock"},
		list:   []models.OrderSummary{{ID: "77", RawState: "cancelado"}},
	}
	f := NewOrdersFlow(api, metrics.NewMemoryEmitter())

	s := newOrdersState("estado del pedido #77")
	f.Handle(context.Background(), s)

	if s.Response == nil || !s.Response.OK {
		t.Fatalf("Response = %+v", s.Response)
	}
	if s.OrdersDataSource != models.OrdersSourceBoth {
		t.Errorf("OrdersDataSource = %q, want both (unknown labels are not trusted)", s.OrdersDataSource)
	}
	// The unrecognized label passes through unchanged.
	if !strings.Contains(s.Response.Message, "esperando stock") {
		t.Errorf("Message = %q", s.Response.Message)
	}
}

func TestOrdersListUnavailableAnswersFromDetail(t *testing.T) {
	api := &fakeOrdersAPI{
		detail:  &models.Order{ID: "77", RawState: "enviado"},
		listErr: &models.ExternalServiceError{Status: 500, EndpointGroup: "orders", Op: "order list"},
	}
	em := metrics.NewMemoryEmitter()
	f := NewOrdersFlow(api, em)

	s := newOrdersState("cómo viene el pedido #77")
	f.Handle(context.Background(), s)

	if s.Response == nil || !s.Response.OK {
		t.Fatalf("Response = %+v, detail alone must still answer", s.Response)
	}
	if s.OrdersDataSource != models.OrdersSourceDetailOnly {
		t.Errorf("OrdersDataSource = %q", s.OrdersDataSource)
	}
	if got := em.TotalCount(metrics.OrdersListUnavailable); got != 1 {
		t.Errorf("orders_list_unavailable = %d, want 1", got)
	}
}

func TestOrdersCancelledOffersEscalation(t *testing.T) {
	api := &fakeOrdersAPI{
		detail: &models.Order{ID: "31", RawState: "cancelado"},
		list:   []models.OrderSummary{{ID: "31", RawState: "cancelado"}},
	}
	f := NewOrdersFlow(api, metrics.NewMemoryEmitter())

	s := newOrdersState("qué pasó con el pedido #31")
	f.Handle(context.Background(), s)

	if s.Response == nil || !strings.Contains(s.Response.Message, msgEscalationOffer) {
		t.Fatalf("Message = %v, want escalation offer appended", s.Response)
	}
	if !s.EscalationOffered {
		t.Error("EscalationOffered not set")
	}
	if s.EscalationToPersist == nil || *s.EscalationToPersist != models.EscalationAwaitingConfirm {
		t.Errorf("EscalationToPersist = %v", s.EscalationToPersist)
	}
}

func TestOrdersFollowUpReusesLastOrderID(t *testing.T) {
	api := &fakeOrdersAPI{
		detail: &models.Order{ID: "77", RawState: "enviado"},
		list:   []models.OrderSummary{{ID: "77", RawState: "enviado"}},
	}
	f := NewOrdersFlow(api, metrics.NewMemoryEmitter())

	s := newOrdersState("y cómo viene ese pedido?")
	s.History = []models.Turn{
		{Sender: models.SenderBot, Content: "PEDIDO #77\nEstado: enviado", Metadata: models.Metadata{models.MetaLastOrderID: "77"}},
	}
	f.Handle(context.Background(), s)

	if api.detailCalls != 1 {
		t.Fatalf("detail calls = %d, want 1", api.detailCalls)
	}
	if s.Response == nil || !strings.Contains(s.Response.Message, "PEDIDO #77") {
		t.Errorf("Response = %+v", s.Response)
	}
}

func TestOrdersListRendering(t *testing.T) {
	t.Run("recent orders capped at five", func(t *testing.T) {
		api := &fakeOrdersAPI{list: []models.OrderSummary{
			{ID: "1", RawState: "entregado"}, {ID: "2", RawState: "enviado"},
			{ID: "3", RawState: "pendiente"}, {ID: "4", RawState: "en proceso"},
			{ID: "5", RawState: "entregado"}, {ID: "6", RawState: "entregado"},
		}}
		f := NewOrdersFlow(api, metrics.NewMemoryEmitter())

		s := newOrdersState("quiero ver mis pedidos")
		f.Handle(context.Background(), s)

		if s.Response == nil {
			t.Fatal("turn not resolved")
		}
		if strings.Contains(s.Response.Message, "PEDIDO #6") {
			t.Errorf("list not capped:\n%s", s.Response.Message)
		}
		if !strings.Contains(s.Response.Message, "PEDIDO #5") {
			t.Errorf("fifth order missing:\n%s", s.Response.Message)
		}
	})

	t.Run("empty account", func(t *testing.T) {
		f := NewOrdersFlow(&fakeOrdersAPI{}, metrics.NewMemoryEmitter())
		s := newOrdersState("quiero ver mis pedidos")
		f.Handle(context.Background(), s)

		if s.Response == nil || s.Response.Message != msgOrdersNoOrders {
			t.Errorf("Response = %+v", s.Response)
		}
	})
}

func TestOrdersDetailErrorMapsToUserCopy(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		message string
		auth    bool
	}{
		{"unauthorized", 401, msgSessionExpired, true},
		{"forbidden", 403, msgForbidden, false},
		{"not found", 404, msgNotFound, false},
		{"server error", 500, msgBackendError, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := &fakeOrdersAPI{detailErr: &models.ExternalServiceError{Status: tc.status, EndpointGroup: "orders", Op: "order detail"}}
			f := NewOrdersFlow(api, metrics.NewMemoryEmitter())

			s := newOrdersState("pedido #12")
			f.Handle(context.Background(), s)

			if s.Response == nil || s.Response.Message != tc.message {
				t.Fatalf("Response = %+v, want %q", s.Response, tc.message)
			}
			if s.Response.RequiresAuth != tc.auth {
				t.Errorf("RequiresAuth = %v, want %v", s.Response.RequiresAuth, tc.auth)
			}
		})
	}
}
