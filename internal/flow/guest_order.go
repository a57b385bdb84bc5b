package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lacomiqueria/chatbot/internal/lookup"
	"github.com/lacomiqueria/chatbot/internal/metrics"
	"github.com/lacomiqueria/chatbot/internal/models"
)

// GuestOrderFlow is the guest order lookup state machine: an unauthenticated
// customer proves ownership of an order with an order id plus two valid
// identity factors before any order data is revealed.
type GuestOrderFlow struct {
	lookup  lookup.OrderLookup
	limiter *lookup.Limiter
	metrics metrics.Emitter
}

// NewGuestOrderFlow creates the guest order lookup flow handler.
func NewGuestOrderFlow(ol lookup.OrderLookup, limiter *lookup.Limiter, em metrics.Emitter) *GuestOrderFlow {
	return &GuestOrderFlow{lookup: ol, limiter: limiter, metrics: em}
}

// Handles reports whether this flow claims the turn: either the flow is
// already active, or an unauthenticated customer is asking about orders.
func (f *GuestOrderFlow) Handles(s *ResolutionState) bool {
	if s.Flows.GuestOrder != models.GuestOrderNone {
		return true
	}
	return !s.Auth.Authenticated() && s.EffectiveIntent.Intent == models.IntentOrders
}

// Handle advances the state machine by one turn.
func (f *GuestOrderFlow) Handle(ctx context.Context, s *ResolutionState) {
	signals := extractLookupSignals(s.EffectiveText)
	slog.Debug("guest order flow", "state", s.Flows.GuestOrder, "order_id_present", signals.OrderID != "",
		"valid_factors", signals.ValidFactorCount(), "invalid_factors", len(signals.Invalid))

	switch s.Flows.GuestOrder {
	case models.GuestOrderNone:
		f.handleEntry(s, signals)
	case models.GuestOrderAwaitingAnswer:
		f.handleHasDataAnswer(ctx, s, signals)
	case models.GuestOrderAwaitingPayload:
		f.handlePayload(ctx, s, signals)
	}
}

// handleEntry starts the flow. A message that already carries usable lookup
// signals skips straight to requesting the missing data.
func (f *GuestOrderFlow) handleEntry(s *ResolutionState, signals lookupSignals) {
	if signals.HasLookupIntent() {
		s.SetGuestOrder(models.GuestOrderAwaitingPayload)
		s.Resolve("guest_order", models.OkResponse(clarificationMessage(signals), s.ConversationID, models.IntentOrders))
		return
	}
	s.SetGuestOrder(models.GuestOrderAwaitingAnswer)
	s.Resolve("guest_order", models.OkResponse(msgGuestAskHasData, s.ConversationID, models.IntentOrders))
}

// handleHasDataAnswer interprets the yes/no reply to "do you have these data
// points?". A message already carrying lookup signals counts as a yes.
func (f *GuestOrderFlow) handleHasDataAnswer(ctx context.Context, s *ResolutionState, signals lookupSignals) {
	if signals.HasLookupIntent() || signals.Complete() {
		s.SetGuestOrder(models.GuestOrderAwaitingPayload)
		f.handlePayload(ctx, s, signals)
		return
	}
	switch interpretYesNo(s.EffectiveText) {
	case AnswerNo:
		s.ClearGuestOrder()
		s.Resolve("guest_order", models.AuthRequiredResponse(msgGuestAuthRequired))
	case AnswerYes:
		s.SetGuestOrder(models.GuestOrderAwaitingPayload)
		s.Resolve("guest_order", models.OkResponse(clarificationMessage(signals), s.ConversationID, models.IntentOrders))
	default:
		s.SetGuestOrder(models.GuestOrderAwaitingAnswer)
		s.Resolve("guest_order", models.OkResponse(msgGuestAnswerUnclear, s.ConversationID, models.IntentOrders))
	}
}

// handlePayload validates the submitted payload and executes the lookup once
// an order id and at least two valid factors are present.
func (f *GuestOrderFlow) handlePayload(ctx context.Context, s *ResolutionState, signals lookupSignals) {
	if !signals.Complete() {
		s.SetGuestOrder(models.GuestOrderAwaitingPayload)
		s.Resolve("guest_order", models.OkResponse(clarificationMessage(signals), s.ConversationID, models.IntentOrders))
		return
	}

	decision := f.limiter.Check(lookup.Key(s.ConversationID, signals.OrderID, s.RemoteIP))
	if !decision.Allowed {
		f.metrics.Count(metrics.OrderLookupOutcomes, map[string]string{"outcome": "throttled"})
		s.SetGuestOrder(models.GuestOrderAwaitingPayload)
		s.Resolve("guest_order", models.OkResponse(msgGuestThrottled, s.ConversationID, models.IntentOrders))
		return
	}
	if decision.Degraded {
		f.metrics.Count(metrics.OrderLookupDegraded, nil)
	}

	order, err := f.lookup.Lookup(ctx, signals.OrderID, signals.Identity)
	if err != nil {
		f.handleLookupFailure(s, err)
		return
	}

	f.metrics.Count(metrics.OrderLookupOutcomes, map[string]string{"outcome": "success"})
	s.LastOrderID = order.ID
	s.ClearGuestOrder()
	s.Resolve("guest_order", models.OkResponse(renderOrderDetail(order), s.ConversationID, models.IntentOrders))
}

// handleLookupFailure maps a typed lookup failure to its specific message.
// The flow stays in awaiting_lookup_payload so the customer can correct the
// payload; nothing here ever falls through to the generic fallback message.
func (f *GuestOrderFlow) handleLookupFailure(s *ResolutionState, err error) {
	outcome := "backend_error"
	message := msgBackendError
	if le, ok := models.AsLookupError(err); ok {
		outcome = string(le.Code)
		switch le.Code {
		case models.LookupNotFoundOrMismatch:
			message = msgGuestVerifyFailed
		case models.LookupInvalidPayload:
			message = msgGuestInvalidData
		case models.LookupUnauthorized:
			message = msgGuestUnauthorized
		case models.LookupThrottled:
			message = msgGuestThrottled
		}
	} else {
		slog.Error("guest order lookup backend failure", "error", err, "conversation_id", s.ConversationID)
	}

	f.metrics.Count(metrics.OrderLookupOutcomes, map[string]string{"outcome": outcome})
	s.SetGuestOrder(models.GuestOrderAwaitingPayload)
	s.Resolve("guest_order", models.OkResponse(message, s.ConversationID, models.IntentOrders))
}

// clarificationMessage builds a specific re-ask: invalid factors first, then
// what is still missing.
func clarificationMessage(signals lookupSignals) string {
	var parts []string

	if len(signals.Invalid) > 0 {
		parts = append(parts, "Estos datos no tienen un formato válido: "+strings.Join(signals.Invalid, ", ")+".")
	}

	var missing []string
	if signals.OrderID == "" {
		missing = append(missing, "número de pedido")
	}
	if need := 2 - signals.ValidFactorCount(); need > 0 {
		factors := signals.MissingFactors()
		if len(factors) > 0 {
			missing = append(missing, "al menos "+pluralFactores(need)+" de estos: "+strings.Join(factors, ", "))
		}
	}
	if len(missing) > 0 {
		parts = append(parts, "Me falta: "+strings.Join(missing, " y ")+".")
	}

	if len(parts) == 0 {
		return msgGuestAskHasData
	}
	return strings.Join(parts, " ")
}

func pluralFactores(n int) string {
	if n == 1 {
		return "un dato más"
	}
	return "dos datos"
}
