package flow

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/lacomiqueria/chatbot/internal/enrich"
	"github.com/lacomiqueria/chatbot/internal/flowstate"
	"github.com/lacomiqueria/chatbot/internal/metrics"
	"github.com/lacomiqueria/chatbot/internal/models"
)

// OrdersFlow answers authenticated order questions deterministically: the
// language model never free-forms an order answer. Detail and list are
// fetched in parallel and reconciled; a canonical-state disagreement is
// surfaced explicitly instead of silently picking a source.
type OrdersFlow struct {
	orders  enrich.OrdersAPI
	metrics metrics.Emitter
}

// NewOrdersFlow creates the deterministic orders flow handler.
func NewOrdersFlow(api enrich.OrdersAPI, em metrics.Emitter) *OrdersFlow {
	return &OrdersFlow{orders: api, metrics: em}
}

// Handles claims authenticated turns routed to the orders intent.
func (f *OrdersFlow) Handles(s *ResolutionState) bool {
	return s.Auth.Authenticated() && s.EffectiveIntent.Intent == models.IntentOrders
}

var explicitOrderID = regexp.MustCompile(`(?i)(?:pedido|orden|compra|order)?\s*#\s*(\d{1,10})|(?:pedido|orden|compra)\s+(?:n[uú]mero\s+|nro\.?\s*)?(\d{1,10})`)

var orderFollowUpPattern = regexp.MustCompile(`(?i)\b(ese|este|mi|el)\s+pedido\b|\bqu[eé]\s+(ten[ií]a|inclu[ií]a|contiene)\b|\bc[oó]mo\s+viene\b|\blleg[oó]\b`)

// Handle resolves an order id (explicit, or reused from history on a clear
// follow-up), fetches detail and list in parallel, reconciles, and renders.
func (f *OrdersFlow) Handle(ctx context.Context, s *ResolutionState) {
	orderID := resolveOrderID(s)
	slog.Debug("orders flow", "order_id", orderID, "conversation_id", s.ConversationID)

	if orderID == "" {
		f.handleList(ctx, s)
		return
	}

	detail, detailErr, summaries, listErr := f.fetchBoth(ctx, s.Auth, orderID)

	if detailErr != nil {
		s.Resolve("orders", mapExternalError(detailErr, s.ConversationID))
		return
	}

	if listErr != nil {
		// Detail succeeded but the list did not: answer from the single
		// source, mark the turn, and make the uncertainty observable.
		f.metrics.Count(metrics.OrdersListUnavailable, nil)
		s.OrdersDataSource = models.OrdersSourceDetailOnly
		f.respondWithOrder(s, detail)
		return
	}

	if conflict, listRaw := stateConflict(detail, summaries); conflict {
		f.metrics.Count(metrics.OrdersDataConflicts, nil)
		s.OrdersDataSource = models.OrdersSourceConflict
		s.LastOrderID = detail.ID
		message := fmt.Sprintf(msgOrdersConflict, detail.RawState, listRaw)
		s.Resolve("orders", models.OkResponse(message, s.ConversationID, models.IntentOrders))
		return
	}

	s.OrdersDataSource = models.OrdersSourceBoth
	f.respondWithOrder(s, detail)
}

// resolveOrderID finds an explicit id in the text, or reuses the most
// recently discussed order id when the message is a clear follow-up.
func resolveOrderID(s *ResolutionState) string {
	if id := s.EffectiveIntent.Entities["order_id"]; id != "" {
		return id
	}
	if m := explicitOrderID.FindStringSubmatch(s.EffectiveText); m != nil {
		if m[1] != "" {
			return m[1]
		}
		return m[2]
	}
	if orderFollowUpPattern.MatchString(s.EffectiveText) {
		return flowstate.LastMentionedOrderID(s.History)
	}
	return ""
}

// fetchBoth runs the detail and list calls in parallel.
func (f *OrdersFlow) fetchBoth(ctx context.Context, auth enrich.AuthContext, orderID string) (*models.Order, error, []models.OrderSummary, error) {
	var (
		detail    *models.Order
		detailErr error
		summaries []models.OrderSummary
		listErr   error
	)
	done := make(chan struct{})
	go func() {
		summaries, listErr = f.orders.OrderList(ctx, auth)
		close(done)
	}()
	detail, detailErr = f.orders.OrderDetail(ctx, auth, orderID)
	<-done
	return detail, detailErr, summaries, listErr
}

// stateConflict reports whether the detail and list views disagree on the
// canonical state of the same order. Raw labels outside the canonical set are
// displayed but never trusted for the check.
func stateConflict(detail *models.Order, summaries []models.OrderSummary) (bool, string) {
	detailState := detail.CanonicalState()
	if detailState == models.OrderStateUnknown {
		return false, ""
	}
	for _, s := range summaries {
		if s.ID != detail.ID {
			continue
		}
		listState := s.CanonicalState()
		if listState == models.OrderStateUnknown {
			return false, ""
		}
		if listState != detailState {
			return true, s.RawState
		}
		return false, ""
	}
	return false, ""
}

// respondWithOrder renders the deterministic order answer and, for a
// cancelled order, offers escalation and arms the escalation flow.
func (f *OrdersFlow) respondWithOrder(s *ResolutionState, order *models.Order) {
	s.LastOrderID = order.ID
	message := renderOrderDetail(order)

	if order.CanonicalState() == models.OrderStateCancelled {
		message += "\n\n" + msgEscalationOffer
		s.EscalationOffered = true
		s.SetEscalation(models.EscalationAwaitingConfirm)
	}

	s.Resolve("orders", models.OkResponse(message, s.ConversationID, models.IntentOrders))
}

// handleList renders the customer's recent orders when no id is resolvable.
func (f *OrdersFlow) handleList(ctx context.Context, s *ResolutionState) {
	summaries, err := f.orders.OrderList(ctx, s.Auth)
	if err != nil {
		s.Resolve("orders", mapExternalError(err, s.ConversationID))
		return
	}
	if len(summaries) == 0 {
		s.Resolve("orders", models.OkResponse(msgOrdersNoOrders, s.ConversationID, models.IntentOrders))
		return
	}

	var b strings.Builder
	b.WriteString("Tus últimos pedidos:\n")
	for i, sum := range summaries {
		if i == 5 {
			break
		}
		fmt.Fprintf(&b, "• PEDIDO #%s — %s\n", sum.ID, displayState(sum.RawState))
	}
	b.WriteString("Decime el número de pedido y te doy el detalle.")
	s.Resolve("orders", models.OkResponse(b.String(), s.ConversationID, models.IntentOrders))
}

// renderOrderDetail renders the deterministic order template.
func renderOrderDetail(order *models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PEDIDO #%s\n", order.ID)
	fmt.Fprintf(&b, "Estado: %s\n", displayState(order.RawState))
	if order.Tracking != "" {
		fmt.Fprintf(&b, "Seguimiento: %s\n", order.Tracking)
	}
	if order.ShippingMethod != "" {
		fmt.Fprintf(&b, "Envío: %s\n", order.ShippingMethod)
	}
	if len(order.Items) > 0 {
		b.WriteString("Incluye:\n")
		for _, item := range order.Items {
			fmt.Fprintf(&b, "• %dx %s\n", item.Quantity, item.Title)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// displayState shows the Spanish label for canonical states and passes
// unrecognized raw labels through untouched.
func displayState(raw string) string {
	switch models.CanonicalizeOrderState(raw) {
	case models.OrderStatePending:
		return "pendiente"
	case models.OrderStateProcessing:
		return "en proceso"
	case models.OrderStateShipped:
		return "enviado"
	case models.OrderStateDelivered:
		return "entregado"
	case models.OrderStateCancelled:
		return "cancelado"
	}
	return raw
}
