package models

import "strings"

// CanonicalOrderState is the normalized order state used for reconciliation.
// Raw labels outside this set are displayed but never trusted for the
// detail-versus-list conflict check.
type CanonicalOrderState string

const (
	OrderStatePending    CanonicalOrderState = "pending"
	OrderStateProcessing CanonicalOrderState = "processing"
	OrderStateShipped    CanonicalOrderState = "shipped"
	OrderStateDelivered  CanonicalOrderState = "delivered"
	OrderStateCancelled  CanonicalOrderState = "cancelled"
	OrderStateUnknown    CanonicalOrderState = "unknown"
)

// rawStateLabels maps storefront state labels (Spanish and English) to their
// canonical form.
var rawStateLabels = map[string]CanonicalOrderState{
	"pending":    OrderStatePending,
	"pendiente":  OrderStatePending,
	"processing": OrderStateProcessing,
	"procesando": OrderStateProcessing,
	"en proceso": OrderStateProcessing,
	"shipped":    OrderStateShipped,
	"enviado":    OrderStateShipped,
	"en camino":  OrderStateShipped,
	"delivered":  OrderStateDelivered,
	"entregado":  OrderStateDelivered,
	"cancelled":  OrderStateCancelled,
	"canceled":   OrderStateCancelled,
	"cancelado":  OrderStateCancelled,
	"anulado":    OrderStateCancelled,
}

// CanonicalizeOrderState normalizes a raw storefront state label.
func CanonicalizeOrderState(raw string) CanonicalOrderState {
	if s, ok := rawStateLabels[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return OrderStateUnknown
}

// OrderItem is one line item of an order.
type OrderItem struct {
	Title    string  `json:"title"`
	Quantity int     `json:"quantity"`
	Amount   float64 `json:"amount,omitempty"`
}

// Order is the detail view of an order returned by the storefront.
type Order struct {
	ID             string      `json:"id"`
	RawState       string      `json:"raw_state"`
	Tracking       string      `json:"tracking,omitempty"`
	ShippingMethod string      `json:"shipping_method,omitempty"`
	Items          []OrderItem `json:"items,omitempty"`
	Total          float64     `json:"total,omitempty"`
}

// CanonicalState returns the canonical form of the order's raw state.
func (o Order) CanonicalState() CanonicalOrderState {
	return CanonicalizeOrderState(o.RawState)
}

// OrderSummary is the list view of an order returned by the storefront.
type OrderSummary struct {
	ID       string `json:"id"`
	RawState string `json:"raw_state"`
}

// CanonicalState returns the canonical form of the summary's raw state.
func (s OrderSummary) CanonicalState() CanonicalOrderState {
	return CanonicalizeOrderState(s.RawState)
}

// OrdersDataSource records which storefront calls backed an orders answer.
const (
	OrdersSourceBoth       = "detail_and_list"
	OrdersSourceDetailOnly = "detail_only"
	OrdersSourceConflict   = "conflict"
)
