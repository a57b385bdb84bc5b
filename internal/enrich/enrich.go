// Package enrich provides the context-enrichment collaborator: fetching
// product, orders, recommendations and payment context from the storefront
// API and assembling it into ordered context blocks for the language model.
package enrich

import (
	"context"

	"github.com/lacomiqueria/chatbot/internal/models"
)

// AuthContext identifies an authenticated storefront session, when present.
type AuthContext struct {
	Token      string `json:"token,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
}

// Authenticated reports whether a session token is present.
func (a AuthContext) Authenticated() bool { return a.Token != "" }

// Request is the input to context enrichment for one turn.
type Request struct {
	Text   string
	Intent models.IntentResult
	Auth   AuthContext
}

// Context block types produced by enrichment.
const (
	BlockProducts        = "products"
	BlockOrders          = "orders"
	BlockOrderDetail     = "order_detail"
	BlockRecommendations = "recommendations"
	BlockPayments        = "payments"
	BlockPolicies        = "policies"
	BlockGuidance        = "guidance"
	BlockDisambiguation  = "disambiguation"
)

// Enricher builds the ordered context block list for a turn. Failures are
// typed *models.ExternalServiceError values carrying an HTTP-like status and
// the endpoint group, so the pipeline can distinguish "catalog unavailable"
// from a generic backend failure.
type Enricher interface {
	BuildContext(ctx context.Context, req Request) ([]models.ContextBlock, error)
}

// OrdersAPI exposes the authenticated orders endpoints used by the
// deterministic orders flow.
type OrdersAPI interface {
	// OrderDetail fetches the detail view of one order.
	OrderDetail(ctx context.Context, auth AuthContext, orderID string) (*models.Order, error)
	// OrderList fetches the customer's order summaries.
	OrderList(ctx context.Context, auth AuthContext) ([]models.OrderSummary, error)
}

// CatalogAPI exposes the catalog query used by the price-comparison fallback
// when no rendered snapshot survives in history.
type CatalogAPI interface {
	// QueryByPrice returns catalog items for a franchise sorted by amount.
	QueryByPrice(ctx context.Context, franchise string, ascending bool, limit int) ([]models.CatalogItem, error)
}
