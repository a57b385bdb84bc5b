package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lacomiqueria/chatbot/internal/models"
)

// StorefrontClient is the HTTP implementation of Enricher, OrdersAPI and
// CatalogAPI against the storefront API.
type StorefrontClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// Compile-time interface checks.
var (
	_ Enricher   = (*StorefrontClient)(nil)
	_ OrdersAPI  = (*StorefrontClient)(nil)
	_ CatalogAPI = (*StorefrontClient)(nil)
)

// NewStorefrontClient creates a storefront client for the given base URL.
func NewStorefrontClient(baseURL, apiKey string) *StorefrontClient {
	return &StorefrontClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// BuildContext assembles context blocks for the turn, choosing endpoint
// groups by routed intent.
func (c *StorefrontClient) BuildContext(ctx context.Context, req Request) ([]models.ContextBlock, error) {
	slog.Debug("building enrichment context", "intent", req.Intent.Intent, "authenticated", req.Auth.Authenticated())

	var blocks []models.ContextBlock
	switch req.Intent.Intent {
	case models.IntentOrders:
		if req.Auth.Authenticated() {
			payload, err := c.getJSON(ctx, "orders", "/orders", url.Values{}, req.Auth)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, models.ContextBlock{ContextType: BlockOrders, ContextPayload: payload})
		}
	case models.IntentRecommendations:
		q := url.Values{"q": {req.Text}}
		if f := req.Intent.Entities["franchise"]; f != "" {
			q.Set("franchise", f)
		}
		if t := req.Intent.Entities["type"]; t != "" {
			q.Set("type", t)
		}
		payload, err := c.getJSON(ctx, "recommendations", "/recommendations", q, req.Auth)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, models.ContextBlock{ContextType: BlockRecommendations, ContextPayload: payload})
	case models.IntentProducts:
		payload, err := c.getJSON(ctx, "catalog", "/products/search", url.Values{"q": {req.Text}}, req.Auth)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, models.ContextBlock{ContextType: BlockProducts, ContextPayload: payload})
	case models.IntentPayments:
		payload, err := c.getJSON(ctx, "payments", "/payments/options", url.Values{}, req.Auth)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, models.ContextBlock{ContextType: BlockPayments, ContextPayload: payload})
	}
	return blocks, nil
}

// OrderDetail fetches one order's detail view.
func (c *StorefrontClient) OrderDetail(ctx context.Context, auth AuthContext, orderID string) (*models.Order, error) {
	payload, err := c.getJSON(ctx, "orders", "/orders/"+url.PathEscape(orderID), url.Values{}, auth)
	if err != nil {
		return nil, err
	}
	var order models.Order
	if err := json.Unmarshal([]byte(payload), &order); err != nil {
		return nil, fmt.Errorf("failed to decode order detail: %w", err)
	}
	return &order, nil
}

// OrderList fetches the customer's order summaries.
func (c *StorefrontClient) OrderList(ctx context.Context, auth AuthContext) ([]models.OrderSummary, error) {
	payload, err := c.getJSON(ctx, "orders", "/orders", url.Values{}, auth)
	if err != nil {
		return nil, err
	}
	var summaries []models.OrderSummary
	if err := json.Unmarshal([]byte(payload), &summaries); err != nil {
		return nil, fmt.Errorf("failed to decode order list: %w", err)
	}
	return summaries, nil
}

// QueryByPrice returns catalog items for a franchise sorted by amount.
func (c *StorefrontClient) QueryByPrice(ctx context.Context, franchise string, ascending bool, limit int) ([]models.CatalogItem, error) {
	sort := "price_desc"
	if ascending {
		sort = "price_asc"
	}
	q := url.Values{"franchise": {franchise}, "sort": {sort}, "limit": {strconv.Itoa(limit)}}
	payload, err := c.getJSON(ctx, "catalog", "/products/search", q, AuthContext{})
	if err != nil {
		return nil, err
	}
	var items []models.CatalogItem
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, fmt.Errorf("failed to decode catalog items: %w", err)
	}
	return items, nil
}

// getJSON performs a GET against the storefront API and returns the raw body.
// Non-2xx statuses and transport failures become typed external-service
// errors tagged with the endpoint group.
func (c *StorefrontClient) getJSON(ctx context.Context, group, path string, query url.Values, auth AuthContext) (string, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build storefront request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	if auth.Authenticated() {
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &models.ExternalServiceError{Status: 0, EndpointGroup: group, Op: "storefront " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Error("storefront request failed", "path", path, "status", resp.StatusCode, "group", group)
		return "", &models.ExternalServiceError{Status: resp.StatusCode, EndpointGroup: group, Op: "storefront " + path}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &models.ExternalServiceError{Status: 0, EndpointGroup: group, Op: "storefront " + path, Err: err}
	}
	return string(body), nil
}
