// Package lookup provides the guest order-lookup collaborator: verifying an
// order against customer-supplied identity factors without a session.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lacomiqueria/chatbot/internal/models"
)

// Identity carries the customer-supplied identity factors submitted together
// with an order id. At least two valid factors are required before a lookup
// executes.
type Identity struct {
	DNI      string `json:"dni,omitempty"`
	Name     string `json:"name,omitempty"`
	LastName string `json:"last_name,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// FactorCount returns how many identity factors are present.
func (id Identity) FactorCount() int {
	n := 0
	for _, v := range []string{id.DNI, id.Name, id.LastName, id.Phone} {
		if v != "" {
			n++
		}
	}
	return n
}

// OrderLookup is the order-lookup collaborator contract. Failures are typed:
// a *models.LookupError with a closed failure code, or a generic error for
// backend trouble.
type OrderLookup interface {
	Lookup(ctx context.Context, orderID string, identity Identity) (*models.Order, error)
}

// HTTPClient calls the storefront guest order-lookup endpoint.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a lookup client for the given storefront base URL.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type lookupRequest struct {
	OrderID  string   `json:"order_id"`
	Identity Identity `json:"identity"`
}

type lookupResponse struct {
	OK    bool          `json:"ok"`
	Order *models.Order `json:"order,omitempty"`
	Code  string        `json:"code,omitempty"`
}

// Lookup verifies the order against the supplied identity factors.
func (c *HTTPClient) Lookup(ctx context.Context, orderID string, identity Identity) (*models.Order, error) {
	slog.Debug("order lookup request", "order_id", orderID, "factors", identity.FactorCount())

	body, err := json.Marshal(lookupRequest{OrderID: orderID, Identity: identity})
	if err != nil {
		return nil, fmt.Errorf("failed to encode lookup request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/guest/orders/lookup", strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to build lookup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, &models.LookupError{Code: models.LookupNotFoundOrMismatch}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return nil, &models.LookupError{Code: models.LookupInvalidPayload}
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &models.LookupError{Code: models.LookupUnauthorized}
	case http.StatusTooManyRequests:
		return nil, &models.LookupError{Code: models.LookupThrottled}
	default:
		return nil, fmt.Errorf("lookup backend returned status %d", resp.StatusCode)
	}

	var lr lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("failed to decode lookup response: %w", err)
	}
	if !lr.OK || lr.Order == nil {
		// Backends that answer 200 with a typed code in the body.
		if code := models.LookupFailureCode(lr.Code); code != "" {
			return nil, &models.LookupError{Code: code}
		}
		return nil, &models.LookupError{Code: models.LookupNotFoundOrMismatch}
	}

	slog.Debug("order lookup succeeded", "order_id", lr.Order.ID, "state", lr.Order.RawState)
	return lr.Order, nil
}
