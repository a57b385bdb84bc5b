package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lacomiqueria/chatbot/internal/models"
)

func TestBuildContextRecommendations(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/recommendations" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotQuery = map[string]string{
			"q":         r.URL.Query().Get("q"),
			"franchise": r.URL.Query().Get("franchise"),
		}
		json.NewEncoder(w).Encode([]models.CatalogItem{{Title: "One Piece Vol. 1", Amount: 5000}})
	}))
	defer srv.Close()

	c := NewStorefrontClient(srv.URL, "key-1")
	blocks, err := c.BuildContext(context.Background(), Request{
		Text: "quiero ver mangas de One Piece",
		Intent: models.IntentResult{
			Intent:   models.IntentRecommendations,
			Entities: map[string]string{"franchise": "one piece"},
		},
	})
	if err != nil {
		t.Fatalf("BuildContext() error = %v", err)
	}
	if len(blocks) != 1 || blocks[0].ContextType != BlockRecommendations {
		t.Fatalf("blocks = %+v", blocks)
	}
	if gotQuery["franchise"] != "one piece" || gotQuery["q"] == "" {
		t.Errorf("query = %v", gotQuery)
	}
}

func TestBuildContextOrdersRequiresAuth(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode([]models.OrderSummary{})
	}))
	defer srv.Close()

	c := NewStorefrontClient(srv.URL, "")
	blocks, err := c.BuildContext(context.Background(), Request{
		Text:   "mis pedidos",
		Intent: models.IntentResult{Intent: models.IntentOrders},
	})
	if err != nil {
		t.Fatalf("BuildContext() error = %v", err)
	}
	if len(blocks) != 0 || calls != 0 {
		t.Errorf("blocks = %v, calls = %d, unauthenticated orders must not hit the API", blocks, calls)
	}
}

func TestBuildContextAuthHeaderForwarded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-Api-Key"); got != "key-1" {
			t.Errorf("X-Api-Key = %q", got)
		}
		json.NewEncoder(w).Encode([]models.OrderSummary{{ID: "1", RawState: "enviado"}})
	}))
	defer srv.Close()

	c := NewStorefrontClient(srv.URL, "key-1")
	blocks, err := c.BuildContext(context.Background(), Request{
		Text:   "mis pedidos",
		Intent: models.IntentResult{Intent: models.IntentOrders},
		Auth:   AuthContext{Token: "tok-1"},
	})
	if err != nil {
		t.Fatalf("BuildContext() error = %v", err)
	}
	if len(blocks) != 1 || blocks[0].ContextType != BlockOrders {
		t.Errorf("blocks = %+v", blocks)
	}
}

func TestGetJSONFailureIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewStorefrontClient(srv.URL, "")
	_, err := c.BuildContext(context.Background(), Request{
		Text:   "qué figuras tenés",
		Intent: models.IntentResult{Intent: models.IntentProducts},
	})
	ese, ok := models.AsExternalServiceError(err)
	if !ok {
		t.Fatalf("error = %v, want ExternalServiceError", err)
	}
	if ese.Status != http.StatusServiceUnavailable || !ese.IsCatalog() {
		t.Errorf("error = %+v", ese)
	}
}

func TestOrderDetailAndList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orders/77":
			json.NewEncoder(w).Encode(models.Order{ID: "77", RawState: "enviado"})
		case "/orders":
			json.NewEncoder(w).Encode([]models.OrderSummary{{ID: "77", RawState: "enviado"}})
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewStorefrontClient(srv.URL, "")
	auth := AuthContext{Token: "tok"}

	order, err := c.OrderDetail(context.Background(), auth, "77")
	if err != nil || order.ID != "77" {
		t.Fatalf("OrderDetail() = %+v, %v", order, err)
	}
	summaries, err := c.OrderList(context.Background(), auth)
	if err != nil || len(summaries) != 1 {
		t.Fatalf("OrderList() = %+v, %v", summaries, err)
	}
}

func TestQueryByPriceSortParam(t *testing.T) {
	var gotSort, gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSort = r.URL.Query().Get("sort")
		gotLimit = r.URL.Query().Get("limit")
		json.NewEncoder(w).Encode([]models.CatalogItem{{Title: "A", Amount: 100}})
	}))
	defer srv.Close()

	c := NewStorefrontClient(srv.URL, "")
	items, err := c.QueryByPrice(context.Background(), "one piece", true, 5)
	if err != nil || len(items) != 1 {
		t.Fatalf("QueryByPrice() = %v, %v", items, err)
	}
	if gotSort != "price_asc" || gotLimit != "5" {
		t.Errorf("sort = %q, limit = %q", gotSort, gotLimit)
	}

	if _, err := c.QueryByPrice(context.Background(), "one piece", false, 3); err != nil {
		t.Fatalf("QueryByPrice() error = %v", err)
	}
	if gotSort != "price_desc" {
		t.Errorf("sort = %q", gotSort)
	}
}

func TestAuthContextAuthenticated(t *testing.T) {
	if (AuthContext{}).Authenticated() {
		t.Error("empty context must not be authenticated")
	}
	if !(AuthContext{Token: "tok"}).Authenticated() {
		t.Error("token must authenticate")
	}
}
