package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lacomiqueria/chatbot/internal/models"
	"github.com/lacomiqueria/chatbot/internal/store"
)

// failingStore wraps the in-memory store with a broken turn repo so the
// health probe degrades.
type failingStore struct {
	*store.InMemoryStore
}

func (f *failingStore) RecentTurns(conversationID string, limit int) ([]models.Turn, error) {
	return nil, errors.New("connection refused")
}

func serve(s *Server, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return body
}

func TestHealthHealthy(t *testing.T) {
	s := NewServer(store.NewInMemoryStore())

	rec := serve(s, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "healthy" {
		t.Errorf("status field = %v", body["status"])
	}
}

func TestHealthDegradedWhenStoreFails(t *testing.T) {
	s := NewServer(&failingStore{store.NewInMemoryStore()})

	rec := serve(s, http.MethodGet, "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "degraded" {
		t.Errorf("status field = %v", body["status"])
	}
}

func TestHealthMethodNotAllowed(t *testing.T) {
	s := NewServer(store.NewInMemoryStore())
	rec := serve(s, http.MethodPost, "/health")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestConversationTurns(t *testing.T) {
	st := store.NewInMemoryStore()
	for _, content := range []string{"hola", "¡Hola! Soy el asistente de La Comiquería.", "tenés mangas?"} {
		if _, err := st.AppendTurn(models.Turn{ConversationID: "wa:549115555", Sender: models.SenderUser, Content: content}); err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
	}
	s := NewServer(st)

	rec := serve(s, http.MethodGet, "/conversations/wa:549115555/turns?limit=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["conversation_id"] != "wa:549115555" {
		t.Errorf("conversation_id = %v", body["conversation_id"])
	}
	if count, ok := body["count"].(float64); !ok || int(count) != 2 {
		t.Errorf("count = %v, want 2", body["count"])
	}
	turns, ok := body["turns"].([]interface{})
	if !ok || len(turns) != 2 {
		t.Fatalf("turns = %v", body["turns"])
	}
	first, _ := turns[0].(map[string]interface{})
	if first["content"] != "tenés mangas?" {
		t.Errorf("first turn = %v, want newest first", first["content"])
	}
}

func TestConversationTurnsBadLimit(t *testing.T) {
	s := NewServer(store.NewInMemoryStore())

	for _, target := range []string{
		"/conversations/wa:1/turns?limit=abc",
		"/conversations/wa:1/turns?limit=0",
		"/conversations/wa:1/turns?limit=-3",
	} {
		rec := serve(s, http.MethodGet, target)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}

func TestConversationTurnsUnknownPath(t *testing.T) {
	s := NewServer(store.NewInMemoryStore())

	for _, target := range []string{
		"/conversations/wa:1/metadata",
		"/conversations/wa:1",
	} {
		rec := serve(s, http.MethodGet, target)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", target, rec.Code)
		}
	}
}

func TestTwilioWebhookUnconfigured(t *testing.T) {
	s := NewServer(store.NewInMemoryStore())
	rec := serve(s, http.MethodPost, "/webhook/twilio")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestTwilioWebhookDelegates(t *testing.T) {
	called := false
	hook := func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}
	s := NewServer(store.NewInMemoryStore(), WithTwilioWebhook(hook))

	rec := serve(s, http.MethodPost, "/webhook/twilio")
	if rec.Code != http.StatusOK || !called {
		t.Errorf("status = %d, called = %v", rec.Code, called)
	}

	rec = serve(s, http.MethodGet, "/webhook/twilio")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rec.Code)
	}
}
