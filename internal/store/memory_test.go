package store

import (
	"testing"
	"time"

	"github.com/lacomiqueria/chatbot/internal/models"
)

func TestInMemoryStoreRecentTurnsNewestFirst(t *testing.T) {
	s := NewInMemoryStore()
	for _, content := range []string{"uno", "dos", "tres"} {
		if _, err := s.AppendTurn(models.Turn{ConversationID: "wa:1", Sender: models.SenderUser, Content: content}); err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
	}

	turns, err := s.RecentTurns("wa:1", 2)
	if err != nil {
		t.Fatalf("RecentTurns() error = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("len = %d, want 2", len(turns))
	}
	if turns[0].Content != "tres" || turns[1].Content != "dos" {
		t.Errorf("order = %q, %q, want newest first", turns[0].Content, turns[1].Content)
	}
}

func TestInMemoryStoreAppendTurnValidation(t *testing.T) {
	s := NewInMemoryStore()
	if _, err := s.AppendTurn(models.Turn{}); err != models.ErrEmptyConversationID {
		t.Errorf("AppendTurn() error = %v", err)
	}
}

func TestInMemoryStoreDedupLifecycle(t *testing.T) {
	s := NewInMemoryStore()

	fresh, err := s.RecordInbound("whatsapp", "evt-1", "wa:1")
	if err != nil || !fresh {
		t.Fatalf("RecordInbound() = %v, %v", fresh, err)
	}
	fresh, err = s.RecordInbound("whatsapp", "evt-1", "wa:1")
	if err != nil || fresh {
		t.Fatalf("second RecordInbound() = %v, %v, want not fresh", fresh, err)
	}
	// Same event id under a different source is a different event.
	fresh, err = s.RecordInbound("twilio", "evt-1", "wa:1")
	if err != nil || !fresh {
		t.Fatalf("cross-source RecordInbound() = %v, %v", fresh, err)
	}

	// In flight: record exists without a response.
	r, err := s.GetProcessedResult("whatsapp", "evt-1")
	if err != nil {
		t.Fatalf("GetProcessedResult() error = %v", err)
	}
	if r == nil || r.Response != nil || r.ProcessedAt != nil {
		t.Fatalf("in-flight record = %+v", r)
	}

	resp := models.OkResponse("listo", "wa:1", models.IntentOrders)
	if err := s.SaveProcessedResult("whatsapp", "evt-1", resp); err != nil {
		t.Fatalf("SaveProcessedResult() error = %v", err)
	}
	r, err = s.GetProcessedResult("whatsapp", "evt-1")
	if err != nil || r == nil || r.Response == nil {
		t.Fatalf("processed record = %+v, %v", r, err)
	}
	if r.Response.Message != "listo" {
		t.Errorf("stored response = %+v", r.Response)
	}
	if r.ProcessedAt == nil || time.Since(*r.ProcessedAt) > time.Minute {
		t.Errorf("ProcessedAt = %v", r.ProcessedAt)
	}
}

func TestInMemoryStoreClearInboundOnlyReleasesInFlight(t *testing.T) {
	s := NewInMemoryStore()

	// An in-flight record is released so the event can be redelivered.
	s.RecordInbound("whatsapp", "evt-1", "wa:1")
	if err := s.ClearInbound("whatsapp", "evt-1"); err != nil {
		t.Fatalf("ClearInbound() error = %v", err)
	}
	if fresh, _ := s.RecordInbound("whatsapp", "evt-1", "wa:1"); !fresh {
		t.Error("cleared event must accept a redelivery")
	}

	// A processed record is immutable: clearing must not discard the stored
	// response.
	s.SaveProcessedResult("whatsapp", "evt-1", models.FailureResponse("x"))
	if err := s.ClearInbound("whatsapp", "evt-1"); err != nil {
		t.Fatalf("ClearInbound() error = %v", err)
	}
	if fresh, _ := s.RecordInbound("whatsapp", "evt-1", "wa:1"); fresh {
		t.Error("processed event must stay deduplicated")
	}
}

func TestInMemoryStoreAuditRecords(t *testing.T) {
	s := NewInMemoryStore()
	if err := s.AddAuditRecord(models.AuditRecord{RequestID: "r1", ConversationID: "wa:1", Status: models.AuditStatusSuccess}); err != nil {
		t.Fatalf("AddAuditRecord() error = %v", err)
	}
	recs := s.AuditRecords()
	if len(recs) != 1 || recs[0].RequestID != "r1" {
		t.Fatalf("AuditRecords() = %+v", recs)
	}
	if recs[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not defaulted")
	}
}

func TestDetectDSNType(t *testing.T) {
	cases := []struct {
		dsn  string
		want string
	}{
		{"postgres://user:pw@localhost/lacobot", "postgres"},
		{"postgresql://localhost/lacobot", "postgres"},
		{"host=localhost user=lacobot dbname=lacobot", "postgres"},
		{"/var/lib/lacobot/lacobot.db", "sqlite"},
		{"file:lacobot.db?cache=shared", "sqlite"},
	}
	for _, tc := range cases {
		if got := DetectDSNType(tc.dsn); got != tc.want {
			t.Errorf("DetectDSNType(%q) = %q, want %q", tc.dsn, got, tc.want)
		}
	}
}
