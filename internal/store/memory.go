package store

import (
	"sync"
	"time"

	"github.com/lacomiqueria/chatbot/internal/models"
)

// InMemoryStore is a Store backed by process memory, for tests and local
// development.
type InMemoryStore struct {
	mu     sync.Mutex
	nextID int64
	turns  map[string][]models.Turn
	dedup  map[string]*ProcessedResult
	audits []models.AuditRecord
}

var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		turns: make(map[string][]models.Turn),
		dedup: make(map[string]*ProcessedResult),
	}
}

func dedupKey(source, eventID string) string { return source + "|" + eventID }

func (s *InMemoryStore) AppendTurn(turn models.Turn) (int64, error) {
	if turn.ConversationID == "" {
		return 0, models.ErrEmptyConversationID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	turn.ID = s.nextID
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	s.turns[turn.ConversationID] = append(s.turns[turn.ConversationID], turn)
	return turn.ID, nil
}

func (s *InMemoryStore) RecentTurns(conversationID string, limit int) ([]models.Turn, error) {
	if conversationID == "" {
		return nil, models.ErrEmptyConversationID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.turns[conversationID]
	var out []models.Turn
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *InMemoryStore) RecordInbound(source, eventID, conversationID string) (bool, error) {
	if eventID == "" {
		return false, models.ErrEmptyEventID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := dedupKey(source, eventID)
	if _, exists := s.dedup[key]; exists {
		return false, nil
	}
	s.dedup[key] = &ProcessedResult{
		Source:          source,
		ExternalEventID: eventID,
		ConversationID:  conversationID,
		ReceivedAt:      time.Now(),
	}
	return true, nil
}

func (s *InMemoryStore) GetProcessedResult(source, eventID string) (*ProcessedResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.dedup[dedupKey(source, eventID)]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *InMemoryStore) SaveProcessedResult(source, eventID string, resp *models.Wf1Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.dedup[dedupKey(source, eventID)]
	if !ok {
		return nil
	}
	now := time.Now()
	r.Response = resp
	r.ProcessedAt = &now
	return nil
}

func (s *InMemoryStore) ClearInbound(source, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := dedupKey(source, eventID)
	if r, ok := s.dedup[key]; ok && r.ProcessedAt == nil {
		delete(s.dedup, key)
	}
	return nil
}

func (s *InMemoryStore) AddAuditRecord(rec models.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.audits = append(s.audits, rec)
	return nil
}

// AuditRecords returns a copy of the stored audit records (for tests).
func (s *InMemoryStore) AuditRecords() []models.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AuditRecord(nil), s.audits...)
}

// TurnCount returns how many turns are stored for a conversation (for tests).
func (s *InMemoryStore) TurnCount(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns[conversationID])
}

func (s *InMemoryStore) Close() error { return nil }
