// Package models defines the core data structures for the La Comiquería
// support chatbot.
//
// It includes conversation turns, intent results, context blocks, and the
// response union shared across modules.
package models

import (
	"errors"
	"time"
)

// Sender identifies who produced a conversation turn.
type Sender string

const (
	// SenderUser marks an inbound turn from the customer.
	SenderUser Sender = "user"
	// SenderBot marks an outbound turn produced by the orchestrator.
	SenderBot Sender = "bot"
)

// Metadata is the opaque key/value map attached to a persisted turn.
// Metadata written by the bot on turn N is the only channel by which flow
// state survives to turn N+1; there is no other session store.
type Metadata map[string]any

// Turn represents one persisted conversation turn (user or bot).
type Turn struct {
	ID             int64     `json:"id,omitempty"`
	ConversationID string    `json:"conversation_id"`
	Sender         Sender    `json:"sender"`
	Content        string    `json:"content"`
	Metadata       Metadata  `json:"metadata,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// GetString returns the string value stored under key, or "" when the key is
// absent, explicitly null, or not a string. Unknown value shapes are ignored,
// not fatal, so metadata schema evolution never breaks reconstruction.
func (m Metadata) GetString(key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Has reports whether key is present at all, including an explicit null.
// Presence with a null value means the flow explicitly cleared itself, which
// is distinct from the key never having been written.
func (m Metadata) Has(key string) bool {
	if m == nil {
		return false
	}
	_, ok := m[key]
	return ok
}

// GetBool returns the boolean stored under key, or false when absent or of
// another type.
func (m Metadata) GetBool(key string) bool {
	if m == nil {
		return false
	}
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// GetInt returns the integer stored under key. JSON round-trips numbers as
// float64, so both shapes are accepted.
func (m Metadata) GetInt(key string) int {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// IntentResult is the contract of the external intent classifier.
type IntentResult struct {
	Intent     string            `json:"intent"`
	Entities   map[string]string `json:"entities,omitempty"`
	Confidence float64           `json:"confidence"`
	Sentiment  string            `json:"sentiment,omitempty"`
}

// Known intents routed by the orchestrator.
const (
	IntentOrders          = "orders"
	IntentRecommendations = "recommendations"
	IntentProducts        = "products"
	IntentPayments        = "payments"
	IntentGeneral         = "general"
)

// ContextBlock is one enrichment block assembled per turn. The ordered list is
// append-only and never persisted verbatim; only derived summary fields reach
// bot-turn metadata.
type ContextBlock struct {
	ContextType    string `json:"context_type"`
	ContextPayload string `json:"context_payload"`
}

// CatalogItem is one rendered catalog card. The last rendered set is stored as
// a snapshot in bot-turn metadata and backs the price-comparison fallback.
type CatalogItem struct {
	Title     string  `json:"title"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency,omitempty"`
	Franchise string  `json:"franchise,omitempty"`
	Type      string  `json:"type,omitempty"`
}

// Wf1Response is the single outbound result of a turn. Exactly one variant is
// produced: ok, auth-required, or failure. RequiresAuth is the only field that
// changes HTTP-level handling downstream.
type Wf1Response struct {
	OK             bool   `json:"ok"`
	RequiresAuth   bool   `json:"requires_auth,omitempty"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	Intent         string `json:"intent,omitempty"`
}

// OkResponse builds the success variant.
func OkResponse(message, conversationID, intent string) *Wf1Response {
	return &Wf1Response{OK: true, Message: message, ConversationID: conversationID, Intent: intent}
}

// AuthRequiredResponse builds the auth-required variant.
func AuthRequiredResponse(message string) *Wf1Response {
	return &Wf1Response{OK: false, RequiresAuth: true, Message: message}
}

// FailureResponse builds the generic failure variant.
func FailureResponse(message string) *Wf1Response {
	return &Wf1Response{OK: false, Message: message}
}

// AuditStatus records how a turn resolution ended.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
)

// AuditRecord is one per-request audit row keyed by request id.
type AuditRecord struct {
	RequestID      string      `json:"request_id"`
	ConversationID string      `json:"conversation_id"`
	Status         AuditStatus `json:"status"`
	ResolvedBy     string      `json:"resolved_by,omitempty"`
	Intent         string      `json:"intent,omitempty"`
	ErrorName      string      `json:"error_name,omitempty"`
	LatencyMS      int64       `json:"latency_ms"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Validation sentinels shared across modules.
var (
	ErrEmptyConversationID = errors.New("conversation id cannot be empty")
	ErrEmptyMessage        = errors.New("message cannot be empty")
	ErrEmptyEventID        = errors.New("external event id cannot be empty")
)
