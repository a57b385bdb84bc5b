// Package store provides storage backends for the support chatbot: the
// conversation turn log, the inbound-event idempotency gate, and audit
// records. SQLite and PostgreSQL backends implement the same interface.
package store

import (
	"time"

	"github.com/lacomiqueria/chatbot/internal/models"
)

// ProcessedResult is the previously produced outcome of an external event,
// returned verbatim when the same event is delivered again.
type ProcessedResult struct {
	Source          string              `json:"source"`
	ExternalEventID string              `json:"external_event_id"`
	ConversationID  string              `json:"conversation_id"`
	Response        *models.Wf1Response `json:"response,omitempty"`
	ReceivedAt      time.Time           `json:"received_at"`
	ProcessedAt     *time.Time          `json:"processed_at,omitempty"`
}

// TurnRepo is the conversation turn log.
type TurnRepo interface {
	// AppendTurn persists one turn and returns its row id.
	AppendTurn(turn models.Turn) (int64, error)
	// RecentTurns returns up to limit turns for the conversation, newest
	// first.
	RecentTurns(conversationID string, limit int) ([]models.Turn, error)
}

// DedupRepo is the inbound-event idempotency gate, keyed by
// (source, external event id).
type DedupRepo interface {
	// RecordInbound inserts a new inbound event record. Returns false if the
	// event was already recorded (duplicate delivery).
	RecordInbound(source, eventID, conversationID string) (bool, error)
	// GetProcessedResult returns the stored result for an event, or nil when
	// the event is unknown or still in flight.
	GetProcessedResult(source, eventID string) (*ProcessedResult, error)
	// SaveProcessedResult stores the produced response and marks the event
	// processed.
	SaveProcessedResult(source, eventID string, resp *models.Wf1Response) error
	// ClearInbound removes an in-flight event record so a redelivery can be
	// processed after a pipeline crash.
	ClearInbound(source, eventID string) error
}

// AuditRepo stores per-request audit records.
type AuditRepo interface {
	AddAuditRecord(rec models.AuditRecord) error
}

// Store is the combined persistence surface used by the orchestrator.
type Store interface {
	TurnRepo
	DedupRepo
	AuditRepo
	Close() error
}

// Opts holds configuration for store backends.
type Opts struct {
	// DSN is the database connection string: a file path for SQLite, a
	// connection URL for PostgreSQL.
	DSN string
}

// Option configures store backends.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}
