// Package store provides storage backends for the support chatbot.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/lacomiqueria/chatbot/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// AppendTurn persists one conversation turn.
func (s *PostgresStore) AppendTurn(turn models.Turn) (int64, error) {
	if turn.ConversationID == "" {
		return 0, models.ErrEmptyConversationID
	}
	metadata, err := encodeMetadata(turn.Metadata)
	if err != nil {
		return 0, err
	}
	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var id int64
	err = s.db.QueryRow(
		`INSERT INTO conversation_turns (conversation_id, sender, content, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		turn.ConversationID, string(turn.Sender), turn.Content, metadata, createdAt,
	).Scan(&id)
	if err != nil {
		slog.Error("PostgresStore AppendTurn failed", "error", err, "conversation_id", turn.ConversationID)
		return 0, fmt.Errorf("failed to insert turn: %w", err)
	}
	slog.Debug("PostgresStore AppendTurn succeeded", "conversation_id", turn.ConversationID, "sender", turn.Sender, "id", id)
	return id, nil
}

// RecentTurns returns up to limit turns for the conversation, newest first.
func (s *PostgresStore) RecentTurns(conversationID string, limit int) ([]models.Turn, error) {
	if conversationID == "" {
		return nil, models.ErrEmptyConversationID
	}
	rows, err := s.db.Query(
		`SELECT id, conversation_id, sender, content, metadata, created_at
		 FROM conversation_turns WHERE conversation_id = $1 ORDER BY id DESC LIMIT $2`,
		conversationID, limit,
	)
	if err != nil {
		slog.Error("PostgresStore RecentTurns query failed", "error", err, "conversation_id", conversationID)
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()
	return scanTurns(rows)
}

// RecordInbound inserts a new inbound event record. Returns false on
// duplicate delivery.
func (s *PostgresStore) RecordInbound(source, eventID, conversationID string) (bool, error) {
	if eventID == "" {
		return false, models.ErrEmptyEventID
	}
	res, err := s.db.Exec(
		`INSERT INTO inbound_dedup (source, external_event_id, conversation_id, received_at)
		 VALUES ($1, $2, $3, $4) ON CONFLICT (source, external_event_id) DO NOTHING`,
		source, eventID, conversationID, time.Now(),
	)
	if err != nil {
		return false, fmt.Errorf("record inbound failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record inbound failed: %w", err)
	}
	return n > 0, nil
}

// GetProcessedResult returns the stored result for an event, or nil when
// unknown or still in flight.
func (s *PostgresStore) GetProcessedResult(source, eventID string) (*ProcessedResult, error) {
	row := s.db.QueryRow(
		`SELECT source, external_event_id, conversation_id, response, received_at, processed_at
		 FROM inbound_dedup WHERE source = $1 AND external_event_id = $2`,
		source, eventID,
	)
	return scanProcessedResult(row)
}

// SaveProcessedResult stores the produced response and marks the event
// processed.
func (s *PostgresStore) SaveProcessedResult(source, eventID string, resp *models.Wf1Response) error {
	payload, err := encodeResponse(resp)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`UPDATE inbound_dedup SET response = $1, processed_at = $2 WHERE source = $3 AND external_event_id = $4`,
		payload, time.Now(), source, eventID,
	)
	if err != nil {
		return fmt.Errorf("save processed result failed: %w", err)
	}
	return nil
}

// ClearInbound removes an in-flight event record.
func (s *PostgresStore) ClearInbound(source, eventID string) error {
	_, err := s.db.Exec(
		`DELETE FROM inbound_dedup WHERE source = $1 AND external_event_id = $2 AND processed_at IS NULL`,
		source, eventID,
	)
	if err != nil {
		return fmt.Errorf("clear inbound failed: %w", err)
	}
	return nil
}

// AddAuditRecord stores one audit row keyed by request id.
func (s *PostgresStore) AddAuditRecord(rec models.AuditRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO audit_records (request_id, conversation_id, status, resolved_by, intent, error_name, latency_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.RequestID, rec.ConversationID, string(rec.Status),
		nilIfEmpty(rec.ResolvedBy), nilIfEmpty(rec.Intent), nilIfEmpty(rec.ErrorName),
		rec.LatencyMS, createdAt,
	)
	if err != nil {
		slog.Error("PostgresStore AddAuditRecord failed", "error", err, "request_id", rec.RequestID)
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	if err := s.db.Close(); err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
		return err
	}
	return nil
}
