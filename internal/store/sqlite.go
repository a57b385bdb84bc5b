// Package store provides storage backends for the support chatbot.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/lacomiqueria/chatbot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database
// directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// AppendTurn persists one conversation turn.
func (s *SQLiteStore) AppendTurn(turn models.Turn) (int64, error) {
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

	res, err := s.db.Exec(
		`INSERT INTO conversation_turns (conversation_id, sender, content, metadata, created_at) VALUES (?, ?, ?, ?, ?)`,
		turn.ConversationID, string(turn.Sender), turn.Content, metadata, createdAt,
	)
	if err != nil {
		slog.Error("SQLiteStore AppendTurn failed", "error", err, "conversation_id", turn.ConversationID)
		return 0, fmt.Errorf("failed to insert turn: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read turn id: %w", err)
	}
	slog.Debug("SQLiteStore AppendTurn succeeded", "conversation_id", turn.ConversationID, "sender", turn.Sender, "id", id)
	return id, nil
}

// RecentTurns returns up to limit turns for the conversation, newest first.
func (s *SQLiteStore) RecentTurns(conversationID string, limit int) ([]models.Turn, error) {
	if conversationID == "" {
		return nil, models.ErrEmptyConversationID
	}
	rows, err := s.db.Query(
		`SELECT id, conversation_id, sender, content, metadata, created_at
		 FROM conversation_turns WHERE conversation_id = ? ORDER BY id DESC LIMIT ?`,
		conversationID, limit,
	)
	if err != nil {
		slog.Error("SQLiteStore RecentTurns query failed", "error", err, "conversation_id", conversationID)
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()
	return scanTurns(rows)
}

// RecordInbound inserts a new inbound event record. Returns false on
// duplicate delivery.
func (s *SQLiteStore) RecordInbound(source, eventID, conversationID string) (bool, error) {
	if eventID == "" {
		return false, models.ErrEmptyEventID
	}
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO inbound_dedup (source, external_event_id, conversation_id, received_at) VALUES (?, ?, ?, ?)`,
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
func (s *SQLiteStore) GetProcessedResult(source, eventID string) (*ProcessedResult, error) {
	row := s.db.QueryRow(
		`SELECT source, external_event_id, conversation_id, response, received_at, processed_at
		 FROM inbound_dedup WHERE source = ? AND external_event_id = ?`,
		source, eventID,
	)
	return scanProcessedResult(row)
}

// SaveProcessedResult stores the produced response and marks the event
// processed.
func (s *SQLiteStore) SaveProcessedResult(source, eventID string, resp *models.Wf1Response) error {
	payload, err := encodeResponse(resp)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`UPDATE inbound_dedup SET response = ?, processed_at = ? WHERE source = ? AND external_event_id = ?`,
		payload, time.Now(), source, eventID,
	)
	if err != nil {
		return fmt.Errorf("save processed result failed: %w", err)
	}
	return nil
}

// ClearInbound removes an in-flight event record.
func (s *SQLiteStore) ClearInbound(source, eventID string) error {
	_, err := s.db.Exec(
		`DELETE FROM inbound_dedup WHERE source = ? AND external_event_id = ? AND processed_at IS NULL`,
		source, eventID,
	)
	if err != nil {
		return fmt.Errorf("clear inbound failed: %w", err)
	}
	return nil
}

// AddAuditRecord stores one audit row keyed by request id.
func (s *SQLiteStore) AddAuditRecord(rec models.AuditRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO audit_records (request_id, conversation_id, status, resolved_by, intent, error_name, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.ConversationID, string(rec.Status),
		nilIfEmpty(rec.ResolvedBy), nilIfEmpty(rec.Intent), nilIfEmpty(rec.ErrorName),
		rec.LatencyMS, createdAt,
	)
	if err != nil {
		slog.Error("SQLiteStore AddAuditRecord failed", "error", err, "request_id", rec.RequestID)
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	if err := s.db.Close(); err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
		return err
	}
	return nil
}
