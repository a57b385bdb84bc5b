package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lacomiqueria/chatbot/internal/models"
)

// DetectDSNType reports "postgres" for connection URLs and key=value
// connection strings, "sqlite" for file paths, so callers can pick the right
// backend from a single DSN setting.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// encodeMetadata serializes turn metadata for a nullable column.
func encodeMetadata(m models.Metadata) (interface{}, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(b), nil
}

// encodeResponse serializes a response for a nullable column.
func encodeResponse(resp *models.Wf1Response) (interface{}, error) {
	if resp == nil {
		return nil, nil
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return string(b), nil
}

// scanTurns scans conversation turns from sql.Rows.
func scanTurns(rows *sql.Rows) ([]models.Turn, error) {
	var turns []models.Turn
	for rows.Next() {
		var t models.Turn
		var sender string
		var metadata sql.NullString
		if err := rows.Scan(&t.ID, &t.ConversationID, &sender, &t.Content, &metadata, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn row: %w", err)
		}
		t.Sender = models.Sender(sender)
		if metadata.Valid && metadata.String != "" {
			var m models.Metadata
			if err := json.Unmarshal([]byte(metadata.String), &m); err != nil {
				return nil, fmt.Errorf("failed to decode turn metadata: %w", err)
			}
			t.Metadata = m
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turn rows: %w", err)
	}
	return turns, nil
}

// scanProcessedResult scans one dedup row; sql.ErrNoRows resolves to nil.
func scanProcessedResult(row *sql.Row) (*ProcessedResult, error) {
	var r ProcessedResult
	var response sql.NullString
	var processedAt sql.NullTime
	err := row.Scan(&r.Source, &r.ExternalEventID, &r.ConversationID, &response, &r.ReceivedAt, &processedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan dedup row: %w", err)
	}
	if response.Valid && response.String != "" {
		var resp models.Wf1Response
		if err := json.Unmarshal([]byte(response.String), &resp); err != nil {
			return nil, fmt.Errorf("failed to decode stored response: %w", err)
		}
		r.Response = &resp
	}
	if processedAt.Valid {
		r.ProcessedAt = &processedAt.Time
	}
	return &r, nil
}
