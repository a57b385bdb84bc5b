package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// twilioWebhookHandler delegates POST /webhook/twilio to the active Twilio
// messaging service.
func (s *Server) twilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.twilioWebhook == nil {
		slog.Warn("Twilio webhook called but no Twilio channel configured")
		writeJSONResponse(w, http.StatusNotFound, errorEnvelope("Twilio channel not configured"))
		return
	}
	s.twilioWebhook(w, r)
}

// healthHandler reports service health. The store is probed with a cheap read
// so a dead database surfaces as degraded.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	statusCode := http.StatusOK

	if _, err := s.st.RecentTurns("health-probe", 1); err != nil {
		slog.Warn("health check store probe failed", "error", err)
		health["status"] = "degraded"
		health["error"] = "store unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, statusCode, health)
}

// conversationTurnsHandler serves GET /conversations/{id}/turns, newest
// first. The limit query parameter bounds the window.
func (s *Server) conversationTurnsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/conversations/")
	segments := strings.Split(path, "/")
	if len(segments) != 2 || segments[0] == "" || segments[1] != "turns" {
		writeJSONResponse(w, http.StatusNotFound, errorEnvelope("Unknown conversation endpoint"))
		return
	}
	conversationID := segments[0]

	limit := s.historyWindow
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSONResponse(w, http.StatusBadRequest, errorEnvelope("Invalid limit parameter"))
			return
		}
		limit = n
	}

	turns, err := s.st.RecentTurns(conversationID, limit)
	if err != nil {
		slog.Error("failed to fetch conversation turns", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, errorEnvelope("Failed to fetch turns"))
		return
	}

	slog.Debug("conversation turns fetched", "conversationID", conversationID, "count", len(turns))
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"conversation_id": conversationID,
		"turns":           turns,
		"count":           len(turns),
	})
}
