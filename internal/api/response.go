package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// Pre-marshaled fallback so a marshal failure can still answer with JSON.
var fallbackErrorResponse []byte

func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(errorEnvelope("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("failed to marshal fallback error response at startup: %v", err))
	}
}

func errorEnvelope(message string) map[string]string {
	return map[string]string{"status": "error", "message": message}
}

// writeJSONResponse writes a JSON response with the given status code. The
// payload is marshaled before any header is written so encoding errors can
// still change the status.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("failed to write JSON response", "error", writeErr)
	}
}
