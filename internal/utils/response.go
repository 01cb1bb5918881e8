package utils

import (
	"encoding/json"
	"net/http"

	"github.com/clarity-ai/backend/internal/logger"
	"go.uber.org/zap"
)

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

// WriteError writes the `{"error": message}` body every failing endpoint uses.
func WriteError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		logger.Error("Failed to encode error response", zap.Error(err))
	}
}

// WriteHTTPError maps an error to its HTTP status. Unclassified errors are
// reported as a generic 500; the detail stays in the server log only.
func WriteHTTPError(w http.ResponseWriter, err error) {
	var he *HTTPError
	if As(err, &he) {
		WriteError(w, he.Message, he.Status)
		return
	}
	logger.Error("Unhandled error", zap.Error(err))
	WriteError(w, "Internal server error", http.StatusInternalServerError)
}
