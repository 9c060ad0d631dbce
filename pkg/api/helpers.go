// Package api writes the JSON bodies of the admin endpoints.
package api

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status string `json:"status"`
}

// Success writes data as JSON with the given status. A nil data writes only
// the header.
func Success(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, data)
}

// Error writes an ErrorResponse carrying message and the status text.
func Error(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{Error: message, Status: http.StatusText(statusCode)})
}

func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}
