// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/personify-ai/chat-platform/internal/apperr"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code apperr.Code, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  string(code),
	})
}

// writeAppError maps a pipeline error to one structured error response.
func writeAppError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	writeError(w, apperr.HTTPStatus(code), code, apperr.MessageOf(err))
}
