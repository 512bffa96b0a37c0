// internal/app/features/errors/render.go

// Package errors renders the JSON error payloads shared by every feature.
// Each error kind carries a stable machine-readable code so clients can
// branch on it without parsing messages.
package errors

import (
	"encoding/json"
	"net/http"
)

// response is the wire shape of every error payload.
type response struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func render(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response{Error: code, Message: msg})
}

// RenderUnauthorized writes a 401 for unauthenticated callers.
func RenderUnauthorized(w http.ResponseWriter, msg string) {
	if msg == "" {
		msg = "authentication required"
	}
	render(w, http.StatusUnauthorized, "unauthorized", msg)
}

// RenderForbidden writes a 403 for authenticated callers lacking permission.
func RenderForbidden(w http.ResponseWriter, msg string) {
	if msg == "" {
		msg = "permission denied"
	}
	render(w, http.StatusForbidden, "forbidden", msg)
}

// RenderNotFound writes a 404. Also used for resources the caller is not
// allowed to know exist.
func RenderNotFound(w http.ResponseWriter, msg string) {
	if msg == "" {
		msg = "not found"
	}
	render(w, http.StatusNotFound, "not_found", msg)
}

// RenderConflict writes a 409 for duplicate identifiers and illegal
// lifecycle transitions.
func RenderConflict(w http.ResponseWriter, msg string) {
	render(w, http.StatusConflict, "conflict", msg)
}

// RenderBadRequest writes a 400 for malformed bodies and invalid fields.
func RenderBadRequest(w http.ResponseWriter, msg string) {
	render(w, http.StatusBadRequest, "bad_request", msg)
}

// RenderInternal writes a 500 with a generic message. The real error goes
// to the log, never to the client.
func RenderInternal(w http.ResponseWriter) {
	render(w, http.StatusInternalServerError, "internal", "internal server error")
}
