package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"holistica/internal/domain"
)

func writeError(w http.ResponseWriter, status int, msg string) {
	writeErrorResponse(w, status, domain.ErrorResponse{Error: msg})
}

func writeErrorResponse(w http.ResponseWriter, status int, body domain.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encoding error response", "error", err)
	}
}
