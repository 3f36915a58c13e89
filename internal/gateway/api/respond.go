package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"holistica/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, domain.ErrorResponse{Error: msg})
}

// writeError maps domain errors to status codes and client messages.
// Anything unrecognised is logged and reported as a 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeErrorMessage(w, http.StatusUnauthorized, "Credenciales inválidas")
	case errors.Is(err, domain.ErrUnauthorized):
		writeErrorMessage(w, http.StatusUnauthorized, "Token de acceso requerido")
	case errors.Is(err, domain.ErrForbidden):
		writeErrorMessage(w, http.StatusForbidden, "Permisos insuficientes")
	case errors.Is(err, domain.ErrUserNotFound):
		writeErrorMessage(w, http.StatusNotFound, "Usuario no encontrado")
	case errors.Is(err, domain.ErrNotFound):
		writeErrorMessage(w, http.StatusNotFound, "Recurso no encontrado")
	case errors.Is(err, domain.ErrEmailTaken):
		writeErrorMessage(w, http.StatusConflict, "El correo ya está registrado")
	case errors.Is(err, domain.ErrConflict):
		writeErrorMessage(w, http.StatusConflict, "Conflicto")
	case errors.Is(err, domain.ErrUnknownRole):
		writeErrorMessage(w, http.StatusBadRequest, "Rol desconocido")
	case errors.Is(err, domain.ErrInvalidInput):
		writeErrorMessage(w, http.StatusBadRequest, inputMessage(err))
	default:
		slog.Error("unhandled error", "error", err)
		writeErrorMessage(w, http.StatusInternalServerError, "Error interno del servidor")
	}
}

// inputMessage strips the sentinel prefix so clients only see the field errors.
func inputMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), domain.ErrInvalidInput.Error()+": ")
	if msg == "" || msg == domain.ErrInvalidInput.Error() {
		return "Solicitud inválida"
	}
	return msg
}
