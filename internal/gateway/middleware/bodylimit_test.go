package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"holistica/internal/account"
	"holistica/internal/domain"
	"holistica/internal/gateway/adapter/inmem"
	"holistica/internal/gateway/adapter/token"
	"holistica/internal/gateway/api"
	"holistica/internal/gateway/middleware"
	"holistica/internal/testutil"
)

func TestMaxBodySize(t *testing.T) {
	const limit int64 = 96

	svc, err := account.NewService(inmem.NewUserRepository(time.Now), token.NewSigner(testutil.TestSecret, time.Minute))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	handler := middleware.Chain(api.NewRouter(svc, api.Options{}), middleware.MaxBodySize(limit))

	valid := `{"name":"Ana","email":"ana@example.com","password":"secreta123"}`
	padded := valid + strings.Repeat(" ", int(limit)-len(valid))

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"body within limit", valid, http.StatusCreated, ""},
		{"exact boundary", strings.Replace(padded, "ana@", "bea@", 1), http.StatusCreated, ""},
		{"one byte over", padded + " ", http.StatusRequestEntityTooLarge, "Cuerpo de la solicitud demasiado grande"},
		{"far over", `{"name":"` + strings.Repeat("x", 4*int(limit)) + `"}`, http.StatusRequestEntityTooLarge, "Cuerpo de la solicitud demasiado grande"},
		{"empty body", "", http.StatusBadRequest, "Cuerpo de la solicitud vacío"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(tt.body))
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantError == "" {
				return
			}
			var errResp domain.ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
				t.Fatalf("decoding error body: %v", err)
			}
			if errResp.Error != tt.wantError {
				t.Errorf("expected error %q, got %q", tt.wantError, errResp.Error)
			}
		})
	}
}

func TestMaxBodySizeLeavesGETUntouched(t *testing.T) {
	handler := middleware.MaxBodySize(1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/me", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}
