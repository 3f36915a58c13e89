package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"holistica/internal/account"
	"holistica/internal/domain"
	"holistica/internal/gateway"
	"holistica/internal/gateway/adapter/inmem"
	"holistica/internal/gateway/adapter/token"
	"holistica/internal/gateway/api"
	"holistica/internal/gateway/middleware"
	"holistica/internal/platform/server"
	"holistica/internal/platform/telemetry"
	"holistica/internal/testutil"
)

func TestMain(m *testing.M) {
	shutdown, err := telemetry.Setup(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "telemetry setup:", err)
		os.Exit(1)
	}
	code := m.Run()
	shutdown(context.Background())
	os.Exit(code)
}

type limits struct {
	ip, login gateway.RateLimiter
}

// startAPI wires every component the way cmd/holistica does and serves on
// a loopback port. repo may be nil for an in-memory store.
func startAPI(t *testing.T, repo account.UserRepository, l limits) string {
	t.Helper()

	if repo == nil {
		repo = inmem.NewUserRepository(time.Now)
	}
	if l.ip == nil {
		l.ip = inmem.NewRateLimiter(1000, 1000, time.Now)
	}

	accounts, err := account.NewService(repo, token.NewSigner(testutil.TestSecret, 15*time.Minute))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	metrics, err := telemetry.NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	router := api.NewRouter(accounts, api.Options{
		LoginLimiter:   l.login,
		Metrics:        metrics,
		MetricsHandler: telemetry.MetricsHandler(),
	})
	handler := middleware.Chain(
		router,
		middleware.Metrics(metrics, router),
		middleware.RequestID,
		middleware.Logging(logger),
		middleware.Recovery,
		middleware.MaxBodySize(1<<20),
		middleware.RateLimit(l.ip, "ip", metrics),
		middleware.Auth(gateway.NewGate(token.NewVerifier(testutil.TestSecret)), api.PublicPaths, metrics),
	)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.New(ln.Addr().String(), handler).Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return "http://" + ln.Addr().String()
}

func call(t *testing.T, method, url, body, bearer string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp, data
}

func login(t *testing.T, baseURL, email, password string) domain.Session {
	t.Helper()
	resp, body := call(t, http.MethodPost, baseURL+"/auth/login",
		fmt.Sprintf(`{"email":%q,"password":%q}`, email, password), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", email, resp.StatusCode, body)
	}
	var sess domain.Session
	if err := json.Unmarshal(body, &sess); err != nil {
		t.Fatalf("decoding session: %v", err)
	}
	return sess
}

func TestFullAuthFlow(t *testing.T) {
	baseURL := startAPI(t, nil, limits{})

	resp, body := call(t, http.MethodPost, baseURL+"/auth/register",
		`{"name":"Ana","email":"ana@example.com","password":"secreta123"}`, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", resp.StatusCode, body)
	}
	var ana domain.User
	if err := json.Unmarshal(body, &ana); err != nil {
		t.Fatalf("decoding user: %v", err)
	}

	sess := login(t, baseURL, "ana@example.com", "secreta123")
	if sess.ExpiresIn != 900 {
		t.Errorf("expected expires_in 900, got %d", sess.ExpiresIn)
	}

	t.Run("profile with session token", func(t *testing.T) {
		resp, body := call(t, http.MethodGet, baseURL+"/v1/me", "", sess.AccessToken)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
		}
		var me domain.User
		json.Unmarshal(body, &me)
		if me.ID != ana.ID || me.Role != domain.RoleStudent {
			t.Errorf("unexpected profile %+v", me)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		resp, body := call(t, http.MethodGet, baseURL+"/v1/me", "", "")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", resp.StatusCode)
		}
		if string(body) != `{"error":"Token de acceso requerido"}`+"\n" {
			t.Errorf("unexpected body %q", body)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		expired := testutil.IssueTestToken(t, testutil.TestSecret, ana.Claims(), -time.Minute)
		resp, body := call(t, http.MethodGet, baseURL+"/v1/me", "", expired)
		if resp.StatusCode != http.StatusUnauthorized || !strings.Contains(string(body), "Token expirado") {
			t.Errorf("expected 401 Token expirado, got %d %s", resp.StatusCode, body)
		}
	})

	t.Run("forged token", func(t *testing.T) {
		forged := testutil.IssueTestToken(t, "attacker-secret", domain.Claims{SubjectID: ana.ID, Role: domain.RoleAdmin}, time.Minute)
		resp, body := call(t, http.MethodGet, baseURL+"/v1/admin/users", "", forged)
		if resp.StatusCode != http.StatusForbidden || !strings.Contains(string(body), "Token inválido") {
			t.Errorf("expected 403 Token inválido, got %d %s", resp.StatusCode, body)
		}
	})

	t.Run("student on admin route", func(t *testing.T) {
		resp, body := call(t, http.MethodGet, baseURL+"/v1/admin/users", "", sess.AccessToken)
		if resp.StatusCode != http.StatusForbidden || !strings.Contains(string(body), "Permisos insuficientes") {
			t.Errorf("expected 403 Permisos insuficientes, got %d %s", resp.StatusCode, body)
		}
	})

	t.Run("admin promotes student", func(t *testing.T) {
		admin := testutil.IssueTestToken(t, testutil.TestSecret, domain.Claims{SubjectID: 999, Role: domain.RoleAdmin}, time.Minute)

		resp, body := call(t, http.MethodPut, fmt.Sprintf("%s/v1/admin/users/%d/role", baseURL, ana.ID), `{"role":3}`, admin)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
		}

		// The old token keeps its role until it expires.
		resp, _ = call(t, http.MethodGet, baseURL+"/v1/me", "", sess.AccessToken)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("old token should still work, got %d", resp.StatusCode)
		}

		fresh := login(t, baseURL, "ana@example.com", "secreta123")
		claims, err := token.NewVerifier(testutil.TestSecret).Verify(fresh.AccessToken)
		if err != nil {
			t.Fatalf("verifying fresh token: %v", err)
		}
		if claims.Role != domain.RoleInstructor {
			t.Errorf("expected instructor in new token, got %v", claims.Role)
		}
	})

	t.Run("unknown path", func(t *testing.T) {
		resp, _ := call(t, http.MethodGet, baseURL+"/v1/unknown", "", sess.AccessToken)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("public endpoints", func(t *testing.T) {
		for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
			resp, _ := call(t, http.MethodGet, baseURL+path, "", "")
			if resp.StatusCode != http.StatusOK {
				t.Errorf("%s: expected 200, got %d", path, resp.StatusCode)
			}
		}
	})

	t.Run("metrics record gate decisions", func(t *testing.T) {
		_, body := call(t, http.MethodGet, baseURL+"/metrics", "", "")
		if !strings.Contains(string(body), "holistica_auth_decisions_total") {
			t.Error("expected holistica_auth_decisions_total in /metrics")
		}
	})

	t.Run("request id echoed", func(t *testing.T) {
		id := uuid.NewString()
		req, _ := http.NewRequest(http.MethodGet, baseURL+"/healthz", nil)
		req.Header.Set("X-Request-ID", id)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()
		if got := resp.Header.Get("X-Request-ID"); got != id {
			t.Errorf("expected %s, got %q", id, got)
		}
	})

	t.Run("request id generated", func(t *testing.T) {
		resp, _ := call(t, http.MethodGet, baseURL+"/healthz", "", "")
		if _, err := uuid.Parse(resp.Header.Get("X-Request-ID")); err != nil {
			t.Errorf("expected generated UUID request id, got %q", resp.Header.Get("X-Request-ID"))
		}
	})
}

func TestRateLimitingIntegration(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	baseURL := startAPI(t, nil, limits{
		ip:    inmem.NewRateLimiter(100, 5, clock),
		login: inmem.NewRateLimiter(1, 2, clock),
	})

	t.Run("login limit trips before the ip limit", func(t *testing.T) {
		body := `{"email":"nadie@example.com","password":"secreta123"}`
		codes := make([]int, 0, 3)
		for range 3 {
			resp, _ := call(t, http.MethodPost, baseURL+"/auth/login", body, "")
			codes = append(codes, resp.StatusCode)
		}
		want := []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}
		for i := range want {
			if codes[i] != want[i] {
				t.Errorf("attempt %d: expected %d, got %d", i+1, want[i], codes[i])
			}
		}
	})

	t.Run("ip limit", func(t *testing.T) {
		// Three requests already spent above; two remain in the bucket.
		for i := range 2 {
			resp, _ := call(t, http.MethodGet, baseURL+"/healthz", "", "")
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("request %d: expected 200, got %d", i+1, resp.StatusCode)
			}
		}
		resp, body := call(t, http.MethodGet, baseURL+"/healthz", "", "")
		if resp.StatusCode != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", resp.StatusCode)
		}
		if resp.Header.Get("Retry-After") == "" {
			t.Error("expected Retry-After header")
		}
		var errResp domain.ErrorResponse
		json.Unmarshal(body, &errResp)
		if errResp.Error != "Demasiadas solicitudes" || errResp.RetryAfter < 1 {
			t.Errorf("unexpected body %s", body)
		}
	})
}
