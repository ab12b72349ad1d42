package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ayursutra/portal/internal/config"
	"github.com/ayursutra/portal/internal/domain/cart"
	"github.com/ayursutra/portal/internal/platform/blobstore"
	"github.com/ayursutra/portal/internal/platform/notification"
)

// ---------------------------------------------------------------------------
// resolveSigningKey
// ---------------------------------------------------------------------------

func TestResolveSigningKey_Configured(t *testing.T) {
	key, generated, err := resolveSigningKey("0123456789abcdef0123456789abcdef", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if generated {
		t.Error("expected configured key, got generated")
	}
	if string(key) != "0123456789abcdef0123456789abcdef" {
		t.Errorf("key = %q", key)
	}
}

func TestResolveSigningKey_GeneratedInDev(t *testing.T) {
	key, generated, err := resolveSigningKey("", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !generated {
		t.Error("expected generated key")
	}
	if len(key) != 32 {
		t.Errorf("expected 32-byte key, got %d", len(key))
	}
}

func TestResolveSigningKey_MissingOutsideDev(t *testing.T) {
	if _, _, err := resolveSigningKey("", false); err == nil {
		t.Fatal("expected error for missing key in production")
	}
}

// ---------------------------------------------------------------------------
// server wiring against the local backend
// ---------------------------------------------------------------------------

func newTestServer(t *testing.T) *server {
	t.Helper()
	cfg := &config.Config{
		Env:            "production",
		StorageBackend: config.BackendLocal,
		LocalStorePath: filepath.Join(t.TempDir(), "portal.db"),
		AuthIssuer:     "ayursutra-test",
		AuthTokenTTL:   time.Hour,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		ClinicTimezone: "Asia/Kolkata",
		BlobBackend:    config.BlobMemory,
	}
	store, err := openStorage(t.Context(), cfg)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(store.close)

	logger := zerolog.Nop()
	srv, err := newServer(serverDeps{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		carts:      cart.NewMemoryStore(),
		blobs:      blobstore.NewInMemoryBlobStore(),
		email:      notification.NewLogSender(logger),
		signingKey: []byte("test-signing-key-test-signing-key"),
		registry:   prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(srv.close)
	return srv
}

func do(t *testing.T, srv *server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func registerAndLogin(t *testing.T, srv *server, email, role, name string) string {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": email, "password": "correct-horse", "role": role, "name": name,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	rec = do(t, srv, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": "correct-horse",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	var res struct {
		Token struct {
			AccessToken string `json:"access_token"`
		} `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if res.Token.AccessToken == "" {
		t.Fatal("login returned no token")
	}
	return res.Token.AccessToken
}

func TestServer_PublicEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/health", "/health/db", "/api/v1/treatments", "/api/v1/plans/vata"} {
		if rec := do(t, srv, http.MethodGet, path, "", nil); rec.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, rec.Code)
		}
	}

	rec := do(t, srv, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ayursutra_http_requests_total") {
		t.Error("expected http request counter in /metrics output")
	}
}

func TestServer_RequiresToken(t *testing.T) {
	srv := newTestServer(t)
	if rec := do(t, srv, http.MethodGet, "/api/v1/me", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}
}

func TestServer_SecurityHeaders(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/health", "", nil)
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("expected nosniff header, got %q", rec.Header().Get("X-Content-Type-Options"))
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestServer_EmergencyReachesDoctor(t *testing.T) {
	srv := newTestServer(t)
	patient := registerAndLogin(t, srv, "asha@example.com", "patient", "Asha")
	doctor := registerAndLogin(t, srv, "dr.rao@example.com", "doctor", "Dr Rao")

	rec := do(t, srv, http.MethodPost, "/api/v1/emergencies", patient, map[string]string{"symptoms": "chest pain"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("raise: status %d body %s", rec.Code, rec.Body.String())
	}

	// Patients cannot read the staff list.
	if rec := do(t, srv, http.MethodGet, "/api/v1/emergencies", patient, nil); rec.Code != http.StatusForbidden {
		t.Errorf("patient list: expected 403, got %d", rec.Code)
	}

	rec = do(t, srv, http.MethodGet, "/api/v1/emergencies", doctor, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("doctor list: status %d", rec.Code)
	}
	var items []struct {
		PatientName string `json:"patient_name"`
		Status      string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 || items[0].PatientName != "Asha" || items[0].Status != "new" {
		t.Errorf("unexpected emergencies: %+v", items)
	}
}

func TestServer_LogoutRevokesToken(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv, "meera@example.com", "patient", "Meera")

	if rec := do(t, srv, http.MethodGet, "/api/v1/me", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("me before logout: expected 200, got %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/api/v1/auth/logout", token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/api/v1/me", token, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("me after logout: expected 401, got %d", rec.Code)
	}
}
