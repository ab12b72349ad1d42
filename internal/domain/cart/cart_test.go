package cart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/ayursutra/portal/internal/domain/catalog"
	"github.com/ayursutra/portal/internal/platform/auth"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Load("")
	if err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}
	return c
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, 24*time.Hour), mr
}

func TestService_AddRemoveTotals(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore() },
		"redis":  func(t *testing.T) Store { s, _ := newRedisStore(t); return s },
	}
	for name, mk := range stores {
		t.Run(name, func(t *testing.T) {
			svc := NewService(mk(t), testCatalog(t))
			ctx := context.Background()

			if _, err := svc.Add(ctx, "u1", 1); err != nil {
				t.Fatalf("Add: %v", err)
			}
			if _, err := svc.Add(ctx, "u1", 6); err != nil {
				t.Fatalf("Add: %v", err)
			}
			c, err := svc.Add(ctx, "u1", 1)
			if err != nil {
				t.Fatalf("Add duplicate: %v", err)
			}
			if len(c.Items) != 3 || c.Total != 3500+1800+3500 || c.TotalDurationMin != 140 {
				t.Errorf("unexpected cart %+v", c)
			}

			c, err = svc.Remove(ctx, "u1", 1)
			if err != nil {
				t.Fatalf("Remove: %v", err)
			}
			if len(c.Items) != 2 || c.Items[0].ID != 6 || c.Items[1].ID != 1 {
				t.Errorf("expected first Abhyanga line removed, got %+v", c.Items)
			}

			c, err = svc.Remove(ctx, "u1", 5)
			if err != nil || len(c.Items) != 2 {
				t.Errorf("removing an absent treatment should be a no-op, got %+v (%v)", c, err)
			}

			if err := svc.Clear(ctx, "u1"); err != nil {
				t.Fatalf("Clear: %v", err)
			}
			c, _ = svc.Get(ctx, "u1")
			if len(c.Items) != 0 || c.Total != 0 {
				t.Errorf("expected empty cart, got %+v", c)
			}
		})
	}
}

func TestService_AddUnknownTreatment(t *testing.T) {
	svc := NewService(NewMemoryStore(), testCatalog(t))
	if _, err := svc.Add(context.Background(), "u1", 404); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("expected catalog.ErrNotFound, got %v", err)
	}
}

func TestService_ReplaceKeepsBookedPrices(t *testing.T) {
	svc := NewService(NewMemoryStore(), testCatalog(t))
	c, err := svc.Replace(context.Background(), "u1", []Item{{ID: 1, Name: "Abhyanga", Price: 1200, DurationMin: 60}})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if c.Total != 1200 {
		t.Errorf("expected the stored price to be kept, got %d", c.Total)
	}
}

func TestRedisStore_KeyAndTTL(t *testing.T) {
	store, mr := newRedisStore(t)
	svc := NewService(store, testCatalog(t))
	if _, err := svc.Add(context.Background(), "patient-7", 2); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if !mr.Exists("cart:patient-7") {
		t.Fatal("expected cart:patient-7 to exist")
	}
	if ttl := mr.TTL("cart:patient-7"); ttl != 24*time.Hour {
		t.Errorf("expected 24h ttl, got %s", ttl)
	}

	mr.FastForward(25 * time.Hour)
	c, err := svc.Get(context.Background(), "patient-7")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(c.Items) != 0 {
		t.Errorf("expected cart to expire, got %+v", c.Items)
	}
}

func TestRedisStore_CorruptValue(t *testing.T) {
	store, mr := newRedisStore(t)
	_ = mr.Set("cart:u1", "not-json")
	if _, err := store.Load(context.Background(), "u1"); err == nil {
		t.Error("expected decode error")
	}
}

func patientRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	claims := &auth.Claims{Roles: []string{auth.RolePatient}}
	claims.Subject = "patient-1"
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func TestHandler_Routes(t *testing.T) {
	e := echo.New()
	NewHandler(NewService(NewMemoryStore(), testCatalog(t))).RegisterRoutes(e.Group("/api/v1"))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, patientRequest(http.MethodPost, "/api/v1/cart/items", `{"treatment_id":3}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, patientRequest(http.MethodPut, "/api/v1/cart", `{"treatment_ids":[1,2]}`))
	var c Cart
	_ = json.Unmarshal(rec.Body.Bytes(), &c)
	if len(c.Items) != 2 || c.Total != 7500 {
		t.Errorf("unexpected cart after replace %+v", c)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, patientRequest(http.MethodPost, "/api/v1/cart/items", `{"treatment_id":99}`))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown treatment, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, patientRequest(http.MethodDelete, "/api/v1/cart", ""))
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_DoctorForbidden(t *testing.T) {
	e := echo.New()
	NewHandler(NewService(NewMemoryStore(), testCatalog(t))).RegisterRoutes(e.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	claims := &auth.Claims{Roles: []string{auth.RoleDoctor}}
	req = req.WithContext(auth.WithClaims(req.Context(), claims))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}
