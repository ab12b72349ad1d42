package feedback

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ayursutra/portal/internal/platform/auth"
	"github.com/ayursutra/portal/pkg/pagination"
)

func asUser(req *http.Request, role string) *http.Request {
	claims := &auth.Claims{Roles: []string{role}}
	claims.Subject = uuid.NewString()
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func TestHandler_SubmitAndList(t *testing.T) {
	e := echo.New()
	NewHandler(newLocalService(t)).RegisterRoutes(e.Group("/api/v1"))

	post := func(body string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/feedback", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, asUser(req, auth.RolePatient))
		return rec.Code
	}
	if code := post(`{"rating":5,"comments":"wonderful"}`); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if code := post(`{"comments":"no rating"}`); code != http.StatusBadRequest {
		t.Errorf("expected 400 without rating, got %d", code)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/feedback?limit=10", nil), auth.RolePatient))
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected patients to be refused the list, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/feedback?limit=10", nil), auth.RoleDoctor))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp pagination.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Limit != 10 || resp.HasMore {
		t.Errorf("unexpected page %+v", resp)
	}
}
