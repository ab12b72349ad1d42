package wellness

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ayursutra/portal/internal/domain/identity"
	"github.com/ayursutra/portal/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/plans/:dosha", h.GetPlan)

	patient := api.Group("", auth.RequireRole(auth.RolePatient))
	patient.GET("/me/plan", h.MyPlan)
	patient.POST("/progress", h.RecordMine)
	patient.GET("/progress/:metric", h.MySeries)
	patient.GET("/progress/:metric/chart", h.MyChart)

	doctor := api.Group("/patients/:patient_id/progress", auth.RequireRole(auth.RoleDoctor))
	doctor.POST("", h.RecordForPatient)
	doctor.GET("/:metric", h.PatientSeries)
	doctor.GET("/:metric/chart", h.PatientChart)
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNoDosha):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrUnknownMetric), errors.Is(err, ErrInvalidValue), errors.Is(err, ErrNotPatient):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func patientParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("patient_id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	return id, nil
}

func (h *Handler) GetPlan(c echo.Context) error {
	plan, err := h.svc.Plan(c.Param("dosha"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, plan)
}

func (h *Handler) MyPlan(c echo.Context) error {
	id, err := identity.CurrentUserID(c)
	if err != nil {
		return err
	}
	plan, err := h.svc.MyPlan(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, plan)
}

func (h *Handler) record(c echo.Context, patientID uuid.UUID) error {
	var req RecordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.Record(c.Request().Context(), patientID, req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) series(c echo.Context, patientID uuid.UUID) error {
	s, err := h.svc.Series(c.Request().Context(), patientID, c.Param("metric"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) chart(c echo.Context, patientID uuid.UUID) error {
	var buf bytes.Buffer
	if err := h.svc.Chart(c.Request().Context(), patientID, c.Param("metric"), &buf); err != nil {
		return toHTTPError(err)
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

func (h *Handler) RecordMine(c echo.Context) error {
	id, err := identity.CurrentUserID(c)
	if err != nil {
		return err
	}
	return h.record(c, id)
}

func (h *Handler) MySeries(c echo.Context) error {
	id, err := identity.CurrentUserID(c)
	if err != nil {
		return err
	}
	return h.series(c, id)
}

func (h *Handler) MyChart(c echo.Context) error {
	id, err := identity.CurrentUserID(c)
	if err != nil {
		return err
	}
	return h.chart(c, id)
}

func (h *Handler) RecordForPatient(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	return h.record(c, id)
}

func (h *Handler) PatientSeries(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	return h.series(c, id)
}

func (h *Handler) PatientChart(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	return h.chart(c, id)
}
