package patients

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ayursutra/portal/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/patient-records", auth.RequireRole(auth.RoleDoctor))
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:email", h.Get)
	g.PATCH("/:email", h.Update)
	g.POST("/:email/allergies", h.AddAllergy)
	g.DELETE("/:email/allergies/:index", h.RemoveAllergy)
	g.POST("/:email/history", h.AddHistory)
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrEmailRequired), errors.Is(err, ErrAllergyRequired), errors.Is(err, ErrHistoryRequired),
		errors.Is(err, ErrIndexOutOfRange), errors.Is(err, ErrInvalidDOB):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func emailParam(c echo.Context) (string, error) {
	email, err := url.PathUnescape(c.Param("email"))
	if err != nil || email == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid email")
	}
	return email, nil
}

func (h *Handler) Create(c echo.Context) error {
	var rec PatientRecord
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.svc.Create(c.Request().Context(), rec)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) List(c echo.Context) error {
	out, err := h.svc.List(c.Request().Context(), c.QueryParam("search"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Get(c echo.Context) error {
	email, err := emailParam(c)
	if err != nil {
		return err
	}
	d, err := h.svc.Get(c.Request().Context(), email)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Update(c echo.Context) error {
	email, err := emailParam(c)
	if err != nil {
		return err
	}
	var p Patch
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.svc.Update(c.Request().Context(), email, p)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) AddAllergy(c echo.Context) error {
	email, err := emailParam(c)
	if err != nil {
		return err
	}
	var body struct {
		Allergy string `json:"allergy"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.svc.AddAllergy(c.Request().Context(), email, body.Allergy)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) RemoveAllergy(c echo.Context) error {
	email, err := emailParam(c)
	if err != nil {
		return err
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "index must be a number")
	}
	out, err := h.svc.RemoveAllergy(c.Request().Context(), email, index)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) AddHistory(c echo.Context) error {
	email, err := emailParam(c)
	if err != nil {
		return err
	}
	var body struct {
		Entry string `json:"entry"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.svc.AddHistory(c.Request().Context(), email, body.Entry)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, out)
}
