package cart

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ayursutra/portal/internal/domain/catalog"
	"github.com/ayursutra/portal/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/cart", auth.RequireRole(auth.RolePatient))
	g.GET("", h.Get)
	g.PUT("", h.Replace)
	g.DELETE("", h.Clear)
	g.POST("/items", h.AddItem)
	g.DELETE("/items/:id", h.RemoveItem)
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConcurrentUpdate):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func userID(c echo.Context) string {
	return auth.UserIDFromContext(c.Request().Context())
}

func (h *Handler) Get(c echo.Context) error {
	cart, err := h.svc.Get(c.Request().Context(), userID(c))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, cart)
}

type addItemRequest struct {
	TreatmentID int `json:"treatment_id"`
}

func (h *Handler) AddItem(c echo.Context) error {
	var req addItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cart, err := h.svc.Add(c.Request().Context(), userID(c), req.TreatmentID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, cart)
}

func (h *Handler) RemoveItem(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	cart, err := h.svc.Remove(c.Request().Context(), userID(c), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, cart)
}

type replaceRequest struct {
	TreatmentIDs []int `json:"treatment_ids"`
}

func (h *Handler) Replace(c echo.Context) error {
	var req replaceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cart, err := h.svc.SetTreatments(c.Request().Context(), userID(c), req.TreatmentIDs)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, cart)
}

func (h *Handler) Clear(c echo.Context) error {
	if err := h.svc.Clear(c.Request().Context(), userID(c)); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
