package catalog

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	catalog *Catalog
}

func NewHandler(c *Catalog) *Handler {
	return &Handler{catalog: c}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/treatments", h.List)
	api.GET("/treatments/:id", h.Get)
}

func (h *Handler) List(c echo.Context) error {
	items := h.catalog.List(Filter{
		Dosha:    c.QueryParam("dosha"),
		Category: c.QueryParam("category"),
		Search:   c.QueryParam("search"),
	})
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.catalog.Get(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, t)
}
