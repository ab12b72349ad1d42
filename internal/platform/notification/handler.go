package notification

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// NotificationHandler lets clinic staff inspect and retry outbound email.
type NotificationHandler struct {
	mgr *NotificationManager
}

func NewNotificationHandler(mgr *NotificationManager) *NotificationHandler {
	return &NotificationHandler{mgr: mgr}
}

// RegisterRoutes mounts the routes on a doctor-only group.
func (h *NotificationHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications", h.HandleList)
	g.GET("/notifications/stats", h.HandleStats)
	g.GET("/notifications/:id", h.HandleGet)
	g.POST("/notifications/:id/retry", h.HandleRetry)
}

func (h *NotificationHandler) HandleList(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return c.JSON(http.StatusOK, h.mgr.List(c.Request().Context(), c.QueryParam("status"), limit))
}

func (h *NotificationHandler) HandleGet(c echo.Context) error {
	n, err := h.mgr.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, n)
}

func (h *NotificationHandler) HandleRetry(c echo.Context) error {
	err := h.mgr.Retry(c.Request().Context(), c.Param("id"))
	switch {
	case errors.Is(err, ErrNotificationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotRetryable):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	n, _ := h.mgr.Get(c.Request().Context(), c.Param("id"))
	return c.JSON(http.StatusOK, n)
}

func (h *NotificationHandler) HandleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.mgr.Stats(c.Request().Context()))
}
