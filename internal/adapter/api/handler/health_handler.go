package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"jiranbackend/internal/infrastructure/store"
)

type HealthHandler struct {
	store store.Store
}

func NewHealthHandler(st store.Store) *HealthHandler {
	return &HealthHandler{
		store: st,
	}
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "Server is running",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (h *HealthHandler) CheckStoreHealth(c echo.Context) error {
	err := h.store.Set(c.Request().Context(), "health:probe", "1", 10*time.Second)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"status": "Store connection failed",
			"error":  err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "Store connected successfully",
	})
}
