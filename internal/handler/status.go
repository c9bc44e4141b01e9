package handler

import (
	"net/http"

	"wapair/internal/service"

	"github.com/labstack/echo/v4"
)

// GET /status
func Status(m *service.Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, m.Status())
	}
}

// POST /reset/:number
//
// Clears the reconnect counter so a number stuck at the maximum can pair
// again.
func ResetAttempts(m *service.Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		phone := m.ResetAttempts(c.Param("number"))
		if phone == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "Phone number required",
			})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"message": "attempts_reset",
			"number":  phone,
		})
	}
}

// GET /
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "wapair",
	})
}
