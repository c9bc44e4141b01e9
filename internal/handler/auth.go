package handler

import (
	"net/http"

	"wapair/config"
	"wapair/internal/service"

	"github.com/labstack/echo/v4"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// POST /login
//
// Exchanges the admin credentials for a bearer token used on the protected
// routes.
func LoginAdmin(cfg *config.Config) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !service.AuthConfigured() {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"error": "authentication is not configured",
			})
		}

		var req loginRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "invalid request body",
			})
		}

		if err := service.AuthenticateAdmin(req.Username, req.Password, cfg.AdminUsername, cfg.AdminPasswordHash); err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": "invalid credentials",
			})
		}

		token, err := service.GenerateAccessToken(req.Username)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "failed to generate token",
			})
		}

		return c.JSON(http.StatusOK, map[string]string{
			"access_token": token,
			"token_type":   "Bearer",
		})
	}
}
