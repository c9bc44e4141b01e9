package handler

import (
	"errors"
	"net/http"

	"wapair/internal/service"

	"github.com/labstack/echo/v4"
)

// GET /pair?code=<phone-number>
//
// Runs the synchronous half of the pairing flow and returns the code the
// user must type on their phone. The rest of the flow (registration,
// reconnects, onboarding) happens in the background. The query param is
// named "code" for compatibility with existing callers; "number" is
// accepted too.
func Pair(m *service.Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		number := pairNumberParam(c)

		res, err := m.PairNumber(c.Request().Context(), number)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrPhoneRequired):
				return c.JSON(http.StatusBadRequest, map[string]string{
					"error": "Phone number required",
				})
			case errors.Is(err, service.ErrTooManyReconnects):
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error": "too_many_reconnects",
				})
			default:
				return c.JSON(http.StatusInternalServerError, map[string]string{
					"error":   "pairing_failed",
					"message": err.Error(),
				})
			}
		}

		if res.AlreadyRegistered {
			return c.JSON(http.StatusOK, map[string]string{
				"message": "already_registered",
				"jid":     res.JID,
			})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"code": res.Code,
		})
	}
}

// GET /pair/qr?code=<phone-number>
//
// QR fallback for phones where the pairing-code entry is unavailable.
// Responds with a PNG of the first QR code.
func PairQR(m *service.Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		number := pairNumberParam(c)

		png, err := m.BeginQRLogin(c.Request().Context(), number)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrPhoneRequired):
				return c.JSON(http.StatusBadRequest, map[string]string{
					"error": "Phone number required",
				})
			case errors.Is(err, service.ErrTooManyReconnects):
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error": "too_many_reconnects",
				})
			case errors.Is(err, service.ErrAlreadyRegistered):
				return c.JSON(http.StatusOK, map[string]string{
					"message": "already_registered",
				})
			default:
				return c.JSON(http.StatusInternalServerError, map[string]string{
					"error":   "pairing_failed",
					"message": err.Error(),
				})
			}
		}

		return c.Blob(http.StatusOK, "image/png", png)
	}
}

func pairNumberParam(c echo.Context) string {
	if number := c.QueryParam("code"); number != "" {
		return number
	}
	return c.QueryParam("number")
}
