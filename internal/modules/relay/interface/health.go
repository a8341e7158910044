package transport

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// NewHealthHandler reports process liveness for probes and load balancers.
func NewHealthHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}
