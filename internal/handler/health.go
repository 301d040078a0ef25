package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health reports that the parking backend is up.  Load balancers and uptime
// checks hit this instead of /api/places so a slow store read never fails a
// liveness probe.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
