package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"                  // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // Echo's bundled middleware (CORS)

	"github.com/iliyamo/smart-parking/internal/handler"
	"github.com/iliyamo/smart-parking/internal/middleware"
)

// RegisterRoutes wires up the full HTTP surface of the parking backend.
// CORS is open because the browser frontend is served from a different
// origin.  The places read sits behind the response cache; the reserve
// write sits behind the rate limiter so a misbehaving client cannot spam
// store writes and broadcasts.
func RegisterRoutes(e *echo.Echo, p *handler.ParkingHandler, ws *handler.WSHandler, cache *middleware.ResponseCache, limiter echo.MiddlewareFunc) {
	// Allow the frontend origin to call the API and open the socket.
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
	}))

	// Health check for load balancers and monitoring.
	e.GET("/healthz", handler.Health)

	// Current parking state.  Cached; every write path invalidates the entry.
	e.GET("/api/places", p.GetPlaces, cache.Middleware())

	// Reserve one space by id.
	e.POST("/api/reserve/:id", p.ReserveSpace, limiter)

	// Viewer push channel.  Each connection first receives the full state,
	// then every parkingUpdate until it disconnects.
	e.GET("/ws", ws.Serve)
}
