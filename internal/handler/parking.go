package handler

import (
	"context"  // passed through to the repository and event publisher
	"fmt"      // formats the reservation confirmation message
	"net/http" // HTTP status codes
	"strconv"  // parsing path parameters

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/smart-parking/internal/middleware"
	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/queue"
	"github.com/iliyamo/smart-parking/internal/repository"
)

// Broadcaster pushes an update to every connected viewer.
type Broadcaster interface {
	Publish(data interface{})
}

// ParkingHandler serves the parking-state read and the reservation write.
// Cache and PublishEvent are optional; when nil the corresponding side
// effect (cache invalidation, reservation event trail) is skipped.
type ParkingHandler struct {
	Spaces       *repository.SpaceRepo
	Hub          Broadcaster
	Cache        *middleware.ResponseCache
	PublishEvent func(context.Context, queue.SpaceReservedEvent) error
	Logger       *zap.Logger
}

// NewParkingHandler constructs a ParkingHandler.  Spaces and Hub must be
// non-nil.
func NewParkingHandler(spaces *repository.SpaceRepo, hub Broadcaster, cache *middleware.ResponseCache, publish func(context.Context, queue.SpaceReservedEvent) error, logger *zap.Logger) *ParkingHandler {
	if spaces == nil || hub == nil {
		panic("nil dependency passed to NewParkingHandler")
	}
	return &ParkingHandler{
		Spaces:       spaces,
		Hub:          hub,
		Cache:        cache,
		PublishEvent: publish,
		Logger:       logger,
	}
}

// GetPlaces handles GET /api/places.  It returns the full space set as a
// JSON array; a store failure maps to 500.
func (h *ParkingHandler) GetPlaces(c echo.Context) error {
	spaces, err := h.Spaces.FindAll(c.Request().Context())
	if err != nil {
		h.Logger.Error("fetch parking data failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Error fetching parking data"})
	}
	if spaces == nil {
		spaces = []model.Space{}
	}
	return c.JSON(http.StatusOK, spaces)
}

// ReserveSpace handles POST /api/reserve/:id.  The space is marked
// unavailable unconditionally; there is no read-before-write check that it
// was available, so two racing requests can both see success.  That matches
// the deployed sensor-network behavior and is left as is.
//
// A zero-rows-changed update answers 404 whether the id does not exist or
// the space was already taken; the store cannot tell the two apart.
func (h *ParkingHandler) ReserveSpace(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid space id"})
	}

	ctx := c.Request().Context()
	modified, err := h.Spaces.SetAvailability(ctx, id, false)
	if err != nil {
		h.Logger.Error("reserve space failed", zap.Int("space_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Internal server error"})
	}
	if !modified {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Place not found or already reserved"})
	}

	// the write is acknowledged; broadcast the post-write full state so
	// every viewer converges on the same record set
	spaces, err := h.Spaces.FindAll(ctx)
	if err != nil {
		h.Logger.Error("read after reserve failed", zap.Int("space_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Internal server error"})
	}
	h.Hub.Publish(spaces)

	if h.Cache != nil {
		h.Cache.Invalidate(ctx, http.MethodGet, "/api/places")
	}
	if h.PublishEvent != nil {
		ev := queue.NewSpaceReservedEvent(id)
		go func() {
			if err := h.PublishEvent(context.Background(), ev); err != nil {
				h.Logger.Warn("publish reservation event failed", zap.Int("space_id", id), zap.Error(err))
			}
		}()
	}

	h.Logger.Info("space reserved", zap.Int("space_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": fmt.Sprintf("Place %d reserved", id)})
}
