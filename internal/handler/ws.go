package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/smart-parking/internal/hub"
	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/repository"
)

// WSHandler upgrades viewer connections and pumps parkingUpdate frames to
// them.  Viewers are receive-only; inbound frames are read just to detect
// disconnects.
type WSHandler struct {
	Hub      *hub.Hub
	Spaces   *repository.SpaceRepo
	Logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler constructs a WSHandler.  Origins are not restricted: the
// endpoint is read-only public state, same as GET /api/places.
func NewWSHandler(h *hub.Hub, spaces *repository.SpaceRepo, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		Hub:    h,
		Spaces: spaces,
		Logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Serve handles GET /ws.  The viewer first receives the current full space
// set, then every subsequent update until it disconnects.  If the initial
// read fails the viewer gets nothing for that event but stays connected;
// the next broadcast still reaches it.
func (h *WSHandler) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	frames, unsubscribe := h.Hub.Subscribe()
	defer unsubscribe()

	if spaces, err := h.Spaces.FindAll(c.Request().Context()); err != nil {
		h.Logger.Error("initial state read failed", zap.Error(err))
	} else {
		if spaces == nil {
			spaces = []model.Space{}
		}
		if frame, err := hub.Encode(spaces); err == nil {
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return nil
			}
		}
	}

	// the read loop's only job is to notice the peer going away
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				unsubscribe()
				return
			}
		}
	}()

	for frame := range frames {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			break
		}
	}
	return nil
}
