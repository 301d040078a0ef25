// Package hub fans parking-state updates out to every connected viewer.
// Viewers subscribe for a channel of pre-encoded frames; publishers hand in
// a payload that is wrapped in the parkingUpdate envelope and encoded once.
package hub

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// EventParkingUpdate is the single event name carried to viewers.  The
// payload is either the full space set (reservations, initial snapshot) or
// the raw observation batch (telemetry); viewers re-render by id either way.
const EventParkingUpdate = "parkingUpdate"

// Envelope is the wire format of one push frame.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub tracks viewer subscriptions.  Add/remove/iterate are safe to call
// concurrently; no ordering of delivery across viewers is guaranteed.
type Hub struct {
	mu      sync.RWMutex
	viewers map[chan []byte]struct{}
	logger  *zap.Logger
}

// New constructs an empty Hub.
func New(logger *zap.Logger) *Hub {
	return &Hub{
		viewers: make(map[chan []byte]struct{}),
		logger:  logger,
	}
}

// Subscribe registers a new viewer and returns its frame channel together
// with an unsubscribe function.  The unsubscribe function is idempotent and
// closes the channel, which ends the viewer's write loop.
func (h *Hub) Subscribe() (chan []byte, func()) {
	frames := make(chan []byte, 64)

	h.mu.Lock()
	h.viewers[frames] = struct{}{}
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		if _, ok := h.viewers[frames]; ok {
			delete(h.viewers, frames)
			close(frames)
		}
		h.mu.Unlock()
	}
	return frames, unsubscribe
}

// ViewerCount reports how many viewers are currently subscribed.
func (h *Hub) ViewerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// Publish encodes data into a parkingUpdate frame and hands it to every
// subscribed viewer.  A viewer whose buffer is full misses the frame rather
// than blocking the publisher; the next full-state push catches it up.
//
// The read lock is held across the sends: unsubscribe closes a viewer's
// channel only under the write lock, so no channel can be closed while a
// send to it is in flight.  The sends never block (see the default case),
// so holding the lock here cannot stall connect or disconnect for long.
func (h *Hub) Publish(data interface{}) {
	frame, err := Encode(data)
	if err != nil {
		h.logger.Error("encode parkingUpdate frame", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for v := range h.viewers {
		select {
		case v <- frame:
		default:
			h.logger.Warn("viewer buffer full, dropping frame")
		}
	}
}

// Encode wraps data in the parkingUpdate envelope and marshals it.  Exposed
// so the websocket handler can build the initial snapshot frame for a single
// viewer without going through the fan-out.
func Encode(data interface{}) ([]byte, error) {
	return json.Marshal(Envelope{Event: EventParkingUpdate, Data: data})
}
