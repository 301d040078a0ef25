// Package telemetry ingests sensor observations from the parking/sensor
// MQTT topic and applies them to the space store.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/smart-parking/internal/mqtt"
)

// Observation is one per-space reading inside a telemetry batch.  Each
// message on the sensor topic decodes to an array of these: a snapshot from
// the sensor network, not a single-space delta.
type Observation struct {
	ID        int  `json:"id"`
	Available bool `json:"available"`
}

// SpaceStore is the slice of the repository the consumer writes through.
type SpaceStore interface {
	SetAvailability(ctx context.Context, id int, available bool) (bool, error)
}

// Broadcaster pushes an update to every connected viewer.
type Broadcaster interface {
	Publish(data interface{})
}

// applyTimeout bounds each store write so a stalled database connection
// stalls only the batch that hit it, not the paho delivery goroutine forever.
const applyTimeout = 5 * time.Second

// Consumer decodes telemetry batches and applies them observation by
// observation.  Writes are absolute ("set available to v"), so the
// at-least-once channel is safe: duplicates and re-deliveries of old
// batches are idempotent, and a crash mid-batch is healed by the next
// snapshot from the sensors.
type Consumer struct {
	store      SpaceStore
	broadcast  Broadcaster
	invalidate func(context.Context) // clears the cached places response; may be nil
	logger     *zap.Logger
}

// NewConsumer constructs a Consumer.  invalidate may be nil when response
// caching is disabled.
func NewConsumer(store SpaceStore, broadcast Broadcaster, invalidate func(context.Context), logger *zap.Logger) *Consumer {
	return &Consumer{
		store:      store,
		broadcast:  broadcast,
		invalidate: invalidate,
		logger:     logger,
	}
}

// Start subscribes HandleMessage on the sensor topic at QoS 1.
func (c *Consumer) Start(client *mqtt.Client, topic string) error {
	if err := client.Subscribe(topic, 1, c.HandleMessage); err != nil {
		return fmt.Errorf("start telemetry consumer: %w", err)
	}
	c.logger.Info("telemetry consumer started", zap.String("topic", topic))
	return nil
}

// HandleMessage processes one delivery.  A malformed payload is dropped
// with an error log and the subscription stays up.  Store failures on
// individual observations are logged and the rest of the batch is still
// applied; the batch is then broadcast as-is, mirroring what the sensors
// reported rather than re-reading the store.
func (c *Consumer) HandleMessage(topic string, payload []byte) error {
	var batch []Observation
	if err := json.Unmarshal(payload, &batch); err != nil {
		return fmt.Errorf("decode telemetry batch: %w", err)
	}
	c.logger.Debug("telemetry batch received",
		zap.String("topic", topic),
		zap.Int("observations", len(batch)),
	)

	ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
	defer cancel()

	applied := 0
	for _, obs := range batch {
		modified, err := c.store.SetAvailability(ctx, obs.ID, obs.Available)
		if err != nil {
			c.logger.Error("apply observation failed",
				zap.Int("space_id", obs.ID),
				zap.Error(err),
			)
			continue
		}
		if modified {
			applied++
		}
	}

	if applied > 0 && c.invalidate != nil {
		c.invalidate(ctx)
	}

	// Broadcast the observed deltas, not a fresh full read.  Viewers merge
	// by id; a full-state frame follows on the next reservation or connect.
	c.broadcast.Publish(batch)
	return nil
}
