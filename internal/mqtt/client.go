// Package mqtt wraps the paho client with the small surface the telemetry
// consumer needs: connect, subscribe with a payload handler, disconnect.
package mqtt

import (
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MessageHandler processes one delivery.  Returning an error never tears the
// subscription down; the error is logged and the next delivery is handled
// normally.  The channel is at-least-once, so handlers must be idempotent.
type MessageHandler func(topic string, payload []byte) error

// Client is a thin wrapper over a connected paho MQTT client.
type Client struct {
	client paho.Client
	logger *zap.Logger
}

// Connect dials the broker and blocks until the connection is established
// or fails.  Auto-reconnect is enabled, so a dropped broker connection is
// re-established in the background and subscriptions are restored.
func Connect(brokerURL, clientID string, logger *zap.Logger) (*Client, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	// clean session off: the broker re-delivers QoS 1 messages missed
	// while reconnecting instead of silently dropping them
	opts.SetCleanSession(false)

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", brokerURL, token.Error())
	}

	logger.Info("connected to MQTT broker", zap.String("broker", brokerURL))
	return &Client{client: client, logger: logger}, nil
}

// Subscribe registers handler for every delivery on topic at QoS 1.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	token := c.client.Subscribe(topic, qos, func(_ paho.Client, msg paho.Message) {
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			// log and move on; one bad message must not stop ingestion
			c.logger.Error("MQTT message handler failed",
				zap.String("topic", msg.Topic()),
				zap.Error(err),
			)
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe to topic %s: %w", topic, token.Error())
	}
	return nil
}

// Unsubscribe removes the subscriptions for the given topics.
func (c *Client) Unsubscribe(topics ...string) error {
	token := c.client.Unsubscribe(topics...)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("unsubscribe: %w", token.Error())
	}
	return nil
}

// Disconnect flushes in-flight work and closes the broker connection.
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
}
