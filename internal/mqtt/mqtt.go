// mqtt.go: Package mqtt announces ranking updates over MQTT.
package mqtt

import (
	"context"
	"time"

	"github.com/wildlens/wildlens-go/internal/conf"
	"github.com/wildlens/wildlens-go/internal/logger"
)

// Client defines the interface for MQTT client operations.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	Connect(ctx context.Context) error

	// Publish sends payload to topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// IsConnected returns true if the client is currently connected to the MQTT broker.
	IsConnected() bool

	// Disconnect closes the connection to the MQTT broker.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // ranking-updated events are published here
	Retain   bool   // true keeps the latest event at the broker for late subscribers

	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// ConfigFromSettings maps the MQTT settings and fills in the timeouts.
func ConfigFromSettings(s *conf.Settings) Config {
	return Config{
		Broker:            s.MQTT.Broker,
		ClientID:          s.MQTT.ClientID,
		Username:          s.MQTT.Username,
		Password:          s.MQTT.Password,
		Topic:             s.MQTT.Topic,
		Retain:            s.MQTT.Retain,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

// GetLogger returns the mqtt module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("mqtt")
}
