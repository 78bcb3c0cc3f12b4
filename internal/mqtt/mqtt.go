// Package mqtt publishes identification results to an MQTT broker.
package mqtt

import (
	"context"
	"time"

	"github.com/phibia-app/phibia-go/internal/conf"
	"github.com/phibia-app/phibia-go/internal/logger"
)

// Client defines the MQTT operations the result publisher needs.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	Connect(ctx context.Context) error

	// Publish sends payload to topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// IsConnected reports whether the broker connection is up.
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
	Topic    string // topic results are published to
	Retain   bool   // true to retain messages at the broker

	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
	MaxReconnectDelay time.Duration
}

const defaultTopic = "phibia/results"

// DefaultConfig returns a Config with reasonable default values.
func DefaultConfig() Config {
	return Config{
		Topic:             defaultTopic,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
		MaxReconnectDelay: 5 * time.Minute,
	}
}

// ConfigFromSettings fills a Config from the output settings.
func ConfigFromSettings(settings *conf.Settings) Config {
	cfg := DefaultConfig()
	mq := settings.Output.MQTT
	cfg.Broker = mq.Broker
	cfg.Username = mq.Username
	cfg.Password = mq.Password
	cfg.Retain = mq.Retain
	if mq.Topic != "" {
		cfg.Topic = mq.Topic
	}
	cfg.ClientID = "phibia"
	if settings.Main.Name != "" {
		cfg.ClientID = "phibia-" + settings.Main.Name
	}
	return cfg
}

func getLogger() logger.Logger {
	return logger.Global().Module("mqtt")
}
