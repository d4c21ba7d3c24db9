package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout = 5 * time.Second
	retryDelay     = 2 * time.Second
	disconnectWait = 250 // milliseconds
)

// ClientConfig holds broker connection settings.
type ClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// NewClient configures a paho client speaking MQTT 3.1.1 with automatic reconnects.
func NewClient(cfg ClientConfig, logger *slog.Logger) paho.Client {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetProtocolVersion(4).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("MQTT connection lost", "error", err)
		}).
		SetOnConnectHandler(func(paho.Client) {
			logger.Info("MQTT connected", "broker", cfg.Broker)
		})
	return paho.NewClient(opts)
}

// Connect retries until the broker accepts the connection or ctx is done.
func Connect(ctx context.Context, client paho.Client, logger *slog.Logger) error {
	for attempt := 1; ; attempt++ {
		tok := client.Connect()
		if tok.WaitTimeout(connectTimeout) && tok.Error() == nil {
			return nil
		}
		logger.Warn("MQTT connect failed", "attempt", attempt, "error", tok.Error())

		select {
		case <-ctx.Done():
			return fmt.Errorf("MQTT connect: %w", ctx.Err())
		case <-time.After(retryDelay):
		}
	}
}
