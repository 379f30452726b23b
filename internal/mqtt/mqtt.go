// Package mqtt dials the MQTT broker shared by the sensor ingestion path and
// the lifecycle event publisher.
package mqtt

import (
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	// DefaultConnectTimeout bounds the initial broker connection.
	DefaultConnectTimeout = 10 * time.Second
	// DefaultRetryInterval is the delay between reconnection attempts.
	DefaultRetryInterval = 5 * time.Second
	// disconnectQuiesceMs is how long Close waits for in-flight work.
	disconnectQuiesceMs = 1000
)

// ErrConnectTimeout is returned when the broker does not answer in time.
var ErrConnectTimeout = errors.New("mqtt connection timeout")

// Options configures the broker connection.
type Options struct {
	// Broker is the broker URL, e.g. tcp://127.0.0.1:1883.
	Broker string
	// ClientID identifies this process to the broker.
	ClientID string
	// ConnectTimeout bounds the initial connection.
	ConnectTimeout time.Duration
	// OnConnectionLost is called when an established connection drops.
	OnConnectionLost func(err error)
}

// Dial connects to the broker with automatic reconnection enabled.
//
//nolint:ireturn // paho.Client is the library's public handle.
func Dial(opts Options) (paho.Client, error) {
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	clientOptions := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(DefaultRetryInterval).
		SetOrderMatters(true)

	if opts.OnConnectionLost != nil {
		clientOptions.SetConnectionLostHandler(func(_ paho.Client, err error) {
			opts.OnConnectionLost(err)
		})
	}

	client := paho.NewClient(clientOptions)

	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("%w: %s", ErrConnectTimeout, opts.Broker)
	}

	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return client, nil
}

// Close disconnects the client, waiting briefly for in-flight messages.
func Close(client paho.Client) {
	if client == nil {
		return
	}

	client.Disconnect(disconnectQuiesceMs)
}

// Wait waits for a token and converts timeouts and failures into errors.
func Wait(token paho.Token, timeout time.Duration, action string) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%s: timeout after %s", action, timeout)
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}

	return nil
}
