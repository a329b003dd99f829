package mq

import (
	"context"
	"errors"
	"fmt"

	"github.com/weatherkeep/apiserver/config"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Returning an error redelivers the message;
// wrap ErrPermanent to drop it instead.
type Handler func(ctx context.Context, msg Message) error

// ErrPermanent marks a handler failure that redelivery cannot fix, such as an
// undecodable payload.
var ErrPermanent = errors.New("permanent message failure")

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Open connects the backend selected by cfg.Backend. It returns nil, nil
// when no broker is configured.
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case config.MQBackendRabbitMQ:
		backend, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		return New(backend), nil
	case config.MQBackendPubSub:
		backend, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("connect pubsub: %w", err)
		}
		return New(backend), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe consumes messages from the named channel.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}
