package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/weatherkeep/apiserver/config"
)

// RabbitMQClient publishes to and consumes from named queues on the default
// exchange. Publishes share one channel; each subscription opens its own.
type RabbitMQClient struct {
	conn *amqp.Connection
	cfg  config.RabbitMQConfig

	mu       sync.Mutex
	pub      *amqp.Channel
	declared map[string]struct{}
}

// NewRabbitMQClient dials the broker and opens the publishing channel.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	pub, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &RabbitMQClient{
		conn:     conn,
		cfg:      cfg,
		pub:      pub,
		declared: make(map[string]struct{}),
	}, nil
}

// Publish sends a persistent JSON message to the named queue.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}

	headers := make(amqp.Table, len(attrs))
	for key, value := range attrs {
		headers[key] = value
	}
	messageID := uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.declared[channel]; !ok {
		if _, err := r.declareQueue(r.pub, channel); err != nil {
			return "", fmt.Errorf("declare queue %s: %w", channel, err)
		}
		r.declared[channel] = struct{}{}
	}

	err := r.pub.PublishWithContext(ctx, "", channel, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Headers:      headers,
		Body:         data,
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe consumes messages from the named queue until ctx is done.
// Handler errors requeue the delivery unless they wrap ErrPermanent.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}

	ch, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if r.cfg.PrefetchCount > 0 {
		if err := ch.Qos(r.cfg.PrefetchCount, 0, false); err != nil {
			return err
		}
	}
	if _, err := r.declareQueue(ch, channel); err != nil {
		return fmt.Errorf("declare queue %s: %w", channel, err)
	}

	consumerTag := "weatherkeep-" + uuid.NewString()
	deliveries, err := ch.Consume(channel, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = ch.Cancel(consumerTag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			message := Message{
				ID:         delivery.MessageId,
				Data:       delivery.Body,
				Attributes: headersToAttributes(delivery.Headers),
			}
			if err := handler(ctx, message); err != nil {
				_ = delivery.Nack(false, !errors.Is(err, ErrPermanent))
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

// Close closes the publishing channel and the connection.
func (r *RabbitMQClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pub != nil {
		_ = r.pub.Close()
		r.pub = nil
	}
	if r.conn != nil {
		err := r.conn.Close()
		r.conn = nil
		return err
	}
	return nil
}

func (r *RabbitMQClient) declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(name, r.cfg.QueueDurable, r.cfg.QueueAutoDelete, false, false, nil)
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}
