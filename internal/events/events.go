package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/weatherkeep/apiserver/internal/mq"
	"github.com/weatherkeep/apiserver/types"
)

const (
	attrType   = "type"
	attrUserID = "user_id"

	TypeWeatherSaved = "weather.saved"
)

// Broker is the subset of mq.MQ used for weather events.
type Broker interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// Publisher emits history events on a single channel.
type Publisher struct {
	broker  Broker
	channel string
}

func NewPublisher(broker Broker, channel string) *Publisher {
	return &Publisher{broker: broker, channel: channel}
}

// WeatherSaved publishes a record appended for userID and returns the broker message ID.
func (p *Publisher) WeatherSaved(ctx context.Context, userID int, record types.WeatherRecord) (string, error) {
	data, err := json.Marshal(types.WeatherSavedEvent{UserID: userID, Record: record})
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}
	return p.broker.Publish(ctx, p.channel, data, map[string]string{
		attrType:   TypeWeatherSaved,
		attrUserID: strconv.Itoa(userID),
	})
}

// Consume decodes weather.saved events from the channel and passes them to fn
// until ctx is done.
func Consume(ctx context.Context, broker Broker, channel string, fn func(context.Context, types.WeatherSavedEvent) error) error {
	return broker.Subscribe(ctx, channel, func(ctx context.Context, msg mq.Message) error {
		var event types.WeatherSavedEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return fmt.Errorf("%w: decode event %s: %v", mq.ErrPermanent, msg.ID, err)
		}
		return fn(ctx, event)
	})
}
