package notify

import (
	"context"
	"encoding/json"
	"errors"
)

// RawPublisher publishes a payload to a topic. mqtt.Publisher satisfies it.
type RawPublisher interface {
	PublishRaw(topic string, payload []byte) error
}

// BusChannel publishes messages as JSON to a pub/sub topic.
type BusChannel struct {
	publisher RawPublisher
	topic     string
}

// NewBusChannel constructs a bus channel.
func NewBusChannel(publisher RawPublisher, topic string) (*BusChannel, error) {
	if publisher == nil {
		return nil, errors.New("bus channel: no publisher")
	}
	if topic == "" {
		return nil, errors.New("bus channel: empty topic")
	}
	return &BusChannel{publisher: publisher, topic: topic}, nil
}

// Name identifies the channel in logs.
func (b *BusChannel) Name() string {
	return "bus"
}

// Send publishes msg to the configured topic.
func (b *BusChannel) Send(_ context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.publisher.PublishRaw(b.topic, payload)
}
