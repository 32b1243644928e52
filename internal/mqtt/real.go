package mqtt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/peak-switch/internal/logic"
)

const (
	bufferCapacity = 100
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed in order on reconnect.
type RealPublisher struct {
	client paho.Client
	prefix string
	logger *slog.Logger

	mu     sync.Mutex
	buffer *ringBuffer
}

// NewRealPublisher creates a publisher for the given broker. If the broker is
// not reachable within the connect timeout the publisher keeps retrying in the
// background and buffers until connected.
func NewRealPublisher(broker, clientID, prefix string, logger *slog.Logger) (*RealPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &RealPublisher{
		prefix: prefix,
		logger: logger,
		buffer: newRingBuffer(bufferCapacity, logger),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(SystemTopic(prefix), string(FormatWillPayload()), 1, true).
		SetOnConnectHandler(func(paho.Client) { p.flush() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("mqtt connection lost", "err", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		logger.Warn("mqtt broker not reachable yet, buffering", "broker", broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Publish sends an actuator command event to the broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 1, retained so late subscribers see the current switch state
	return p.publish(EventsTopic(p.prefix), 1, true, payload)
}

// PublishSystem sends a system lifecycle event to the broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(SystemTopic(p.prefix), 1, event.Retained, payload)
}

// PublishRaw sends payload to topic.
func (p *RealPublisher) PublishRaw(topic string, payload []byte) error {
	return p.publish(topic, 1, false, payload)
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Queue behind anything not yet replayed so a retained state never
	// reaches the broker ahead of an older one.
	if !p.client.IsConnectionOpen() || p.buffer.len() > 0 {
		p.buffer.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		return nil
	}
	return p.send(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
}

func (p *RealPublisher) send(m bufferedMsg) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// flush replays buffered messages after (re)connect. The lock is held for
// the whole replay so concurrent publishes queue behind it.
func (p *RealPublisher) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()

	msgs := p.buffer.drainAll()
	if len(msgs) == 0 {
		return
	}
	p.logger.Info("mqtt connected, replaying buffered messages", "count", len(msgs))
	for _, m := range msgs {
		if err := p.send(m); err != nil {
			p.logger.Warn("mqtt replay failed", "topic", m.topic, "err", err)
		}
	}
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
