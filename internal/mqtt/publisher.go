package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/yourusername/canary-bridge/internal/bridge"
	"go.uber.org/zap"
)

// Publisher pushes entity states to an MQTT broker as retained topics so
// smart-home platforms can pick them up.
type Publisher struct {
	client      pahomqtt.Client
	logger      *zap.Logger
	topicPrefix string
}

// Config holds the configuration for the Publisher.
type Config struct {
	BrokerURL   string
	ClientID    string
	TopicPrefix string
	Logger      *zap.Logger
}

// NewPublisher creates a new MQTT publisher.
func NewPublisher(config Config) *Publisher {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(config.BrokerURL)
	opts.SetClientID(config.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)

	return &Publisher{
		client:      pahomqtt.NewClient(opts),
		logger:      config.Logger,
		topicPrefix: config.TopicPrefix,
	}
}

// Connect establishes the broker connection.
func (p *Publisher) Connect() error {
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("timeout connecting to mqtt broker")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to mqtt broker: %w", err)
	}

	p.logger.Info("Connected to MQTT broker")
	return nil
}

// Disconnect closes the broker connection.
func (p *Publisher) Disconnect() {
	p.client.Disconnect(250)
}

// PublishStates publishes one retained message per entity under
// <prefix>/<kind>/<unique_id>.
func (p *Publisher) PublishStates(states []bridge.EntityState) {
	for _, state := range states {
		payload, err := json.Marshal(state)
		if err != nil {
			p.logger.Error("Failed to encode entity state",
				zap.String("unique_id", state.UniqueID),
				zap.Error(err),
			)
			continue
		}

		topic := fmt.Sprintf("%s/%s/%s", p.topicPrefix, state.Kind, state.UniqueID)
		token := p.client.Publish(topic, 0, true, payload)
		go func(topic string) {
			token.Wait()
			if err := token.Error(); err != nil {
				p.logger.Error("Failed to publish entity state",
					zap.String("topic", topic),
					zap.Error(err),
				)
			}
		}(topic)
	}
}
