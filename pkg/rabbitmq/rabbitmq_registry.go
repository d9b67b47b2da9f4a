package rabbitmq

import (
	"fmt"

	"zk-attestation/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Registry holds the publishers and consumers declared in config, keyed by alias.
type Registry struct {
	publishers map[PublisherAlias]IRabbitmqPublisher
	consumers  map[ConsumerAlias]IRabbitmqConsumer
}

func NewRegistry(conn *amqp.Connection, cfg RabbitmqConfig, log *logger.Logger) (*Registry, error) {
	r := &Registry{
		publishers: make(map[PublisherAlias]IRabbitmqPublisher, len(cfg.PublishersConfig)),
		consumers:  make(map[ConsumerAlias]IRabbitmqConsumer, len(cfg.ConsumersConfig)),
	}

	for _, publisher := range cfg.PublishersConfig {
		channel, err := conn.Channel()
		if err != nil {
			return nil, fmt.Errorf("open channel for publisher %s: %w", publisher.PublisherAlias, err)
		}
		r.publishers[publisher.PublisherAlias] = NewPublisher(channel, publisher.Exchange, publisher.RoutingKey)
	}

	for _, consumer := range cfg.ConsumersConfig {
		channel, err := conn.Channel()
		if err != nil {
			return nil, fmt.Errorf("open channel for consumer %s: %w", consumer.ConsumerAlias, err)
		}
		r.consumers[consumer.ConsumerAlias] = NewConsumer(channel, consumer.QueueName, consumer.ConsumerTag, log)
	}

	return r, nil
}

// GetPublisher returns nil when the alias is not configured or r is nil.
func (r *Registry) GetPublisher(alias PublisherAlias) IRabbitmqPublisher {
	if r == nil {
		return nil
	}
	return r.publishers[alias]
}

func (r *Registry) GetConsumer(alias ConsumerAlias) IRabbitmqConsumer {
	if r == nil {
		return nil
	}
	return r.consumers[alias]
}
