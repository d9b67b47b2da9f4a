package rabbitmq

import (
	"context"
	"fmt"

	"zk-attestation/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

type ConsumerAlias string

type IRabbitmqConsumer interface {
	StartConsuming(ctx context.Context, handler func(amqp.Delivery)) error
}

type RabbitmqConsumer struct {
	Channel     *amqp.Channel
	QueueName   string
	ConsumerTag string
	logger      *logger.Logger
}

func NewConsumer(ch *amqp.Channel, queueName, consumerTag string, log *logger.Logger) *RabbitmqConsumer {
	return &RabbitmqConsumer{
		Channel:     ch,
		QueueName:   queueName,
		ConsumerTag: consumerTag,
		logger:      log,
	}
}

// StartConsuming blocks until ctx is cancelled or the delivery channel closes.
// A panicking handler is logged and does not stop the consumer.
func (rc *RabbitmqConsumer) StartConsuming(ctx context.Context, handler func(amqp.Delivery)) error {
	msgs, err := rc.Channel.Consume(
		rc.QueueName,   // queue
		rc.ConsumerTag, // consumer
		true,           // auto-ack
		false,          // exclusive
		false,          // no-local
		false,          // no-wait
		nil,            // args
	)
	if err != nil {
		return fmt.Errorf("register consumer %s: %w", rc.ConsumerTag, err)
	}

	rc.logger.Infof("Waiting for messages in queue: %s", rc.QueueName)

	for {
		select {
		case <-ctx.Done():
			return rc.Channel.Cancel(rc.ConsumerTag, false)
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			rc.logger.Debugf("[%s] received %d bytes", rc.QueueName, len(d.Body))
			rc.handle(handler, d)
		}
	}
}

func (rc *RabbitmqConsumer) handle(handler func(amqp.Delivery), d amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			rc.logger.Errorf(
				nil,
				"[%s] Recovered from panic for consumer: %s, %v",
				rc.QueueName,
				rc.ConsumerTag,
				r,
			)
		}
	}()

	handler(d)
}
