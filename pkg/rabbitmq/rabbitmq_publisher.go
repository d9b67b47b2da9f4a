package rabbitmq

import (
	"context"
	"time"

	"zk-attestation/pkg/utilities"

	amqp "github.com/rabbitmq/amqp091-go"
)

type PublisherAlias string

// ContentTyped lets a payload override the default JSON content type.
type ContentTyped interface {
	ContentType() string
}

type IRabbitmqPublisher interface {
	Publish(ctx context.Context, body utilities.Serializable) error
}

type RabbitmqPublisher struct {
	Channel    *amqp.Channel
	Exchange   string
	RoutingKey string
}

func NewPublisher(ch *amqp.Channel, exchange, routingKey string) *RabbitmqPublisher {
	return &RabbitmqPublisher{
		Channel:    ch,
		Exchange:   exchange,
		RoutingKey: routingKey,
	}
}

func (rp *RabbitmqPublisher) Publish(ctx context.Context, body utilities.Serializable) error {
	payload, err := body.Serialize()
	if err != nil {
		return err
	}

	contentType := "application/json"
	if ct, ok := body.(ContentTyped); ok {
		contentType = ct.ContentType()
	}

	return rp.Channel.PublishWithContext(
		ctx,
		rp.Exchange,
		rp.RoutingKey,
		false, false,
		amqp.Publishing{
			ContentType:  contentType,
			Body:         payload,
			Timestamp:    time.Now(),
			DeliveryMode: amqp.Persistent,
		},
	)
}
