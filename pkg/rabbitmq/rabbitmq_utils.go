package rabbitmq

import (
	"context"
	"time"

	"zk-attestation/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

func ConnectToRabbitmq(ctx context.Context, cfg RabbitmqConfig, log *logger.Logger) (*amqp.Connection, error) {
	var (
		conn *amqp.Connection
		err  error
	)
	waitTime := 1 * time.Second

	for i := 0; i < cfg.MaxRetries; i++ {
		conn, err = amqp.Dial(cfg.URL())
		if err == nil {
			return conn, nil
		}

		log.Warnf("Attempt %d failed: %v. Retrying in %v...", i+1, err, waitTime)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(waitTime):
		}
		waitTime *= 2
	}
	return nil, err
}
