package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"zk-attestation/pkg/logger"
	logger_message "zk-attestation/pkg/utilities/logger"
	"zk-attestation/pkg/utilities/timeutil"

	"github.com/rs/zerolog"
)

func CreateRabbitmqLoggerSink(publisher IRabbitmqPublisher) logger.SinkFunc {
	return func(msg string, level zerolog.Level, timestamp timeutil.TimeUTC) {
		loggerMessage := logger_message.LoggerMessage{
			Level:     level.String(),
			Message:   msg,
			Timestamp: timestamp,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := publisher.Publish(ctx, loggerMessage); err != nil {
			// not through the logger: that would recurse into this sink
			fmt.Printf("Failed to publish log message to RabbitMQ: %v\n", err)
		}
	}
}
