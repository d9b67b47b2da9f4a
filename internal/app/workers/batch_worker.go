package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"zk-attestation/internal/app/attestation"
	"zk-attestation/internal/app/engine"
	dtocommon "zk-attestation/pkg/dto_common"
	"zk-attestation/pkg/logger"
	"zk-attestation/pkg/rabbitmq"
	reasoncodes "zk-attestation/pkg/reason_codes"
	"zk-attestation/pkg/utilities"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	batchWorkerName = "AttestationBatchWorker"

	AttestationRequestsConsumerAlias  rabbitmq.ConsumerAlias  = "AttestationRequestsConsumer"
	AttestationResultsPublisherAlias  rabbitmq.PublisherAlias = "AttestationResultsPublisher"
	AttestationFailuresPublisherAlias rabbitmq.PublisherAlias = "AttestationFailuresPublisher"
)

type BatchGenerator interface {
	GenerateBatch(ctx context.Context, record attestation.AttributeRecord, requests []engine.BatchRequest) engine.BatchResult
}

// BatchWorker answers batch attestation requests arriving on a queue. Every
// requested kind yields exactly one message: a result or a failure.
type BatchWorker struct {
	generator BatchGenerator
	consumer  rabbitmq.IRabbitmqConsumer
	results   rabbitmq.IRabbitmqPublisher
	failures  rabbitmq.IRabbitmqPublisher
	logger    *logger.Logger
}

func NewBatchWorker(registry *rabbitmq.Registry, generator BatchGenerator, log *logger.Logger) *BatchWorker {
	return &BatchWorker{
		generator: generator,
		consumer:  registry.GetConsumer(AttestationRequestsConsumerAlias),
		results:   registry.GetPublisher(AttestationResultsPublisherAlias),
		failures:  registry.GetPublisher(AttestationFailuresPublisherAlias),
		logger:    log,
	}
}

func (w *BatchWorker) GetServiceName() string {
	return batchWorkerName
}

func (w *BatchWorker) StartService(ctx context.Context) {
	if w.consumer == nil || w.results == nil || w.failures == nil {
		w.logger.Warnf("%s is not configured, batch requests will not be consumed", batchWorkerName)
		return
	}

	err := w.consumer.StartConsuming(ctx, func(d amqp.Delivery) {
		w.process(ctx, d.Body)
	})
	if err != nil {
		w.logger.Errorf(err, "%s stopped consuming", batchWorkerName)
	}
}

func (w *BatchWorker) process(ctx context.Context, body []byte) {
	var message AttestationBatchRequestDto
	responseFactory := dtocommon.NewAttestationFailureFactory("", body)

	if err := json.Unmarshal(body, &message); err != nil {
		w.publish(ctx, w.failures, responseFactory.CreateErrorDto("", err, reasonCodeOf(err, reasoncodes.ErrUnmarshal)))
		return
	}
	responseFactory = dtocommon.NewAttestationFailureFactory(message.EventId, body)

	if len(message.Requests) == 0 {
		w.publish(ctx, w.failures, responseFactory.CreateErrorDto("", fmt.Errorf("batch request carries no requests"), reasoncodes.ErrParameterValidation))
		return
	}

	result := w.generator.GenerateBatch(ctx, message.Record, message.Requests)

	// Request order keeps publishing deterministic; each produced kind goes out once.
	published := make(map[attestation.Kind]bool, len(result.Attestations))
	for _, req := range message.Requests {
		att, ok := result.Attestations[req.Kind]
		if !ok || published[req.Kind] {
			continue
		}
		published[req.Kind] = true
		w.publish(ctx, w.results, AttestationResultDto{
			EventId:     message.EventId,
			Kind:        req.Kind,
			Attestation: att,
		})
	}
	for _, ke := range result.Errors {
		w.publish(ctx, w.failures, responseFactory.CreateErrorDto(string(ke.Kind), ke.Err, reasonCodeOf(ke.Err, reasoncodes.ErrProofGeneration)))
	}

	w.logger.Infof("Processed batch %s: %d attestations, %d failures", message.EventId, len(result.Attestations), len(result.Errors))
}

func (w *BatchWorker) publish(ctx context.Context, publisher rabbitmq.IRabbitmqPublisher, body utilities.Serializable) {
	if err := publisher.Publish(ctx, body); err != nil {
		w.logger.Error(err, "Can't publish to queue")
	}
}

func reasonCodeOf(err error, fallback reasoncodes.ReasonCode) reasoncodes.ReasonCode {
	var attErr *attestation.Error
	if errors.As(err, &attErr) {
		return attErr.Reason()
	}
	return fallback
}
