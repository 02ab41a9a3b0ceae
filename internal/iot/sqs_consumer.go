package iot

import (
	"apartment_parking/internal/repository"
	"apartment_parking/internal/service"
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
)

// SQSAPI is the part of the SQS client the consumer uses.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type GateHandler interface {
	HandleGateMessage(ctx context.Context, body string) error
}

// SQSConsumer long-polls the gate-event queue. A message is deleted once it is
// handled or once it can never be handled; anything else is redelivered after
// the visibility timeout.
type SQSConsumer struct {
	sqsClient  SQSAPI
	queueURL   string
	handler    GateHandler
	retryDelay time.Duration
}

func NewSQSConsumer(client SQSAPI, queueURL string, handler GateHandler) *SQSConsumer {
	return &SQSConsumer{
		sqsClient:  client,
		queueURL:   queueURL,
		handler:    handler,
		retryDelay: 5 * time.Second,
	}
}

func (c *SQSConsumer) Start(ctx context.Context) {
	log.Info().Str("queue_url", c.queueURL).Msg("SQS consumer listening")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("SQS consumer: context cancelled, stopping")
			return
		default:
		}

		if err := c.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("SQS consumer: receive failed")
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *SQSConsumer) poll(ctx context.Context) error {
	result, err := c.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   60,
	})
	if err != nil {
		return err
	}
	if len(result.Messages) > 0 {
		log.Debug().Int("count", len(result.Messages)).Msg("SQS consumer: received messages")
	}

	for _, message := range result.Messages {
		c.process(ctx, message)
	}
	return nil
}

func (c *SQSConsumer) process(ctx context.Context, message types.Message) {
	messageID := aws.ToString(message.MessageId)
	if message.Body == nil {
		log.Warn().Str("message_id", messageID).Msg("SQS consumer: empty message body, deleting")
		c.deleteMessage(ctx, message.ReceiptHandle)
		return
	}

	err := c.handler.HandleGateMessage(ctx, *message.Body)
	switch {
	case err == nil:
		c.deleteMessage(ctx, message.ReceiptHandle)
	case isPermanent(err):
		log.Warn().Err(err).Str("message_id", messageID).Msg("SQS consumer: discarding unprocessable message")
		c.deleteMessage(ctx, message.ReceiptHandle)
	default:
		log.Error().Err(err).Str("message_id", messageID).Msg("SQS consumer: processing failed, will retry after visibility timeout")
	}
}

// isPermanent reports errors that redelivery cannot fix.
func isPermanent(err error) bool {
	return errors.Is(err, service.ErrValidation) ||
		errors.Is(err, service.ErrUnknownGateMessage) ||
		errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, repository.ErrInvalidTransition)
}

func (c *SQSConsumer) deleteMessage(ctx context.Context, receiptHandle *string) {
	if receiptHandle == nil {
		log.Warn().Msg("SQS consumer: missing receipt handle, cannot delete message")
		return
	}
	_, err := c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		log.Error().Err(err).Msg("SQS consumer: delete failed")
	}
}
