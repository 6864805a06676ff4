package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"
)

// SQSAPI is the subset of the SQS client used here.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSQueue sends to and polls a single SQS queue.
type SQSQueue struct {
	client   SQSAPI
	queueURL string
}

// NewSQSQueue creates a queue handle for the given queue URL
func NewSQSQueue(cfg sdkaws.Config, queueURL string) *SQSQueue {
	return &SQSQueue{
		client:   sqs.NewFromConfig(cfg),
		queueURL: queueURL,
	}
}

// NewSQSQueueWithAPI wraps an existing SQS API implementation.
func NewSQSQueueWithAPI(api SQSAPI, queueURL string) *SQSQueue {
	return &SQSQueue{client: api, queueURL: queueURL}
}

// MessageHandler is a function that processes an SQS message body
type MessageHandler func(ctx context.Context, body string) error

// StartPolling polls SQS for messages and processes them with the handler.
// Runs until ctx is cancelled.
func (q *SQSQueue) StartPolling(ctx context.Context, handler MessageHandler) error {
	zap.L().Info("starting SQS polling", zap.String("queue_url", q.queueURL))

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("SQS polling stopped", zap.String("queue_url", q.queueURL))
			return ctx.Err()
		default:
			if err := q.PollOnce(ctx, handler); err != nil && ctx.Err() == nil {
				zap.L().Error("error polling SQS", zap.Error(err))
			}
		}
	}
}

// PollOnce receives one batch of messages. Messages whose handler fails are
// left on the queue and become visible again after the visibility timeout.
func (q *SQSQueue) PollOnce(ctx context.Context, handler MessageHandler) error {
	result, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            sdkaws.String(q.queueURL),
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   30,
	})
	if err != nil {
		return fmt.Errorf("failed to receive messages: %w", err)
	}

	for _, msg := range result.Messages {
		if msg.Body == nil {
			continue
		}

		if err := handler(ctx, *msg.Body); err != nil {
			zap.L().Warn("failed to process message", zap.String("message_id", sdkaws.ToString(msg.MessageId)), zap.Error(err))
			continue
		}

		if _, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      sdkaws.String(q.queueURL),
			ReceiptHandle: msg.ReceiptHandle,
		}); err != nil {
			zap.L().Error("failed to delete message", zap.String("message_id", sdkaws.ToString(msg.MessageId)), zap.Error(err))
		}
	}

	return nil
}

// SendMessage sends a single message to the queue and returns its message id
func (q *SQSQueue) SendMessage(ctx context.Context, body string) (string, error) {
	out, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    sdkaws.String(q.queueURL),
		MessageBody: sdkaws.String(body),
	})
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	return sdkaws.ToString(out.MessageId), nil
}
