package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	aws_pkg "github.com/yashrajoria/basket-service/pkg/aws"

	"github.com/yashrajoria/basket-service/models"
)

// EventPublisher publishes one checkout event to the external bus and
// returns the bus acknowledgment.
type EventPublisher interface {
	Publish(ctx context.Context, event models.CheckoutEvent) (models.PublishReceipt, error)
}

// ErrPublish matches every publisher adapter failure.
var ErrPublish = errors.New("event publish error")

// PublishError wraps the cause of a failed publish.
type PublishError struct {
	Publisher string
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("%s publish: %v", e.Publisher, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

func (e *PublishError) Is(target error) bool { return target == ErrPublish }

const (
	PublisherEventBridge = "eventbridge"
	PublisherSNS         = "sns"
	PublisherKafka       = "kafka"
)

// BusSender puts a single entry on an event bus.
type BusSender interface {
	PutEvent(ctx context.Context, evt aws_pkg.BusEvent) (string, error)
}

// EventBridgePublisher publishes checkout events with PutEvents.
type EventBridgePublisher struct {
	bus BusSender
}

func NewEventBridgePublisher(bus BusSender) *EventBridgePublisher {
	return &EventBridgePublisher{bus: bus}
}

func (p *EventBridgePublisher) Publish(ctx context.Context, event models.CheckoutEvent) (models.PublishReceipt, error) {
	detail, err := json.Marshal(event.Detail)
	if err != nil {
		return models.PublishReceipt{}, &PublishError{Publisher: PublisherEventBridge, Err: fmt.Errorf("marshal detail: %w", err)}
	}

	id, err := p.bus.PutEvent(ctx, aws_pkg.BusEvent{
		BusName:    event.BusName,
		Source:     event.Source,
		DetailType: event.DetailType,
		Detail:     detail,
	})
	if err != nil {
		return models.PublishReceipt{}, &PublishError{Publisher: PublisherEventBridge, Err: err}
	}
	return models.PublishReceipt{MessageID: id, Publisher: PublisherEventBridge}, nil
}

// SNSEventPublisher publishes the event detail to an SNS topic; source and
// detail type travel as message attributes.
type SNSEventPublisher struct {
	client   aws_pkg.SNSPublisher
	topicArn string
}

func NewSNSEventPublisher(client aws_pkg.SNSPublisher, topicArn string) *SNSEventPublisher {
	return &SNSEventPublisher{client: client, topicArn: topicArn}
}

func (p *SNSEventPublisher) Publish(ctx context.Context, event models.CheckoutEvent) (models.PublishReceipt, error) {
	detail, err := json.Marshal(event.Detail)
	if err != nil {
		return models.PublishReceipt{}, &PublishError{Publisher: PublisherSNS, Err: fmt.Errorf("marshal detail: %w", err)}
	}

	topic := p.topicArn
	if topic == "" {
		topic = event.BusName
	}
	id, err := p.client.Publish(ctx, topic, detail, map[string]string{
		"source":     event.Source,
		"detailType": event.DetailType,
	})
	if err != nil {
		return models.PublishReceipt{}, &PublishError{Publisher: PublisherSNS, Err: err}
	}
	return models.PublishReceipt{MessageID: id, Publisher: PublisherSNS}, nil
}

// CheckoutProducer writes a checkout event to a log-based broker.
type CheckoutProducer interface {
	SendCheckoutEvent(ctx context.Context, event models.CheckoutEvent) (string, error)
}

// KafkaEventPublisher publishes checkout events through a Kafka producer.
type KafkaEventPublisher struct {
	producer CheckoutProducer
}

func NewKafkaEventPublisher(producer CheckoutProducer) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, event models.CheckoutEvent) (models.PublishReceipt, error) {
	id, err := p.producer.SendCheckoutEvent(ctx, event)
	if err != nil {
		return models.PublishReceipt{}, &PublishError{Publisher: PublisherKafka, Err: err}
	}
	return models.PublishReceipt{MessageID: id, Publisher: PublisherKafka}, nil
}
