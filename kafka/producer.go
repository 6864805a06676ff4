package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/yashrajoria/basket-service/models"
)

// MessageWriter is the part of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes checkout events keyed by user name so one user's
// checkouts land on one partition. Without a fixed topic each event goes to
// its BusName.
type Producer struct {
	writer MessageWriter
	topic  string
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return NewProducerWithWriter(writer, topic)
}

func NewProducerWithWriter(writer MessageWriter, topic string) *Producer {
	return &Producer{writer: writer, topic: topic}
}

// SendCheckoutEvent writes the event detail as the message value and returns
// the generated event id, also carried in the event-id header.
func (p *Producer) SendCheckoutEvent(ctx context.Context, event models.CheckoutEvent) (string, error) {
	data, err := json.Marshal(event.Detail)
	if err != nil {
		return "", fmt.Errorf("marshal checkout event: %w", err)
	}

	topic := p.topic
	if topic == "" {
		topic = event.BusName
	}
	if topic == "" {
		return "", fmt.Errorf("kafka: no topic for checkout event")
	}

	eventID := uuid.NewString()
	msg := kafka.Message{
		Key:   []byte(event.UserName),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(eventID)},
			{Key: "source", Value: []byte(event.Source)},
			{Key: "detail-type", Value: []byte(event.DetailType)},
		},
	}

	if p.topic == "" {
		msg.Topic = topic
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return "", fmt.Errorf("kafka write to topic %s failed: %w", topic, err)
	}
	return eventID, nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
