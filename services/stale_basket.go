package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	aws_pkg "github.com/yashrajoria/basket-service/pkg/aws"

	"github.com/yashrajoria/basket-service/models"
	"github.com/yashrajoria/basket-service/repository"
)

// StaleBasket describes a basket whose checkout event was published but
// whose record could not be deleted.
type StaleBasket struct {
	UserName   string         `json:"userName"`
	Basket     *models.Basket `json:"basket"`
	MessageID  string         `json:"messageId"`
	Publisher  string         `json:"publisher"`
	Reason     string         `json:"reason"`
	DetectedAt time.Time      `json:"detectedAt"`
}

// StaleBasketReporter hands a stale basket to operational follow-up.
type StaleBasketReporter interface {
	ReportStaleBasket(ctx context.Context, stale StaleBasket) error
}

// MessageSender sends one message body to a queue.
type MessageSender interface {
	SendMessage(ctx context.Context, body string) (string, error)
}

// SQSStaleBasketReporter enqueues stale baskets for the CleanupConsumer.
type SQSStaleBasketReporter struct {
	queue MessageSender
}

func NewSQSStaleBasketReporter(queue MessageSender) *SQSStaleBasketReporter {
	return &SQSStaleBasketReporter{queue: queue}
}

func (r *SQSStaleBasketReporter) ReportStaleBasket(ctx context.Context, stale StaleBasket) error {
	body, err := json.Marshal(stale)
	if err != nil {
		return fmt.Errorf("marshal stale basket: %w", err)
	}
	if _, err := r.queue.SendMessage(ctx, string(body)); err != nil {
		return fmt.Errorf("enqueue stale basket for %s: %w", stale.UserName, err)
	}
	return nil
}

// MessagePoller delivers queue messages to a handler until ctx is done.
type MessagePoller interface {
	StartPolling(ctx context.Context, handler aws_pkg.MessageHandler) error
}

// CleanupConsumer deletes baskets that survived a published checkout. A
// basket is only deleted if it still matches the snapshot that was checked
// out, so items added after the checkout are kept.
type CleanupConsumer struct {
	queue   MessagePoller
	store   repository.BasketStore
	metrics MetricsRecorder
	logger  *zap.Logger
}

func NewCleanupConsumer(queue MessagePoller, store repository.BasketStore, metrics MetricsRecorder, logger *zap.Logger) *CleanupConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CleanupConsumer{queue: queue, store: store, metrics: metrics, logger: logger}
}

// Start polls the stale-basket queue until ctx is cancelled.
func (c *CleanupConsumer) Start(ctx context.Context) {
	c.logger.Info("stale basket cleanup consumer started")
	if err := c.queue.StartPolling(ctx, c.HandleMessage); err != nil && ctx.Err() == nil {
		c.logger.Error("stale basket polling stopped", zap.Error(err))
	}
}

// HandleMessage processes one stale-basket message. Returning an error leaves
// the message on the queue for another attempt.
func (c *CleanupConsumer) HandleMessage(ctx context.Context, body string) error {
	// Unwrap an SNS envelope if the queue is subscribed to a topic.
	var envelope struct {
		Message string `json:"Message"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err == nil && envelope.Message != "" {
		body = envelope.Message
	}

	var stale StaleBasket
	if err := json.Unmarshal([]byte(body), &stale); err != nil {
		c.logger.Error("dropping invalid stale basket message", zap.Error(err))
		return nil
	}
	if stale.UserName == "" {
		c.logger.Error("dropping stale basket message without userName")
		return nil
	}

	current, found, err := c.store.GetBasket(ctx, stale.UserName)
	if err != nil {
		return fmt.Errorf("fetch basket %s: %w", stale.UserName, err)
	}
	if !found {
		c.logger.Info("stale basket already gone", zap.String("user_name", stale.UserName))
		return nil
	}
	if stale.Basket != nil && !sameBasket(current, stale.Basket) {
		c.logger.Warn("basket changed since checkout, keeping it",
			zap.String("user_name", stale.UserName),
			zap.String("message_id", stale.MessageID),
		)
		return nil
	}

	if err := c.store.DeleteBasket(ctx, stale.UserName); err != nil {
		return fmt.Errorf("delete basket %s: %w", stale.UserName, err)
	}

	c.logger.Info("stale basket cleared",
		zap.String("user_name", stale.UserName),
		zap.String("message_id", stale.MessageID),
	)
	if c.metrics != nil {
		_ = c.metrics.RecordCount(ctx, aws_pkg.MetricStaleBasketsCleaned, map[string]string{"Service": "basket-service"})
	}
	return nil
}

func sameBasket(a, b *models.Basket) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(aj, bj)
}
