package kafka_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashrajoria/basket-service/kafka"
	"github.com/yashrajoria/basket-service/models"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func header(msg kafkago.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestProducer_SendCheckoutEvent(t *testing.T) {
	w := &fakeWriter{}
	p := kafka.NewProducerWithWriter(w, "checkout.requested")

	id, err := p.SendCheckoutEvent(context.Background(), models.CheckoutEvent{
		Source:     "com.shop.basket.checkoutbasket",
		DetailType: "CheckoutBasket",
		UserName:   "alice",
		Detail:     models.OrderPayload{"userName": "alice", "totalPrice": 15.0},
	})

	require.NoError(t, err)
	_, parseErr := uuid.Parse(id)
	assert.NoError(t, parseErr)

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "alice", string(msg.Key))
	assert.JSONEq(t, `{"userName":"alice","totalPrice":15}`, string(msg.Value))
	assert.Equal(t, id, header(msg, "event-id"))
	assert.Equal(t, "com.shop.basket.checkoutbasket", header(msg, "source"))
	assert.Equal(t, "CheckoutBasket", header(msg, "detail-type"))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducer_WriteError(t *testing.T) {
	p := kafka.NewProducerWithWriter(&fakeWriter{err: errors.New("leader not available")}, "t")

	id, err := p.SendCheckoutEvent(context.Background(), models.CheckoutEvent{UserName: "alice"})

	assert.Empty(t, id)
	assert.ErrorContains(t, err, "leader not available")
}

func TestProducer_TopicFallsBackToBusName(t *testing.T) {
	w := &fakeWriter{}
	p := kafka.NewProducerWithWriter(w, "")

	_, err := p.SendCheckoutEvent(context.Background(), models.CheckoutEvent{UserName: "alice", BusName: "ShopEventBus"})

	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "ShopEventBus", w.msgs[0].Topic)

	_, err = kafka.NewProducerWithWriter(w, "").SendCheckoutEvent(context.Background(), models.CheckoutEvent{UserName: "bob"})
	assert.ErrorContains(t, err, "no topic")
	assert.Len(t, w.msgs, 1)
}

func TestProducer_FixedTopicLeavesMessageTopicEmpty(t *testing.T) {
	w := &fakeWriter{}
	p := kafka.NewProducerWithWriter(w, "checkout.requested")

	_, err := p.SendCheckoutEvent(context.Background(), models.CheckoutEvent{UserName: "alice", BusName: "ShopEventBus"})

	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Empty(t, w.msgs[0].Topic)
}
