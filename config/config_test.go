package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashrajoria/basket-service/config"
)

func setRequired(t *testing.T) {
	t.Setenv("DYNAMODB_TABLE_NAME", "Baskets")
	t.Setenv("EVENT_SOURCE", "com.shop.basket.checkoutbasket")
	t.Setenv("EVENT_DETAILTYPE", "CheckoutBasket")
	t.Setenv("EVENT_BUSNAME", "ShopEventBus")
	t.Setenv("BASKET_STORE", "")
	t.Setenv("EVENT_PUBLISHER", "")
	t.Setenv("AWS_USE_SECRETS", "")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("BASKET_TTL", "")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, config.StoreDynamoDB, cfg.BasketStore)
	assert.Equal(t, config.PublisherEventBridge, cfg.EventPublisher)
	assert.Equal(t, "Baskets", cfg.DynamoDBTableName)
	assert.Equal(t, "ShopEventBus", cfg.EventBusName)
	assert.Equal(t, 7*24*time.Hour, cfg.BasketTTL)
}

func TestLoad_MissingBusSettings(t *testing.T) {
	setRequired(t)
	t.Setenv("EVENT_BUSNAME", "")
	t.Setenv("EVENT_SOURCE", "")

	_, err := config.Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "EVENT_BUSNAME")
	assert.Contains(t, err.Error(), "EVENT_SOURCE")
}

func TestLoad_MissingTable(t *testing.T) {
	setRequired(t)
	t.Setenv("DYNAMODB_TABLE_NAME", "")

	_, err := config.Load()

	assert.ErrorContains(t, err, "DYNAMODB_TABLE_NAME")
}

func TestLoad_KafkaPublisher(t *testing.T) {
	setRequired(t)
	t.Setenv("EVENT_PUBLISHER", "kafka")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
}

func TestLoad_KafkaTopicFromBusName(t *testing.T) {
	setRequired(t)
	t.Setenv("EVENT_PUBLISHER", "kafka")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092")
	t.Setenv("KAFKA_TOPIC", "")

	_, err := config.Load()
	require.NoError(t, err)

	t.Setenv("EVENT_BUSNAME", "")
	_, err = config.Load()
	assert.ErrorContains(t, err, "KAFKA_TOPIC or EVENT_BUSNAME")

	t.Setenv("KAFKA_TOPIC", "checkout.requested")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "checkout.requested", cfg.KafkaTopic)
}

func TestLoad_BusNameOnlyRequiredForEventBridge(t *testing.T) {
	setRequired(t)
	t.Setenv("EVENT_BUSNAME", "")
	t.Setenv("EVENT_PUBLISHER", "sns")
	t.Setenv("SNS_TOPIC_ARN", "arn:aws:sns:us-east-1:000000000000:checkout")

	_, err := config.Load()

	assert.NoError(t, err)
}

func TestLoad_SNSPublisherNeedsTopic(t *testing.T) {
	setRequired(t)
	t.Setenv("EVENT_PUBLISHER", "sns")
	t.Setenv("SNS_TOPIC_ARN", "")

	_, err := config.Load()

	assert.ErrorContains(t, err, "SNS_TOPIC_ARN")
}

func TestLoad_RejectsUnknownBackends(t *testing.T) {
	setRequired(t)
	t.Setenv("BASKET_STORE", "postgres")
	_, err := config.Load()
	assert.ErrorContains(t, err, "BASKET_STORE")

	setRequired(t)
	t.Setenv("EVENT_PUBLISHER", "rabbitmq")
	_, err = config.Load()
	assert.ErrorContains(t, err, "EVENT_PUBLISHER")
}

func TestLoad_InvalidTTL(t *testing.T) {
	setRequired(t)
	t.Setenv("BASKET_TTL", "forever")

	_, err := config.Load()

	assert.ErrorContains(t, err, "BASKET_TTL")
}

type fakeSecrets struct {
	values map[string]string
	err    error
}

func (f fakeSecrets) GetSecretMap(_ context.Context, _ string) (map[string]string, error) {
	return f.values, f.err
}

func TestApplySecrets(t *testing.T) {
	setRequired(t)
	t.Setenv("AWS_USE_SECRETS", "true")
	t.Setenv("EVENT_BUSNAME", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	err = cfg.ApplySecrets(context.Background(), fakeSecrets{values: map[string]string{
		"EVENT_BUSNAME":       "SecretBus",
		"DYNAMODB_TABLE_NAME": "SecretBaskets",
	}})

	require.NoError(t, err)
	assert.Equal(t, "SecretBus", cfg.EventBusName)
	assert.Equal(t, "SecretBaskets", cfg.DynamoDBTableName)
	assert.Equal(t, "CheckoutBasket", cfg.EventDetailType)
}

func TestApplySecrets_Errors(t *testing.T) {
	setRequired(t)
	t.Setenv("AWS_USE_SECRETS", "true")
	t.Setenv("EVENT_BUSNAME", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Error(t, cfg.ApplySecrets(context.Background(), fakeSecrets{err: errors.New("denied")}))
	assert.ErrorContains(t, cfg.ApplySecrets(context.Background(), fakeSecrets{values: map[string]string{}}), "EVENT_BUSNAME")
}
