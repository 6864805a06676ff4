package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDynamoDB = "dynamodb"
	StoreRedis    = "redis"

	PublisherEventBridge = "eventbridge"
	PublisherSNS         = "sns"
	PublisherKafka       = "kafka"
)

type Config struct {
	Port string
	Env  string

	BasketStore       string
	DynamoDBTableName string
	RedisURL          string
	BasketTTL         time.Duration

	EventPublisher  string
	EventSource     string
	EventDetailType string
	EventBusName    string
	SNSTopicARN     string
	KafkaBrokers    []string
	KafkaTopic      string

	StaleBasketQueueURL string

	CloudWatchEnabled   bool
	CloudWatchNamespace string
	CloudWatchLogGroup  string

	AllowedOrigins     string
	RateLimitPerMinute int
	RateLimitBurst     int

	UseSecrets bool
	SecretName string
}

// Load reads configuration from the environment (and .env if present) and
// validates it. Missing bus or table settings are configuration errors.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ttl, err := time.ParseDuration(getEnv("BASKET_TTL", "168h"))
	if err != nil {
		return nil, fmt.Errorf("invalid BASKET_TTL: %w", err)
	}
	perMinute, err := strconv.Atoi(getEnv("RATE_LIMIT_PER_MINUTE", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %w", err)
	}
	burst, err := strconv.Atoi(getEnv("RATE_LIMIT_BURST", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	cfg := &Config{
		Port:                getEnv("PORT", "8088"),
		Env:                 getEnv("APP_ENV", "development"),
		BasketStore:         strings.ToLower(getEnv("BASKET_STORE", StoreDynamoDB)),
		DynamoDBTableName:   os.Getenv("DYNAMODB_TABLE_NAME"),
		RedisURL:            getEnv("REDIS_URL", "redis://redis:6379"),
		BasketTTL:           ttl,
		EventPublisher:      strings.ToLower(getEnv("EVENT_PUBLISHER", PublisherEventBridge)),
		EventSource:         os.Getenv("EVENT_SOURCE"),
		EventDetailType:     os.Getenv("EVENT_DETAILTYPE"),
		EventBusName:        os.Getenv("EVENT_BUSNAME"),
		SNSTopicARN:         os.Getenv("SNS_TOPIC_ARN"),
		KafkaBrokers:        splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:          os.Getenv("KAFKA_TOPIC"),
		StaleBasketQueueURL: os.Getenv("STALE_BASKET_QUEUE_URL"),
		CloudWatchEnabled:   os.Getenv("CLOUDWATCH_ENABLED") == "true",
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "ECommerce"),
		CloudWatchLogGroup:  getEnv("CLOUDWATCH_LOG_GROUP", "/ecommerce/services"),
		AllowedOrigins:      getEnv("ALLOWED_ORIGINS", "*"),
		RateLimitPerMinute:  perMinute,
		RateLimitBurst:      burst,
		UseSecrets:          os.Getenv("AWS_USE_SECRETS") == "true",
		SecretName:          getEnv("BASKET_SECRET_NAME", "basket/EVENT_CONFIG"),
	}

	if !cfg.UseSecrets {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// SecretMapGetter reads a secret holding a flat JSON object.
type SecretMapGetter interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

// ApplySecrets overrides bus and table settings with the values stored in
// the configured secret, then validates the result.
func (c *Config) ApplySecrets(ctx context.Context, secrets SecretMapGetter) error {
	m, err := secrets.GetSecretMap(ctx, c.SecretName)
	if err != nil {
		return fmt.Errorf("load secret %s: %w", c.SecretName, err)
	}

	override := func(dst *string, key string) {
		if v, ok := m[key]; ok && v != "" {
			*dst = v
		}
	}
	override(&c.DynamoDBTableName, "DYNAMODB_TABLE_NAME")
	override(&c.EventSource, "EVENT_SOURCE")
	override(&c.EventDetailType, "EVENT_DETAILTYPE")
	override(&c.EventBusName, "EVENT_BUSNAME")
	override(&c.SNSTopicARN, "SNS_TOPIC_ARN")
	override(&c.RedisURL, "REDIS_URL")
	if v, ok := m["KAFKA_BROKERS"]; ok && v != "" {
		c.KafkaBrokers = splitList(v)
	}

	return c.Validate()
}

// Validate checks that every setting the selected backends need is present.
func (c *Config) Validate() error {
	var missing []string
	require := func(key, val string) {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, key)
		}
	}

	require("EVENT_SOURCE", c.EventSource)
	require("EVENT_DETAILTYPE", c.EventDetailType)

	switch c.BasketStore {
	case StoreDynamoDB:
		require("DYNAMODB_TABLE_NAME", c.DynamoDBTableName)
	case StoreRedis:
		require("REDIS_URL", c.RedisURL)
	default:
		return fmt.Errorf("unsupported BASKET_STORE %q", c.BasketStore)
	}

	switch c.EventPublisher {
	case PublisherEventBridge:
		require("EVENT_BUSNAME", c.EventBusName)
	case PublisherSNS:
		require("SNS_TOPIC_ARN", c.SNSTopicARN)
	case PublisherKafka:
		require("KAFKA_BROKERS", strings.Join(c.KafkaBrokers, ","))
		if c.KafkaTopic == "" {
			require("KAFKA_TOPIC or EVENT_BUSNAME", c.EventBusName)
		}
	default:
		return fmt.Errorf("unsupported EVENT_PUBLISHER %q", c.EventPublisher)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
