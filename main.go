package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yashrajoria/basket-service/config"
	"github.com/yashrajoria/basket-service/controllers"
	"github.com/yashrajoria/basket-service/database"
	"github.com/yashrajoria/basket-service/kafka"
	aws_pkg "github.com/yashrajoria/basket-service/pkg/aws"
	apperrors "github.com/yashrajoria/basket-service/pkg/errors"
	"github.com/yashrajoria/basket-service/pkg/logger"
	"github.com/yashrajoria/basket-service/pkg/middleware"
	"github.com/yashrajoria/basket-service/repository"
	"github.com/yashrajoria/basket-service/routes"
	"github.com/yashrajoria/basket-service/services"
)

const serviceName = "basket-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
	if err != nil {
		log.Fatalf("failed to load AWS config: %v", err)
	}

	var shipTo io.Writer
	if cfg.CloudWatchEnabled {
		cwLogs, err := aws_pkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.CloudWatchLogGroup, serviceName)
		if err != nil {
			log.Printf("CloudWatch Logs disabled: %v", err)
		} else {
			shipTo = cwLogs
		}
	}

	zapLogger, err := logger.New(cfg.Env, shipTo)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	if cfg.UseSecrets {
		if err := cfg.ApplySecrets(ctx, aws_pkg.NewSecretsClient(awsCfg)); err != nil {
			zapLogger.Fatal("failed to load configuration secrets", zap.Error(err))
		}
	}

	store, closeStore, err := newBasketStore(ctx, cfg, awsCfg)
	if err != nil {
		zapLogger.Fatal("failed to initialize basket store", zap.String("store", cfg.BasketStore), zap.Error(err))
	}
	defer closeStore()

	publisher, closePublisher := newEventPublisher(cfg, awsCfg)
	defer closePublisher()

	metricsClient := aws_pkg.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled)

	var stale services.StaleBasketReporter
	if cfg.StaleBasketQueueURL != "" {
		queue := aws_pkg.NewSQSQueue(awsCfg, cfg.StaleBasketQueueURL)
		stale = services.NewSQSStaleBasketReporter(queue)

		cleanup := services.NewCleanupConsumer(queue, store, metricsClient, zapLogger.Named("cleanup"))
		go cleanup.Start(ctx)
	} else {
		zapLogger.Warn("STALE_BASKET_QUEUE_URL not set; baskets left behind by a failed clear are only logged")
	}

	checkout := services.NewCheckoutService(
		store,
		publisher,
		services.EventConfig{
			Source:     cfg.EventSource,
			DetailType: cfg.EventDetailType,
			BusName:    cfg.EventBusName,
		},
		stale,
		metricsClient,
		zapLogger.Named("checkout"),
	)
	baskets := services.NewBasketService(store, zapLogger.Named("basket"))

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(zapLogger),
		middleware.SecurityHeaders(),
		middleware.CORSMiddleware(cfg.AllowedOrigins),
		middleware.RateLimitMiddleware(cfg.RateLimitPerMinute, cfg.RateLimitBurst),
		middleware.MetricsMiddleware(metricsClient, serviceName),
		apperrors.ErrorMiddleware(),
	)

	routes.RegisterBasketRoutes(router, controllers.NewBasketController(baskets, checkout, zapLogger))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLogger.Info("basket service listening",
			zap.String("port", cfg.Port),
			zap.String("store", cfg.BasketStore),
			zap.String("publisher", cfg.EventPublisher),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("shutdown error", zap.Error(err))
	}
	zapLogger.Info("server shutdown complete")
}

func newBasketStore(ctx context.Context, cfg *config.Config, awsCfg sdkaws.Config) (repository.BasketStore, func(), error) {
	if cfg.BasketStore == config.StoreRedis {
		client, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewRedisAdapter(client, cfg.BasketTTL), func() { _ = client.Close() }, nil
	}
	return repository.NewDynamoAdapter(aws_pkg.NewDynamoDBClient(awsCfg), cfg.DynamoDBTableName), func() {}, nil
}

func newEventPublisher(cfg *config.Config, awsCfg sdkaws.Config) (services.EventPublisher, func()) {
	switch cfg.EventPublisher {
	case config.PublisherSNS:
		return services.NewSNSEventPublisher(aws_pkg.NewSNSClient(awsCfg), cfg.SNSTopicARN), func() {}
	case config.PublisherKafka:
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		return services.NewKafkaEventPublisher(producer), func() { _ = producer.Close() }
	default:
		return services.NewEventBridgePublisher(aws_pkg.NewEventBridgeClient(awsCfg)), func() {}
	}
}
