package logger

import (
	"context"
	"io"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDKey is the gin key and header-independent name of the request id.
const RequestIDKey = "request_id"

type ctxKey struct{}

// New builds the service logger. Production uses a JSON encoder with ISO8601
// timestamps; anything else gets the colored development console. When
// shipTo is non-nil every entry is also written to it as JSON (used for the
// CloudWatch Logs writer). The logger is installed as zap's global.
func New(env string, shipTo io.Writer) (*zap.Logger, error) {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var log *zap.Logger
	if shipTo != nil {
		level := zap.NewAtomicLevelAt(config.Level.Level())
		consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(config.EncoderConfig), zapcore.AddSync(os.Stdout), level)

		jsonConfig := config.EncoderConfig
		jsonConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		shipCore := zapcore.NewCore(zapcore.NewJSONEncoder(jsonConfig), zapcore.AddSync(shipTo), level)

		log = zap.New(zapcore.NewTee(consoleCore, shipCore), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	} else {
		var err error
		log, err = config.Build()
		if err != nil {
			return nil, err
		}
	}

	zap.ReplaceGlobals(log)
	return log, nil
}

// WithRequestID returns a context carrying the request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

// RequestID extracts the request id from a request context or gin context.
func RequestID(ctx context.Context) string {
	if ginCtx, ok := ctx.(*gin.Context); ok {
		if id := ginCtx.GetString(RequestIDKey); id != "" {
			return id
		}
		if ginCtx.Request == nil {
			return "unknown"
		}
		ctx = ginCtx.Request.Context()
	}
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return "unknown"
}

// For returns base annotated with the request id found in ctx.
func For(ctx context.Context, base *zap.Logger) *zap.Logger {
	return base.With(zap.String(RequestIDKey, RequestID(ctx)))
}
