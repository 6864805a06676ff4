package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	aws_pkg "github.com/yashrajoria/basket-service/pkg/aws"

	"github.com/yashrajoria/basket-service/models"
	"github.com/yashrajoria/basket-service/repository"
)

// Step names one stage of a checkout.
type Step string

const (
	StepValidate Step = "validate"
	StepFetch    Step = "fetch"
	StepBuild    Step = "build"
	StepPublish  Step = "publish"
	StepClear    Step = "clear"
)

// State is how far a checkout got. Each state is entered only when the step
// leading to it succeeded.
type State string

const (
	StateStarted   State = "STARTED"
	StateFetched   State = "FETCHED"
	StateBuilt     State = "BUILT"
	StatePublished State = "PUBLISHED"
	StateCleared   State = "CLEARED"
)

// EventConfig is the bus routing metadata attached to every checkout event.
type EventConfig struct {
	Source     string
	DetailType string
	BusName    string
}

// MetricsRecorder receives checkout metrics. *aws_pkg.MetricsClient satisfies it.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
	RecordValue(ctx context.Context, metricName string, value float64, dimensions map[string]string) error
	RecordLatency(ctx context.Context, metricName string, duration time.Duration, dimensions map[string]string) error
}

// CheckoutResult is the outcome of a checkout whose event was published.
// State is StateCleared on full success. StatePublished with a non-nil
// ClearErr means the event went out but the basket record survived.
type CheckoutResult struct {
	Receipt  models.PublishReceipt
	State    State
	ClearErr error
}

// Cleared reports whether the basket record was deleted.
func (r *CheckoutResult) Cleared() bool {
	return r.State == StateCleared
}

// CheckoutService turns a user's basket into a published order event and
// clears the basket. It holds no per-call state; concurrent checkouts of
// different users are independent. Checkouts of the same user are not
// serialized.
type CheckoutService struct {
	store     repository.BasketStore
	publisher EventPublisher
	event     EventConfig
	stale     StaleBasketReporter
	metrics   MetricsRecorder
	logger    *zap.Logger
}

// NewCheckoutService wires the orchestrator. stale and metrics may be nil.
func NewCheckoutService(
	store repository.BasketStore,
	publisher EventPublisher,
	event EventConfig,
	stale StaleBasketReporter,
	metrics MetricsRecorder,
	logger *zap.Logger,
) *CheckoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutService{
		store:     store,
		publisher: publisher,
		event:     event,
		stale:     stale,
		metrics:   metrics,
		logger:    logger,
	}
}

const staleReportTimeout = 5 * time.Second

// checkoutRun carries one checkout through its states.
type checkoutRun struct {
	req     models.CheckoutRequest
	state   State
	basket  *models.Basket
	payload models.OrderPayload
	receipt models.PublishReceipt
}

// Checkout runs fetch, build, publish and clear strictly in order. It does
// not retry and imposes no timeout of its own; ctx carries the caller's
// deadline. A failed clear after a successful publish is not an error: the
// result carries ClearErr and the basket is reported as stale.
func (s *CheckoutService) Checkout(ctx context.Context, req models.CheckoutRequest) (*CheckoutResult, error) {
	start := time.Now()

	if strings.TrimSpace(req.UserName) == "" {
		err := newCheckoutError(KindInvalidRequest, StepValidate, "", "userName is required", nil)
		s.logger.Warn("checkout rejected", zap.String("step", string(StepValidate)), zap.Error(err))
		return nil, err
	}

	run := &checkoutRun{req: req, state: StateStarted}
	for run.state != StateCleared {
		err := s.advance(ctx, run)
		if err == nil {
			continue
		}
		if run.state == StatePublished {
			return s.publishedNotCleared(ctx, run, err), nil
		}
		s.logFailure(err)
		s.recordFailure(err)
		return nil, err
	}

	s.logger.Info("checkout completed",
		zap.String("user_name", req.UserName),
		zap.String("message_id", run.receipt.MessageID),
		zap.String("publisher", run.receipt.Publisher),
		zap.Float64("total_price", run.payload.TotalPrice()),
		zap.Int("items", len(run.basket.Items)),
	)
	s.recordSuccess(run.payload.TotalPrice(), time.Since(start))

	return &CheckoutResult{Receipt: run.receipt, State: StateCleared}, nil
}

// advance performs the step leading out of run.state. On error run.state
// is left unchanged.
func (s *CheckoutService) advance(ctx context.Context, run *checkoutRun) error {
	user := run.req.UserName

	switch run.state {
	case StateStarted:
		basket, found, err := s.store.GetBasket(ctx, user)
		if err != nil {
			if errors.Is(err, models.ErrMalformedBasket) {
				return newCheckoutError(KindMalformedBasket, StepFetch, user, "stored basket is malformed", err)
			}
			return newCheckoutError(KindStore, StepFetch, user, "failed to fetch basket", err)
		}
		if !found {
			basket = models.EmptyBasket(user)
		}
		run.basket = basket
		run.state = StateFetched

	case StateFetched:
		payload, err := BuildOrderPayload(run.req, run.basket)
		if err != nil {
			return err
		}
		run.payload = payload
		run.state = StateBuilt

	case StateBuilt:
		receipt, err := s.publisher.Publish(ctx, models.CheckoutEvent{
			Source:     s.event.Source,
			DetailType: s.event.DetailType,
			BusName:    s.event.BusName,
			UserName:   user,
			Detail:     run.payload,
		})
		if err != nil {
			return newCheckoutError(KindPublish, StepPublish, user, "failed to publish checkout event", err)
		}
		run.receipt = receipt
		run.state = StatePublished

	case StatePublished:
		if err := s.store.DeleteBasket(ctx, user); err != nil {
			return newCheckoutError(KindBasketClear, StepClear, user, "failed to clear basket after publish", err)
		}
		run.state = StateCleared
	}
	return nil
}

func (s *CheckoutService) publishedNotCleared(ctx context.Context, run *checkoutRun, clearErr error) *CheckoutResult {
	s.logger.Warn("checkout event published but basket not cleared",
		zap.String("step", string(StepClear)),
		zap.String("user_name", run.req.UserName),
		zap.String("message_id", run.receipt.MessageID),
		zap.String("publisher", run.receipt.Publisher),
		zap.Error(clearErr),
	)
	s.emit(func(mctx context.Context, m MetricsRecorder) {
		_ = m.RecordCount(mctx, aws_pkg.MetricBasketClearFailed, map[string]string{"Service": "basket-service"})
	})

	if s.stale != nil {
		report := StaleBasket{
			UserName:   run.req.UserName,
			Basket:     run.basket,
			MessageID:  run.receipt.MessageID,
			Publisher:  run.receipt.Publisher,
			Reason:     clearErr.Error(),
			DetectedAt: time.Now().UTC(),
		}
		// The caller's deadline may be what failed the clear.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), staleReportTimeout)
		defer cancel()
		if err := s.stale.ReportStaleBasket(rctx, report); err != nil {
			s.logger.Error("failed to report stale basket",
				zap.String("user_name", run.req.UserName),
				zap.Error(err),
			)
		}
	}

	return &CheckoutResult{Receipt: run.receipt, State: StatePublished, ClearErr: clearErr}
}

func (s *CheckoutService) logFailure(err error) {
	var ce *CheckoutError
	if !errors.As(err, &ce) {
		s.logger.Error("checkout failed", zap.Error(err))
		return
	}
	s.logger.Error("checkout failed",
		zap.String("kind", string(ce.Kind)),
		zap.String("step", string(ce.Step)),
		zap.String("user_name", ce.UserName),
		zap.Error(ce.Err),
	)
}

func (s *CheckoutService) recordFailure(err error) {
	step := "unknown"
	var ce *CheckoutError
	if errors.As(err, &ce) {
		step = string(ce.Step)
	}
	s.emit(func(ctx context.Context, m MetricsRecorder) {
		_ = m.RecordCount(ctx, aws_pkg.MetricCheckoutFailed, map[string]string{"Service": "basket-service", "Step": step})
	})
}

func (s *CheckoutService) recordSuccess(total float64, took time.Duration) {
	s.emit(func(ctx context.Context, m MetricsRecorder) {
		dims := map[string]string{"Service": "basket-service"}
		_ = m.RecordCount(ctx, aws_pkg.MetricCartCheckouts, dims)
		_ = m.RecordValue(ctx, aws_pkg.MetricOrderAmount, total, dims)
		_ = m.RecordLatency(ctx, aws_pkg.MetricCheckoutLatency, took, dims)
	})
}

// emit records metrics off the request path.
func (s *CheckoutService) emit(fn func(ctx context.Context, m MetricsRecorder)) {
	if s.metrics == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		fn(ctx, s.metrics)
	}()
}
