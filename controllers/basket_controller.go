package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yashrajoria/basket-service/models"
	apperrors "github.com/yashrajoria/basket-service/pkg/errors"
	"github.com/yashrajoria/basket-service/pkg/logger"
	"github.com/yashrajoria/basket-service/repository"
	"github.com/yashrajoria/basket-service/services"
)

// Checkouter runs the checkout flow. *services.CheckoutService satisfies it.
type Checkouter interface {
	Checkout(ctx context.Context, req models.CheckoutRequest) (*services.CheckoutResult, error)
}

// BasketManager is the CRUD surface. *services.BasketService satisfies it.
type BasketManager interface {
	GetBasket(ctx context.Context, userName string) (*models.Basket, error)
	ListBaskets(ctx context.Context) ([]*models.Basket, error)
	SaveBasket(ctx context.Context, basket *models.Basket) error
	DeleteBasket(ctx context.Context, userName string) error
}

type BasketController struct {
	Baskets  BasketManager
	Checkout Checkouter
	Logger   *zap.Logger
}

func NewBasketController(baskets BasketManager, checkout Checkouter, log *zap.Logger) *BasketController {
	if log == nil {
		log = zap.NewNop()
	}
	return &BasketController{Baskets: baskets, Checkout: checkout, Logger: log}
}

type checkoutResponse struct {
	Receipt models.PublishReceipt `json:"receipt"`
	State   services.State        `json:"state"`
	Warning string                `json:"warning,omitempty"`
}

// GetBasket returns the stored basket, or an empty one for unknown users.
func (bc *BasketController) GetBasket(c *gin.Context) {
	basket, err := bc.Baskets.GetBasket(c.Request.Context(), c.Param("userName"))
	if err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}
	respond(c, basket)
}

func (bc *BasketController) ListBaskets(c *gin.Context) {
	baskets, err := bc.Baskets.ListBaskets(c.Request.Context())
	if err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}
	if baskets == nil {
		baskets = []*models.Basket{}
	}
	respond(c, baskets)
}

// SaveBasket upserts the full basket record from the request body.
func (bc *BasketController) SaveBasket(c *gin.Context) {
	var basket models.Basket
	if err := c.ShouldBindJSON(&basket); err != nil {
		logger.For(c, bc.Logger).Warn("invalid basket payload", zap.Error(err))
		_ = c.Error(apperrors.BadRequest("invalid basket payload", err))
		return
	}
	if err := bc.Baskets.SaveBasket(c.Request.Context(), &basket); err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}
	respond(c, &basket)
}

func (bc *BasketController) DeleteBasket(c *gin.Context) {
	userName := c.Param("userName")
	if err := bc.Baskets.DeleteBasket(c.Request.Context(), userName); err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}
	respond(c, gin.H{models.FieldUserName: userName})
}

// CheckoutBasket publishes the user's basket as an order event and clears
// it. A published event whose basket could not be cleared is still a 200,
// with a warning in the body.
func (bc *BasketController) CheckoutBasket(c *gin.Context) {
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.For(c, bc.Logger).Warn("invalid checkout payload", zap.Error(err))
		_ = c.Error(apperrors.BadRequest("invalid checkout payload", err))
		return
	}

	result, err := bc.Checkout.Checkout(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}

	resp := checkoutResponse{Receipt: result.Receipt, State: result.State}
	if result.ClearErr != nil {
		resp.Warning = "order event published but basket was not cleared"
	}
	respond(c, resp)
}

func respond(c *gin.Context, body any) {
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Successfully finished operation: %q", c.Request.Method),
		"body":    body,
	})
}

// toHTTPError maps service errors to status codes: caller mistakes are 4xx,
// failures of the store or the bus are 502.
func toHTTPError(err error) *apperrors.Error {
	var ce *services.CheckoutError
	if errors.As(err, &ce) {
		code := http.StatusInternalServerError
		switch ce.Kind {
		case services.KindInvalidRequest:
			code = http.StatusBadRequest
		case services.KindMalformedBasket:
			code = http.StatusUnprocessableEntity
		case services.KindStore, services.KindPublish:
			code = http.StatusBadGateway
		}
		return apperrors.New(code, ce.Error(), err).WithKind(string(ce.Kind), string(ce.Step))
	}

	switch {
	case errors.Is(err, services.ErrInvalidBasket):
		return apperrors.BadRequest(err.Error(), err)
	case errors.Is(err, models.ErrMalformedBasket):
		return apperrors.New(http.StatusUnprocessableEntity, err.Error(), err).
			WithKind(string(services.KindMalformedBasket), "")
	case errors.Is(err, repository.ErrStore):
		return apperrors.New(http.StatusBadGateway, err.Error(), err).
			WithKind(string(services.KindStore), "")
	}
	return apperrors.Internal(err)
}
