package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yashrajoria/basket-service/models"
	"github.com/yashrajoria/basket-service/repository"
)

// ErrInvalidBasket is returned by SaveBasket for records that fail validation.
var ErrInvalidBasket = errors.New("invalid basket")

var validate = validator.New()

// basketRules is the validated view of a basket record.
type basketRules struct {
	UserName string    `validate:"required"`
	Prices   []float64 `validate:"dive,gte=0"`
}

// BasketService is the plain CRUD surface over the basket store.
type BasketService struct {
	store  repository.BasketStore
	logger *zap.Logger
}

func NewBasketService(store repository.BasketStore, logger *zap.Logger) *BasketService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BasketService{store: store, logger: logger}
}

// GetBasket returns the user's basket, or an empty basket if none is stored.
func (s *BasketService) GetBasket(ctx context.Context, userName string) (*models.Basket, error) {
	if strings.TrimSpace(userName) == "" {
		return nil, fmt.Errorf("%w: userName is required", ErrInvalidBasket)
	}
	b, found, err := s.store.GetBasket(ctx, userName)
	if err != nil {
		s.logger.Error("failed to get basket", zap.String("user_name", userName), zap.Error(err))
		return nil, err
	}
	if !found {
		return models.EmptyBasket(userName), nil
	}
	return b, nil
}

func (s *BasketService) ListBaskets(ctx context.Context) ([]*models.Basket, error) {
	baskets, err := s.store.ListBaskets(ctx)
	if err != nil {
		s.logger.Error("failed to list baskets", zap.Error(err))
		return nil, err
	}
	return baskets, nil
}

// SaveBasket validates and upserts a full basket record. A basket without an
// items collection is stored with an empty one.
func (s *BasketService) SaveBasket(ctx context.Context, basket *models.Basket) error {
	if err := validateBasket(basket); err != nil {
		return err
	}
	if basket.Items == nil {
		basket.Items = []models.BasketItem{}
	}
	if err := s.store.SaveBasket(ctx, basket); err != nil {
		s.logger.Error("failed to save basket", zap.String("user_name", basket.UserName), zap.Error(err))
		return err
	}
	s.logger.Info("basket saved", zap.String("user_name", basket.UserName), zap.Int("items", len(basket.Items)))
	return nil
}

func (s *BasketService) DeleteBasket(ctx context.Context, userName string) error {
	if strings.TrimSpace(userName) == "" {
		return fmt.Errorf("%w: userName is required", ErrInvalidBasket)
	}
	if err := s.store.DeleteBasket(ctx, userName); err != nil {
		s.logger.Error("failed to delete basket", zap.String("user_name", userName), zap.Error(err))
		return err
	}
	return nil
}

func validateBasket(b *models.Basket) error {
	if b == nil {
		return fmt.Errorf("%w: body is required", ErrInvalidBasket)
	}
	rules := basketRules{UserName: strings.TrimSpace(b.UserName)}
	for _, it := range b.Items {
		rules.Prices = append(rules.Prices, it.Price)
	}
	if err := validate.Struct(rules); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBasket, err)
	}
	return nil
}
