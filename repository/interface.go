package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/yashrajoria/basket-service/models"
)

// BasketStore is the key-value access to basket records keyed by user name.
type BasketStore interface {
	// GetBasket returns found=false with a nil error when the user has no record.
	GetBasket(ctx context.Context, userName string) (basket *models.Basket, found bool, err error)
	ListBaskets(ctx context.Context) ([]*models.Basket, error)
	// SaveBasket upserts the full record.
	SaveBasket(ctx context.Context, basket *models.Basket) error
	DeleteBasket(ctx context.Context, userName string) error
}

// ErrStore matches every adapter-level failure (connectivity, throttling,
// permissions, encoding).
var ErrStore = errors.New("basket store error")

// StoreError wraps the cause of a failed store operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("basket store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
