package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/yashrajoria/basket-service/models"
)

// BuildOrderPayload merges the checkout request and the basket into an order
// payload and computes totalPrice from the basket items. Basket fields win
// over request fields of the same name. The sum is exact and independent of
// item order.
func BuildOrderPayload(req models.CheckoutRequest, basket *models.Basket) (models.OrderPayload, error) {
	if basket == nil {
		return nil, newCheckoutError(KindMalformedBasket, StepBuild, req.UserName, "basket is missing", nil)
	}
	if basket.Items == nil {
		return nil, newCheckoutError(KindMalformedBasket, StepBuild, req.UserName, "basket has no items collection", nil)
	}

	total := decimal.Zero
	items := make([]any, 0, len(basket.Items))
	for idx, it := range basket.Items {
		if it.Price < 0 {
			return nil, newCheckoutError(KindMalformedBasket, StepBuild, req.UserName,
				fmt.Sprintf("item %d has negative price %v", idx, it.Price), nil)
		}
		total = total.Add(decimal.NewFromFloat(it.Price))
		items = append(items, it.ToMap())
	}

	payload := make(models.OrderPayload, len(req.Attributes)+len(basket.Attributes)+3)
	for k, v := range req.Attributes {
		payload[k] = v
	}
	if req.UserName != "" {
		payload[models.FieldUserName] = req.UserName
	}
	for k, v := range basket.Attributes {
		payload[k] = v
	}
	if basket.UserName != "" {
		payload[models.FieldUserName] = basket.UserName
	}
	payload[models.FieldItems] = items
	payload[models.FieldTotalPrice] = total.InexactFloat64()

	return payload, nil
}
