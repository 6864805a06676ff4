package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	FieldUserName   = "userName"
	FieldItems      = "items"
	FieldPrice      = "price"
	FieldTotalPrice = "totalPrice"
)

// ErrMalformedBasket marks a stored basket that is not in a checkout-eligible shape.
var ErrMalformedBasket = errors.New("malformed basket")

// BasketItem is a single line item. Price is the only field the service
// interprets; every other field (productId, quantity, ...) is carried in
// Attributes and passed through unchanged.
type BasketItem struct {
	Price      float64
	Attributes map[string]any
}

// Basket is a user's basket record, keyed by UserName. Items is nil only when
// the stored record never had an items collection.
type Basket struct {
	UserName   string
	Items      []BasketItem
	Attributes map[string]any
}

// EmptyBasket is the basket of a user with no stored record.
func EmptyBasket(userName string) *Basket {
	return &Basket{
		UserName: userName,
		Items:    []BasketItem{},
	}
}

// ToMap flattens the item into its wire shape.
func (i BasketItem) ToMap() map[string]any {
	m := make(map[string]any, len(i.Attributes)+1)
	for k, v := range i.Attributes {
		m[k] = v
	}
	m[FieldPrice] = i.Price
	return m
}

// ToMap flattens the basket into its wire shape
// {userName, items:[{price, ...}], ...}.
func (b *Basket) ToMap() map[string]any {
	m := make(map[string]any, len(b.Attributes)+2)
	for k, v := range b.Attributes {
		m[k] = v
	}
	m[FieldUserName] = b.UserName
	if b.Items != nil {
		items := make([]any, 0, len(b.Items))
		for _, it := range b.Items {
			items = append(items, it.ToMap())
		}
		m[FieldItems] = items
	}
	return m
}

// BasketFromMap builds a Basket from its wire shape. A missing items
// attribute leaves Items nil; an items attribute of the wrong shape, or an
// item without a numeric price, is reported as ErrMalformedBasket.
func BasketFromMap(m map[string]any) (*Basket, error) {
	b := &Basket{Attributes: make(map[string]any)}

	for k, v := range m {
		switch k {
		case FieldUserName:
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: userName is %T, want string", ErrMalformedBasket, v)
			}
			b.UserName = s
		case FieldItems:
			items, err := itemsFromAny(v)
			if err != nil {
				return nil, err
			}
			b.Items = items
		default:
			b.Attributes[k] = v
		}
	}

	if len(b.Attributes) == 0 {
		b.Attributes = nil
	}
	return b, nil
}

func itemsFromAny(v any) ([]BasketItem, error) {
	if v == nil {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: items is %T, want list", ErrMalformedBasket, v)
	}

	items := make([]BasketItem, 0, len(raw))
	for idx, r := range raw {
		fields, ok := r.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: item %d is %T, want object", ErrMalformedBasket, idx, r)
		}
		item, err := itemFromMap(fields)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", idx, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func itemFromMap(m map[string]any) (BasketItem, error) {
	item := BasketItem{}
	for k, v := range m {
		if k == FieldPrice {
			price, err := toFloat(v)
			if err != nil {
				return BasketItem{}, err
			}
			item.Price = price
			continue
		}
		if item.Attributes == nil {
			item.Attributes = make(map[string]any)
		}
		item.Attributes[k] = v
	}
	if _, ok := m[FieldPrice]; !ok {
		return BasketItem{}, fmt.Errorf("%w: item has no price", ErrMalformedBasket)
	}
	return item, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: price %q is not a number", ErrMalformedBasket, n.String())
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: price is %T, want number", ErrMalformedBasket, v)
	}
}

func (i BasketItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.ToMap())
}

func (i *BasketItem) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	item, err := itemFromMap(m)
	if err != nil {
		return err
	}
	*i = item
	return nil
}

func (b Basket) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.ToMap())
}

func (b *Basket) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	parsed, err := BasketFromMap(m)
	if err != nil {
		return err
	}
	*b = *parsed
	return nil
}
