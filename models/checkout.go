package models

import (
	"encoding/json"
	"fmt"
)

// CheckoutRequest is the inbound checkout body: a user name plus arbitrary
// order metadata (address, card, ...) passed through to the order payload.
type CheckoutRequest struct {
	UserName   string
	Attributes map[string]any
}

func (r CheckoutRequest) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Attributes)+1)
	for k, v := range r.Attributes {
		m[k] = v
	}
	if r.UserName != "" {
		m[FieldUserName] = r.UserName
	}
	return json.Marshal(m)
}

func (r *CheckoutRequest) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	req := CheckoutRequest{}
	if v, ok := m[FieldUserName]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("userName is %T, want string", v)
		}
		req.UserName = s
	}
	delete(m, FieldUserName)
	if len(m) > 0 {
		req.Attributes = m
	}

	*r = req
	return nil
}

// OrderPayload is the merged, totaled order body published on checkout.
type OrderPayload map[string]any

// TotalPrice returns the computed total, or 0 if the payload has none.
func (p OrderPayload) TotalPrice() float64 {
	f, _ := p[FieldTotalPrice].(float64)
	return f
}

// CheckoutEvent is an order payload with the routing metadata the bus needs.
type CheckoutEvent struct {
	Source     string       `json:"source"`
	DetailType string       `json:"detailType"`
	BusName    string       `json:"busName"`
	UserName   string       `json:"-"`
	Detail     OrderPayload `json:"detail"`
}

// PublishReceipt is the bus acknowledgment for an accepted event.
type PublishReceipt struct {
	MessageID string `json:"messageId"`
	Publisher string `json:"publisher"`
}
