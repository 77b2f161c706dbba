package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OrderType is the fulfillment type of a single order
type OrderType string

const (
	OrderTypeNormal OrderType = "Normal"
	OrderTypeDirect OrderType = "Direct"
)

// ParseOrderType parses "normal" or "direct" case-insensitively
func ParseOrderType(s string) (OrderType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal":
		return OrderTypeNormal, nil
	case "direct":
		return OrderTypeDirect, nil
	default:
		return "", fmt.Errorf("unknown order type %q", s)
	}
}

// OrderTypeFilter selects which order types a crawl yields
type OrderTypeFilter string

const (
	FilterNormal OrderTypeFilter = "Normal"
	FilterDirect OrderTypeFilter = "Direct"
	FilterAll    OrderTypeFilter = "All"
)

// ParseOrderTypeFilter parses "normal", "direct" or "all" case-insensitively.
// An empty string selects Normal.
func ParseOrderTypeFilter(s string) (OrderTypeFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return FilterNormal, nil
	case "direct":
		return FilterDirect, nil
	case "all", "both":
		return FilterAll, nil
	default:
		return "", fmt.Errorf("unknown order type filter %q (want normal, direct or all)", s)
	}
}

// Matches reports whether an order of type t passes the filter
func (f OrderTypeFilter) Matches(t OrderType) bool {
	switch f {
	case FilterAll:
		return true
	case FilterDirect:
		return t == OrderTypeDirect
	default:
		return t == OrderTypeNormal
	}
}

// OrderSummary is one row of the seller portal order listing
type OrderSummary struct {
	OrderID   string
	OrderDate time.Time // civil date, UTC midnight
	OrderType OrderType
}

// OrderRecord is the persisted, normalized order detail
type OrderRecord struct {
	OrderID     string         `json:"order_id"`
	OrderType   OrderType      `json:"order_type"`
	OrderDate   string         `json:"order_date"`
	CreatedAt   string         `json:"created_at"`
	Status      string         `json:"status"`
	Channel     string         `json:"channel"`
	Fulfillment string         `json:"fulfillment"`
	LineItems   []LineItem     `json:"line_items"`
	BuyerInfo   BuyerInfo      `json:"buyer_info"`
	Totals      Totals         `json:"totals"`
	Refunds     []Refund       `json:"refunds"`
	RawFields   RawFields      `json:"raw_fields"`
}

// RawFields holds the order API keys no mapped field covers, each as the
// compact JSON text it arrived as. Numbers keep their exact digits.
type RawFields map[string]json.RawMessage

// UnmarshalJSON compacts every value so a stored record reads back equal to
// the one that was written.
func (f *RawFields) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	out := make(RawFields, len(m))
	for key, value := range m {
		var buf bytes.Buffer
		if err := json.Compact(&buf, value); err != nil {
			return fmt.Errorf("raw field %q: %w", key, err)
		}
		out[key] = buf.Bytes()
	}
	*f = out
	return nil
}

// Decode unmarshals the raw field key into v; false when the key is absent
func (f RawFields) Decode(key string, v any) (bool, error) {
	raw, ok := f[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

// LineItem is a single product line of an order
type LineItem struct {
	SKU           string  `json:"sku"`
	ProductID     string  `json:"product_id"`
	Name          string  `json:"name"`
	Quantity      int     `json:"quantity"`
	UnitPrice     float64 `json:"unit_price"`
	ExtendedPrice float64 `json:"extended_price"`
	URL           string  `json:"url"`
}

type BuyerInfo struct {
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	ShippingAddress Address `json:"shipping_address"`
}

type Address struct {
	Recipient  string `json:"recipient"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Totals holds the transaction amounts reported for an order
type Totals struct {
	GrossAmount     float64 `json:"gross_amount"`
	NetAmount       float64 `json:"net_amount"`
	FeeAmount       float64 `json:"fee_amount"`
	DirectFeeAmount float64 `json:"direct_fee_amount"`
	ProductAmount   float64 `json:"product_amount"`
	ShippingAmount  float64 `json:"shipping_amount"`
}

// Refund is one refund event; Type is "Full" or "Partial" as reported
type Refund struct {
	Type           string       `json:"type"`
	Amount         float64      `json:"amount"`
	ShippingAmount float64      `json:"shipping_amount"`
	Items          []RefundItem `json:"items"`
}

type RefundItem struct {
	SKU    string  `json:"sku"`
	Amount float64 `json:"amount"`
}

// RefundTotal sums the product and shipping amounts of all refunds
func (r *OrderRecord) RefundTotal() (amount, shipping float64) {
	for _, ref := range r.Refunds {
		amount += ref.Amount
		shipping += ref.ShippingAmount
	}
	return amount, shipping
}
