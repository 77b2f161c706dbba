package tcgplayer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// OrderDetail is the order management API response for a single order
type OrderDetail struct {
	OrderNumber      string           `json:"orderNumber"`
	CreatedAt        string           `json:"createdAt"`
	Status           string           `json:"status"`
	OrderChannel     string           `json:"orderChannel"`
	OrderFulfillment string           `json:"orderFulfillment"`
	BuyerName        string           `json:"buyerName"`
	BuyerEmail       string           `json:"buyerEmail"`
	ShippingAddress  *ShippingAddress `json:"shippingAddress"`
	Transaction      *Transaction     `json:"transaction"`
	Products         []Product        `json:"products"`
	Refunds          []Refund         `json:"refunds"`
}

// KnownFields lists the top-level keys of OrderDetail. Everything else is
// carried verbatim into the stored record.
var KnownFields = map[string]bool{
	"orderNumber":      true,
	"createdAt":        true,
	"status":           true,
	"orderChannel":     true,
	"orderFulfillment": true,
	"buyerName":        true,
	"buyerEmail":       true,
	"shippingAddress":  true,
	"transaction":      true,
	"products":         true,
	"refunds":          true,
}

// RequiredFields must be present for a response to be usable
var RequiredFields = []string{"orderNumber", "createdAt", "products"}

type ShippingAddress struct {
	RecipientName string `json:"recipientName"`
	AddressOne    string `json:"addressOne"`
	AddressTwo    string `json:"addressTwo"`
	City          string `json:"city"`
	Territory     string `json:"territory"`
	PostalCode    string `json:"postalCode"`
	Country       string `json:"country"`
}

type Transaction struct {
	GrossAmount     float64 `json:"grossAmount"`
	NetAmount       float64 `json:"netAmount"`
	FeeAmount       float64 `json:"feeAmount"`
	DirectFeeAmount float64 `json:"directFeeAmount"`
	ProductAmount   float64 `json:"productAmount"`
	ShippingAmount  float64 `json:"shippingAmount"`
}

type Product struct {
	Name          string   `json:"name"`
	ProductID     FlexID   `json:"productId"`
	SkuID         FlexID   `json:"skuId"`
	Quantity      int      `json:"quantity"`
	UnitPrice     float64  `json:"unitPrice"`
	ExtendedPrice *float64 `json:"extendedPrice"`
	URL           string   `json:"url"`
}

type Refund struct {
	Type           string          `json:"type"`
	Amount         float64         `json:"amount"`
	ShippingAmount float64         `json:"shippingAmount"`
	Products       []RefundProduct `json:"products"`
}

type RefundProduct struct {
	SkuID  FlexID  `json:"skuId"`
	Amount float64 `json:"amount"`
}

// FlexID accepts an identifier encoded either as a JSON number or a string
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		*f = FlexID(strconv.FormatInt(i, 10))
		return nil
	}
	*f = FlexID(n.String())
	return nil
}
