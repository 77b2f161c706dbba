package fetcher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	errs "tcgsync/pkg/errors"
	"tcgsync/pkg/models"
	"tcgsync/pkg/tcgplayer"
)

// Normalize maps an order API body onto an OrderRecord. Unknown top-level
// keys are kept verbatim in RawFields; unknown keys inside mapped objects are
// ignored. An empty orderNumber is reported as not found.
func Normalize(raw []byte) (*models.OrderRecord, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errs.NewParseError("order detail is not a JSON object", err)
	}

	for _, name := range tcgplayer.RequiredFields {
		v, ok := fields[name]
		if !ok || isNull(v) {
			if name == "orderNumber" {
				return nil, errs.New(errs.ErrorTypeNotFound, "order detail has no order number")
			}
			return nil, errs.NewParseError(fmt.Sprintf("order detail missing %q", name), nil)
		}
	}

	var detail tcgplayer.OrderDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return nil, errs.NewParseError("unexpected order detail shape", err)
	}
	if strings.TrimSpace(detail.OrderNumber) == "" {
		return nil, errs.New(errs.ErrorTypeNotFound, "order detail has no order number")
	}
	if !tcgplayer.IsValidOrderID(strings.ToUpper(detail.OrderNumber)) {
		return nil, errs.NewParseError(fmt.Sprintf("invalid order number %q", detail.OrderNumber), nil)
	}

	orderDate, err := orderDate(detail.CreatedAt)
	if err != nil {
		return nil, errs.NewParseError("invalid createdAt", err)
	}

	record := &models.OrderRecord{
		OrderID:     strings.ToUpper(detail.OrderNumber),
		OrderType:   orderType(detail.OrderFulfillment, detail.OrderChannel),
		OrderDate:   orderDate.Format(models.ISODateLayout),
		CreatedAt:   detail.CreatedAt,
		Status:      detail.Status,
		Channel:     detail.OrderChannel,
		Fulfillment: detail.OrderFulfillment,
		LineItems:   make([]models.LineItem, 0, len(detail.Products)),
		Refunds:     make([]models.Refund, 0, len(detail.Refunds)),
		RawFields:   make(models.RawFields),
		BuyerInfo: models.BuyerInfo{
			Name:  detail.BuyerName,
			Email: detail.BuyerEmail,
		},
	}

	if a := detail.ShippingAddress; a != nil {
		record.BuyerInfo.ShippingAddress = models.Address{
			Recipient:  a.RecipientName,
			Line1:      a.AddressOne,
			Line2:      a.AddressTwo,
			City:       a.City,
			State:      a.Territory,
			PostalCode: a.PostalCode,
			Country:    a.Country,
		}
	}

	if t := detail.Transaction; t != nil {
		record.Totals = models.Totals{
			GrossAmount:     t.GrossAmount,
			NetAmount:       t.NetAmount,
			FeeAmount:       t.FeeAmount,
			DirectFeeAmount: t.DirectFeeAmount,
			ProductAmount:   t.ProductAmount,
			ShippingAmount:  t.ShippingAmount,
		}
	}

	for _, p := range detail.Products {
		extended := float64(p.Quantity) * p.UnitPrice
		if p.ExtendedPrice != nil {
			extended = *p.ExtendedPrice
		}
		record.LineItems = append(record.LineItems, models.LineItem{
			SKU:           string(p.SkuID),
			ProductID:     string(p.ProductID),
			Name:          p.Name,
			Quantity:      p.Quantity,
			UnitPrice:     p.UnitPrice,
			ExtendedPrice: extended,
			URL:           p.URL,
		})
	}

	for _, r := range detail.Refunds {
		refund := models.Refund{
			Type:           r.Type,
			Amount:         r.Amount,
			ShippingAmount: r.ShippingAmount,
			Items:          make([]models.RefundItem, 0, len(r.Products)),
		}
		for _, p := range r.Products {
			refund.Items = append(refund.Items, models.RefundItem{SKU: string(p.SkuID), Amount: p.Amount})
		}
		record.Refunds = append(record.Refunds, refund)
	}

	for key, value := range fields {
		if tcgplayer.KnownFields[key] {
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, value); err != nil {
			return nil, errs.NewParseError(fmt.Sprintf("field %q", key), err)
		}
		record.RawFields[key] = buf.Bytes()
	}

	return record, nil
}

func isNull(v json.RawMessage) bool {
	return len(bytes.TrimSpace(v)) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func orderType(fulfillment, channel string) models.OrderType {
	if strings.Contains(strings.ToLower(fulfillment), "direct") || strings.Contains(strings.ToLower(channel), "direct") {
		return models.OrderTypeDirect
	}
	return models.OrderTypeNormal
}

// orderDate takes the calendar day of createdAt as the API reports it,
// without converting time zones.
func orderDate(createdAt string) (time.Time, error) {
	s := strings.TrimSpace(createdAt)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return models.CivilDate(t), nil
		}
	}
	if len(s) >= 10 {
		if t, err := models.ParseDate(s[:10]); err == nil {
			return t, nil
		}
	}
	return models.ParseDate(s)
}
