package fetcher

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "tcgsync/pkg/errors"
	"tcgsync/pkg/models"
)

const directBody = `{
  "orderNumber": "abcd1234-5678ab-9abcd",
  "createdAt": "2025-12-30T23:10:00-05:00",
  "status": "Completed",
  "orderChannel": "TCGplayer",
  "orderFulfillment": "TCGplayer Direct",
  "transaction": {"grossAmount": 10, "netAmount": 8, "feeAmount": 1, "directFeeAmount": 1, "productAmount": 9, "shippingAmount": 1, "currency": "USD"},
  "products": [
    {"name": "Counterspell", "productId": "111", "skuId": "222", "quantity": 3, "unitPrice": 3, "condition": "NM"}
  ],
  "refunds": [
    {"type": "Partial", "amount": 3, "shippingAmount": 0.5, "products": [{"skuId": 222, "amount": 3}]}
  ],
  "trackingNumbers": ["1Z999"],
  "sellerPayout": 42
}`

func TestNormalizeDirectOrder(t *testing.T) {
	record, err := Normalize([]byte(directBody))
	require.NoError(t, err)

	assert.Equal(t, "ABCD1234-5678AB-9ABCD", record.OrderID)
	assert.Equal(t, models.OrderTypeDirect, record.OrderType)
	assert.Equal(t, "2025-12-30", record.OrderDate, "calendar day as reported, not converted to UTC")
	assert.Equal(t, 1.0, record.Totals.DirectFeeAmount)

	require.Len(t, record.LineItems, 1)
	assert.Equal(t, 9.0, record.LineItems[0].ExtendedPrice, "defaults to quantity times unit price")
	assert.Equal(t, "222", record.LineItems[0].SKU)

	require.Len(t, record.Refunds, 1)
	assert.Equal(t, []models.RefundItem{{SKU: "222", Amount: 3}}, record.Refunds[0].Items)
	amount, shipping := record.RefundTotal()
	assert.Equal(t, 3.0, amount)
	assert.Equal(t, 0.5, shipping)

	assert.JSONEq(t, `["1Z999"]`, string(record.RawFields["trackingNumbers"]))
	assert.Equal(t, `42`, string(record.RawFields["sellerPayout"]))
	assert.NotContains(t, record.RawFields, "transaction")
}

func TestNormalizeChannelMarksDirect(t *testing.T) {
	record, err := Normalize([]byte(`{"orderNumber":"ABCD1234-5678AB-9ABCD","createdAt":"2025-12-30","orderChannel":"TCGplayer Direct","products":[]}`))
	require.NoError(t, err)
	assert.Equal(t, models.OrderTypeDirect, record.OrderType)
	assert.NotNil(t, record.LineItems)
	assert.NotNil(t, record.RawFields)
}

func TestNormalizeIsDeterministic(t *testing.T) {
	a, err := Normalize([]byte(directBody))
	require.NoError(t, err)
	b, err := Normalize([]byte(directBody))
	require.NoError(t, err)

	ca, err := models.Canonical(a)
	require.NoError(t, err)
	cb, err := models.Canonical(b)
	require.NoError(t, err)
	assert.Equal(t, models.ContentHash(ca), models.ContentHash(cb))
}

func TestNormalizeErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		notFound bool
	}{
		{"not json", `<html></html>`, false},
		{"array", `[1,2]`, false},
		{"missing createdAt", `{"orderNumber":"ABCD1234-5678AB-9ABCD","products":[]}`, false},
		{"missing products", `{"orderNumber":"ABCD1234-5678AB-9ABCD","createdAt":"2025-12-30"}`, false},
		{"products wrong type", `{"orderNumber":"ABCD1234-5678AB-9ABCD","createdAt":"2025-12-30","products":{}}`, false},
		{"quantity wrong type", `{"orderNumber":"ABCD1234-5678AB-9ABCD","createdAt":"2025-12-30","products":[{"quantity":"two"}]}`, false},
		{"bad createdAt", `{"orderNumber":"ABCD1234-5678AB-9ABCD","createdAt":"yesterday","products":[]}`, false},
		{"bad order number", `{"orderNumber":"12345","createdAt":"2025-12-30","products":[]}`, false},
		{"missing order number", `{"createdAt":"2025-12-30","products":[]}`, true},
		{"empty order number", `{"orderNumber":"","createdAt":"2025-12-30","products":[]}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize([]byte(tt.body))
			require.Error(t, err)
			if tt.notFound {
				assert.True(t, errs.IsNotFound(err), "got %v", err)
			} else {
				assert.True(t, errs.IsParsing(err), "got %v", err)
			}
		})
	}
}

func TestNormalizedRecordRoundTrip(t *testing.T) {
	body := `{
  "orderNumber": "ABCD1234-5678AB-9ABCD",
  "createdAt": "2025-12-30T10:00:00Z",
  "status": "Shipped",
  "products": [{"name": "Card <Foil>", "productId": 1, "skuId": 2, "quantity": 1, "unitPrice": 1.5}],
  "sellerId": 12345678901234567,
  "weight": 1.50,
  "notes": {"gift": true,  "tags": ["a", "b"]}
}`
	record, err := Normalize([]byte(body))
	require.NoError(t, err)

	stored, err := models.Canonical(record)
	require.NoError(t, err)
	assert.Contains(t, string(stored), "12345678901234567", "large integers keep every digit")

	var back models.OrderRecord
	require.NoError(t, json.Unmarshal(stored, &back))
	if diff := cmp.Diff(record, &back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	again, err := models.Canonical(&back)
	require.NoError(t, err)
	assert.Equal(t, models.ContentHash(stored), models.ContentHash(again))

	var sellerID int64
	ok, err := back.RawFields.Decode("sellerId", &sellerID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(12345678901234567), sellerID)
}
