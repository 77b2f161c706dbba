package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() *OrderRecord {
	return &OrderRecord{
		OrderID:     "ABCD1234-5678AB-9ABCD",
		OrderType:   OrderTypeDirect,
		OrderDate:   "2025-12-22",
		CreatedAt:   "2025-12-22T18:04:11.123Z",
		Status:      "Shipped",
		Channel:     "TCGplayer Direct",
		Fulfillment: "Direct",
		LineItems: []LineItem{
			{SKU: "100", ProductID: "7", Name: "Lightning Bolt", Quantity: 2, UnitPrice: 1.25, ExtendedPrice: 2.5, URL: "https://www.tcgplayer.com/product/7"},
			{SKU: "200", ProductID: "8", Name: "Counterspell <Foil>", Quantity: 1, UnitPrice: 3, ExtendedPrice: 3},
		},
		BuyerInfo: BuyerInfo{
			Name:  "Jo Buyer",
			Email: "jo@example.com",
			ShippingAddress: Address{
				Recipient: "Jo Buyer", Line1: "1 Main St", City: "Springfield",
				State: "IL", PostalCode: "62701", Country: "US",
			},
		},
		Totals: Totals{GrossAmount: 5.5, NetAmount: 4.9, FeeAmount: 0.6, ProductAmount: 5.5},
		Refunds: []Refund{
			{Type: "Partial", Amount: 1.25, Items: []RefundItem{{SKU: "100", Amount: 1.25}}},
		},
		RawFields: RawFields{
			"sellerKey": json.RawMessage(`"abc"`),
			"flags":     json.RawMessage(`["a","b"]`),
			"weight":    json.RawMessage(`1.5`),
			"sellerId":  json.RawMessage(`12345678901234567`),
		},
	}
}

func TestRecordRoundTrip(t *testing.T) {
	rec := sampleRecord()

	data, err := Canonical(rec)
	require.NoError(t, err)

	var back OrderRecord
	require.NoError(t, json.Unmarshal(data, &back))

	if diff := cmp.Diff(rec, &back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	again, err := Canonical(&back)
	require.NoError(t, err)
	assert.Equal(t, ContentHash(data), ContentHash(again), "canonical bytes must be stable")
}

func TestCanonicalFormat(t *testing.T) {
	data, err := Canonical(sampleRecord())
	require.NoError(t, err)

	assert.Equal(t, byte('\n'), data[len(data)-1])
	assert.Contains(t, string(data), "\n  \"order_id\": \"ABCD1234-5678AB-9ABCD\"")
	assert.Contains(t, string(data), "Counterspell <Foil>")
}

func TestContentHash(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", ContentHash(nil))
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", ContentHash([]byte("abc")))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "ABCD1234-5678AB-9ABCD.json", KeyFor("ABCD1234-5678AB-9ABCD"))

	tests := []struct {
		key  string
		id   string
		isOK bool
	}{
		{"ABCD1234-5678AB-9ABCD.json", "ABCD1234-5678AB-9ABCD", true},
		{"orders/2025/X.json", "X", true},
		{"notes.txt", "", false},
		{".json", "", false},
	}
	for _, tt := range tests {
		id, ok := OrderIDFromKey(tt.key)
		assert.Equal(t, tt.isOK, ok, tt.key)
		assert.Equal(t, tt.id, id, tt.key)
	}
}

func TestParseOrderTypes(t *testing.T) {
	ot, err := ParseOrderType("DIRECT")
	require.NoError(t, err)
	assert.Equal(t, OrderTypeDirect, ot)

	_, err = ParseOrderType("all")
	assert.Error(t, err)

	for in, want := range map[string]OrderTypeFilter{"": FilterNormal, "Normal": FilterNormal, "direct": FilterDirect, "ALL": FilterAll} {
		got, err := ParseOrderTypeFilter(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err = ParseOrderTypeFilter("express")
	assert.Error(t, err)
}

func TestFilterMatches(t *testing.T) {
	assert.True(t, FilterAll.Matches(OrderTypeDirect))
	assert.True(t, FilterAll.Matches(OrderTypeNormal))
	assert.True(t, FilterDirect.Matches(OrderTypeDirect))
	assert.False(t, FilterDirect.Matches(OrderTypeNormal))
	assert.True(t, FilterNormal.Matches(OrderTypeNormal))
	assert.False(t, FilterNormal.Matches(OrderTypeDirect))
}

func TestParseDate(t *testing.T) {
	want := time.Date(2025, 12, 22, 0, 0, 0, 0, time.UTC)

	for _, in := range []string{"12/22/2025", "2025-12-22", " 12/22/2025 "} {
		got, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
	}

	_, err := ParseDate("22.12.2025")
	assert.Error(t, err)

	assert.True(t, want.Equal(CivilDate(time.Date(2025, 12, 22, 23, 59, 0, 0, time.UTC))))
}

func TestRefundTotal(t *testing.T) {
	rec := sampleRecord()
	rec.Refunds = append(rec.Refunds, Refund{Type: "Full", Amount: 4.25, ShippingAmount: 0.99})

	amount, shipping := rec.RefundTotal()
	assert.InDelta(t, 5.5, amount, 1e-9)
	assert.InDelta(t, 0.99, shipping, 1e-9)
}
