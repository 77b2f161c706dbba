package tcgplayer

import (
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcgsync/pkg/models"
)

func TestListingURL(t *testing.T) {
	from := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 12, 22, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		query     ListingQuery
		wantTypes string
		wantPage  string
		wantSize  string
	}{
		{"normal first page", ListingQuery{From: from, To: to, Filter: models.FilterNormal, Page: 1, Size: 500}, "Normal", "1", "500"},
		{"direct", ListingQuery{From: from, To: to, Filter: models.FilterDirect, Page: 3, Size: 50}, "Direct", "3", "50"},
		{"all with defaults", ListingQuery{From: from, To: to, Filter: models.FilterAll}, "Normal,Direct", "1", "500"},
		{"oversized page", ListingQuery{From: from, To: to, Page: 2, Size: 5000}, "Normal", "2", "500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := ListingURL("https://portal.example/", tt.query)
			u, err := url.Parse(raw)
			require.NoError(t, err)

			assert.Equal(t, "portal.example", u.Host)
			assert.Equal(t, OrdersPath, u.Path)

			q := u.Query()
			assert.Equal(t, "12/01/2025", q.Get("orderDateFrom"))
			assert.Equal(t, "12/22/2025", q.Get("orderDateTo"))
			assert.Equal(t, tt.wantTypes, q.Get("fulfillmentTypes"))
			assert.Equal(t, "Custom", q.Get("searchRange"))
			assert.Equal(t, tt.wantPage, q.Get("page"))
			assert.Equal(t, tt.wantSize, q.Get("size"))
			assert.Equal(t, "orderDate", q.Get("sortBy"))
			assert.Equal(t, "desc", q.Get("sortDirection"))
		})
	}
}

func TestOrderDetailURL(t *testing.T) {
	assert.Equal(t,
		"https://order-management-api.tcgplayer.com/orders/ABCD1234-5678AB-9ABCD",
		OrderDetailURL(DefaultAPIURL, "ABCD1234-5678AB-9ABCD"))
	assert.Equal(t, "https://store.tcgplayer.com/admin/Seller/Dashboard/", DashboardURL(DefaultStoreURL+"/"))
}

func TestExtractOrderID(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://sellerportal.tcgplayer.com/orders/ABCD1234-5678AB-9ABCD", "ABCD1234-5678AB-9ABCD", true},
		{"abcd1234-5678ab-9abcd", "ABCD1234-5678AB-9ABCD", true},
		{"Direct Seller Order 0A1B2C3D-4E5F60-789AB Refund", "0A1B2C3D-4E5F60-789AB", true},
		{"/orders/not-an-order", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ExtractOrderID(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	assert.True(t, IsValidOrderID("ABCD1234-5678AB-9ABCD"))
	assert.False(t, IsValidOrderID("ABCD1234-5678AB-9ABCDE"))
}

func TestIsLoginURL(t *testing.T) {
	for raw, want := range map[string]bool{
		"https://store.tcgplayer.com/login?returnUrl=x":       true,
		"https://login.tcgplayer.com/":                        true,
		"https://store.tcgplayer.com/admin/Seller/Dashboard/": false,
	} {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, want, IsLoginURL(u), raw)
	}
	assert.False(t, IsLoginURL(nil))
}

func TestFlexID(t *testing.T) {
	var p Product
	require.NoError(t, json.Unmarshal([]byte(`{"productId": 123456, "skuId": "789"}`), &p))
	assert.Equal(t, FlexID("123456"), p.ProductID)
	assert.Equal(t, FlexID("789"), p.SkuID)

	require.NoError(t, json.Unmarshal([]byte(`{"productId": null}`), &p))
	assert.Equal(t, FlexID(""), p.ProductID)

	assert.Error(t, json.Unmarshal([]byte(`{"productId": true}`), &p))
}
