package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "tcgsync/pkg/errors"
	"tcgsync/pkg/models"
	"tcgsync/pkg/retry"
	"tcgsync/pkg/session"
	"tcgsync/pkg/tcgplayer/tcgplayertest"
)

const testOrderID = "ABCD1234-5678AB-9ABCD"

func setup(t *testing.T) (*tcgplayertest.Server, *Fetcher) {
	t.Helper()
	srv := tcgplayertest.NewServer()
	t.Cleanup(srv.Close)

	date, err := models.ParseDate("12/23/2025")
	require.NoError(t, err)
	srv.AddOrders(tcgplayertest.Order{ID: testOrderID, Date: date, Type: models.OrderTypeNormal})

	sess, err := session.NewProvider(session.Options{
		PortalURL:    srv.URL(),
		APIURL:       srv.URL(),
		StoreURL:     srv.URL(),
		CookieHeader: tcgplayertest.AuthCookieName + "=" + tcgplayertest.AuthCookieValue,
	}).Get(context.Background())
	require.NoError(t, err)

	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 3
	cfg.Backoff = &retry.ConstantBackoff{Delay: time.Millisecond}

	return srv, New(sess, Options{Retry: cfg})
}

func TestFetch(t *testing.T) {
	_, f := setup(t)

	record, err := f.Fetch(context.Background(), testOrderID)
	require.NoError(t, err)

	assert.Equal(t, testOrderID, record.OrderID)
	assert.Equal(t, models.OrderTypeNormal, record.OrderType)
	assert.Equal(t, "2025-12-23", record.OrderDate)
	assert.Equal(t, "Shipped", record.Status)
	require.Len(t, record.LineItems, 1)
	assert.Equal(t, models.LineItem{
		SKU:           "5678",
		ProductID:     "1234",
		Name:          "Lightning Bolt",
		Quantity:      2,
		UnitPrice:     1.75,
		ExtendedPrice: 3.5,
		URL:           "https://www.tcgplayer.com/product/1234",
	}, record.LineItems[0])
	assert.Equal(t, "IL", record.BuyerInfo.ShippingAddress.State)
	assert.Equal(t, 4.49, record.Totals.GrossAmount)
	assert.Empty(t, record.Refunds)
	assert.Equal(t, models.RawFields{"sellerKey": json.RawMessage(`"mock-seller"`)}, record.RawFields)
}

func TestFetchNotFound(t *testing.T) {
	srv, f := setup(t)

	_, err := f.Fetch(context.Background(), "FFFF0000-111111-22222")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
	assert.Equal(t, 1, srv.DetailRequests(), "not found is not retried")
}

func TestFetchEmptyOrderNumberIsNotFound(t *testing.T) {
	srv, f := setup(t)
	srv.SetDetailField(testOrderID, "orderNumber", "")

	_, err := f.Fetch(context.Background(), testOrderID)
	assert.True(t, errs.IsNotFound(err), "got %v", err)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	srv, f := setup(t)
	srv.FailDetail(testOrderID, http.StatusServiceUnavailable, 2)

	record, err := f.Fetch(context.Background(), testOrderID)
	require.NoError(t, err)
	assert.Equal(t, testOrderID, record.OrderID)
	assert.Equal(t, 3, srv.DetailRequests())
}

func TestFetchGivesUpAfterMaxAttempts(t *testing.T) {
	srv, f := setup(t)
	srv.FailDetail(testOrderID, http.StatusInternalServerError, 0)

	_, err := f.Fetch(context.Background(), testOrderID)
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeServerError, errs.TypeOf(err))
	assert.Equal(t, 3, srv.DetailRequests())
}

func TestFetchAuthFailure(t *testing.T) {
	srv, f := setup(t)
	srv.ExpireSession()

	_, err := f.Fetch(context.Background(), testOrderID)
	require.Error(t, err)
	assert.True(t, errs.IsAuth(err))
	assert.Equal(t, 1, srv.DetailRequests())
}

func TestFetchMalformedBody(t *testing.T) {
	srv, f := setup(t)
	srv.SetRawDetail(testOrderID, []byte(`<html>maintenance</html>`))

	_, err := f.Fetch(context.Background(), testOrderID)
	require.Error(t, err)
	assert.True(t, errs.IsParsing(err))
	assert.Equal(t, 1, srv.DetailRequests())
}

func TestFetchMismatchedOrderNumber(t *testing.T) {
	srv, f := setup(t)
	srv.SetDetailField(testOrderID, "orderNumber", "FFFF0000-111111-22222")

	_, err := f.Fetch(context.Background(), testOrderID)
	require.Error(t, err)
	assert.True(t, errs.IsParsing(err))
}
