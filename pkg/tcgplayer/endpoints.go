package tcgplayer

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tcgsync/pkg/models"
)

const (
	// DefaultPortalURL hosts the order listing
	DefaultPortalURL = "https://sellerportal.tcgplayer.com"

	// DefaultAPIURL serves order details as JSON
	DefaultAPIURL = "https://order-management-api.tcgplayer.com"

	// DefaultStoreURL hosts the legacy seller dashboard used to validate sessions
	DefaultStoreURL = "https://store.tcgplayer.com"

	OrdersPath    = "/orders"
	DashboardPath = "/admin/Seller/Dashboard/"

	// DefaultPageSize is the largest page the listing accepts
	DefaultPageSize = 500
	MaxPageSize     = 500
)

// Listing page selectors
const (
	RowSelector        = "tr[data-testid='OrderIndex_Table_Row']"
	OrderLinkSelector  = "a[data-testid='OrderIndex_Table_OrderLink']"
	OrderDateSelector  = "[data-testid='OrderIndex_Table_OrderDate']"
	TypeSelector       = "[data-testid='OrderIndex_Table_FulfillmentType']"
	DirectIconSelector = "img[src*='tcgplayerdirect_icon.png']"
	NextPageSelector   = "[data-testid='Pagination_Next']"
)

var orderIDPattern = regexp.MustCompile(`(?i)\b([0-9A-F]{8}-[0-9A-F]{6}-[0-9A-F]{5})\b`)
var exactOrderID = regexp.MustCompile(`^[0-9A-F]{8}-[0-9A-F]{6}-[0-9A-F]{5}$`)

// ListingQuery describes one page of the order listing
type ListingQuery struct {
	From   time.Time
	To     time.Time
	Filter models.OrderTypeFilter
	Page   int
	Size   int
}

// FulfillmentTypes returns the fulfillmentTypes query value for a filter
func FulfillmentTypes(f models.OrderTypeFilter) string {
	switch f {
	case models.FilterDirect:
		return "Direct"
	case models.FilterAll:
		return "Normal,Direct"
	default:
		return "Normal"
	}
}

// ListingURL constructs the URL of one listing page, newest orders first
func ListingURL(portalURL string, q ListingQuery) string {
	page := q.Page
	if page < 1 {
		page = 1
	}
	size := q.Size
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}

	params := url.Values{}
	params.Set("orderDateFrom", q.From.Format(models.ListingDateLayout))
	params.Set("orderDateTo", q.To.Format(models.ListingDateLayout))
	params.Set("fulfillmentTypes", FulfillmentTypes(q.Filter))
	params.Set("searchRange", "Custom")
	params.Set("page", strconv.Itoa(page))
	params.Set("size", strconv.Itoa(size))
	params.Set("sortBy", "orderDate")
	params.Set("sortDirection", "desc")

	return fmt.Sprintf("%s%s?%s", strings.TrimRight(portalURL, "/"), OrdersPath, params.Encode())
}

// OrderDetailURL constructs the order API URL for one order
func OrderDetailURL(apiURL, orderID string) string {
	return fmt.Sprintf("%s%s/%s", strings.TrimRight(apiURL, "/"), OrdersPath, url.PathEscape(orderID))
}

// DashboardURL returns the seller dashboard URL used for session validation
func DashboardURL(storeURL string) string {
	return strings.TrimRight(storeURL, "/") + DashboardPath
}

// ExtractOrderID finds an order number in an href or link text. The result is upper-cased.
func ExtractOrderID(s string) (string, bool) {
	m := orderIDPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]), true
}

// IsValidOrderID reports whether s is exactly an order number
func IsValidOrderID(s string) bool {
	return exactOrderID.MatchString(s)
}

// IsLoginURL reports whether u points at a sign-in page
func IsLoginURL(u *url.URL) bool {
	if u == nil {
		return false
	}
	p := strings.ToLower(u.Path)
	return strings.Contains(p, "/login") || strings.Contains(p, "/signin") || strings.HasPrefix(strings.ToLower(u.Host), "login.")
}
