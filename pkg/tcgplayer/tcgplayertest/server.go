// Package tcgplayertest provides an in-process fake of the seller portal,
// the seller dashboard and the order management API for tests.
package tcgplayertest

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tcgsync/pkg/models"
	"tcgsync/pkg/tcgplayer"
)

const (
	// AuthCookieName is the cookie the fake portal checks
	AuthCookieName = "TCGAuthTicket_Production"
	// AuthCookieValue is the only ticket the fake portal accepts
	AuthCookieValue = "valid-ticket"
)

// Order is one order known to the fake portal
type Order struct {
	ID   string
	Date time.Time
	Type models.OrderType
	// Extra overrides or adds top-level keys of the detail JSON
	Extra map[string]any
}

// Server simulates the three TCGplayer hosts on a single httptest server
type Server struct {
	server *httptest.Server

	mu            sync.RWMutex
	orders        map[string]*Order
	rawDetails    map[string][]byte
	listingErrors map[int]int
	detailErrors  map[string]*injectedError
	detailDelays  map[string]time.Duration
	ignoreFilters bool
	expired       bool
	loginRedirect bool
	maxPageSize   int

	listingRequests   int32
	detailRequests    int32
	dashboardRequests int32
}

type injectedError struct {
	status int
	left   int // <= 0 means always
}

// NewServer starts a fake portal. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		orders:        make(map[string]*Order),
		rawDetails:    make(map[string][]byte),
		listingErrors: make(map[int]int),
		detailErrors:  make(map[string]*injectedError),
		detailDelays:  make(map[string]time.Duration),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+tcgplayer.DashboardPath, s.handleDashboard)
	mux.HandleFunc("GET /login", s.handleLogin)
	mux.HandleFunc("GET "+tcgplayer.OrdersPath, s.handleListing)
	mux.HandleFunc("GET "+tcgplayer.OrdersPath+"/{id}", s.handleDetail)

	s.server = httptest.NewServer(mux)
	return s
}

// URL is the base URL for the portal, API and store hosts
func (s *Server) URL() string { return s.server.URL }

func (s *Server) Close() { s.server.Close() }

// Cookie returns a valid session cookie
func (s *Server) Cookie() *http.Cookie {
	return &http.Cookie{Name: AuthCookieName, Value: AuthCookieValue, Path: "/"}
}

// AddOrders registers orders with the fake portal
func (s *Server) AddOrders(orders ...Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range orders {
		o := orders[i]
		s.orders[o.ID] = &o
	}
}

// SetDetailField changes one top-level key of an order's detail JSON
func (s *Server) SetDetailField(id, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return
	}
	if o.Extra == nil {
		o.Extra = make(map[string]any)
	}
	o.Extra[key] = value
}

// SetRawDetail serves body verbatim for an order id
func (s *Server) SetRawDetail(id string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rawDetails[id] = body
}

// FailListingPage makes every request for page return status
func (s *Server) FailListingPage(page, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listingErrors[page] = status
}

// FailDetail makes the detail request for id return status the next times
// requests, or always when times <= 0.
func (s *Server) FailDetail(id string, status, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detailErrors[id] = &injectedError{status: status, left: times}
}

// IgnoreFilters makes the listing return every order regardless of the
// requested date range and fulfillment types.
func (s *Server) IgnoreFilters(ignore bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignoreFilters = ignore
}

// ExpireSession rejects the valid cookie from now on
func (s *Server) ExpireSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired = true
}

// ExpireSessionWithRedirect expires the session and answers listing and
// detail requests with a redirect to the sign-in page instead of a 401.
func (s *Server) ExpireSessionWithRedirect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired = true
	s.loginRedirect = true
}

// DelayDetail holds the detail response for id for d, or until the client
// goes away.
func (s *Server) DelayDetail(id string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detailDelays[id] = d
}

// CapPageSize serves at most n rows per listing page whatever size is asked for
func (s *Server) CapPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxPageSize = n
}

// reject answers an unauthorized request; true when the request was handled
func (s *Server) reject(w http.ResponseWriter, r *http.Request) bool {
	if s.authorized(r) {
		return false
	}
	s.mu.RLock()
	redirect := s.loginRedirect
	s.mu.RUnlock()
	if redirect {
		http.Redirect(w, r, "/login?returnUrl="+r.URL.Path, http.StatusFound)
		return true
	}
	w.WriteHeader(http.StatusUnauthorized)
	return true
}

func (s *Server) ListingRequests() int   { return int(atomic.LoadInt32(&s.listingRequests)) }
func (s *Server) DetailRequests() int    { return int(atomic.LoadInt32(&s.detailRequests)) }
func (s *Server) DashboardRequests() int { return int(atomic.LoadInt32(&s.dashboardRequests)) }

func (s *Server) authorized(r *http.Request) bool {
	s.mu.RLock()
	expired := s.expired
	s.mu.RUnlock()
	if expired {
		return false
	}
	c, err := r.Cookie(AuthCookieName)
	return err == nil && c.Value == AuthCookieValue
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&s.dashboardRequests, 1)
	if !s.authorized(r) {
		http.Redirect(w, r, "/login?returnUrl="+tcgplayer.DashboardPath, http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<html><body><h1>Seller Dashboard</h1><a href="/orders">Orders</a></body></html>`)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<html><body><form><input name="Email"><input name="Password"><button type="submit">Sign In</button></form></body></html>`)
}

var listingTemplate = template.Must(template.New("listing").Parse(`<html><body>
<input id="searchTerm">
<table><tbody>
{{- range .Rows}}
<tr data-testid="OrderIndex_Table_Row">
<td><a data-testid="OrderIndex_Table_OrderLink" href="/orders/{{.ID}}">{{.ID}}</a>{{if .Direct}}<img src="/static/tcgplayerdirect_icon.png">{{end}}</td>
<td>Test Buyer</td>
<td data-testid="OrderIndex_Table_OrderDate">{{.Date}}</td>
<td data-testid="OrderIndex_Table_FulfillmentType">{{.Type}}</td>
</tr>
{{- end}}
</tbody></table>
{{if .HasNext}}<a data-testid="Pagination_Next" href="?page={{.Next}}">Next</a>{{else}}<button data-testid="Pagination_Next" disabled>Next</button>{{end}}
</body></html>`))

type listingRow struct {
	ID     string
	Date   string
	Type   models.OrderType
	Direct bool
}

func (s *Server) handleListing(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&s.listingRequests, 1)
	if s.reject(w, r) {
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(q.Get("size"))
	if size < 1 {
		size = tcgplayer.DefaultPageSize
	}

	s.mu.RLock()
	if s.maxPageSize > 0 && size > s.maxPageSize {
		size = s.maxPageSize
	}
	status := s.listingErrors[page]
	matched := s.filterOrders(q.Get("orderDateFrom"), q.Get("orderDateTo"), q.Get("fulfillmentTypes"))
	s.mu.RUnlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}

	start := (page - 1) * size
	end := start + size
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}

	rows := make([]listingRow, 0, end-start)
	for _, o := range matched[start:end] {
		rows = append(rows, listingRow{
			ID:     o.ID,
			Date:   o.Date.Format(models.ListingDateLayout) + " 3:04 PM",
			Type:   o.Type,
			Direct: o.Type == models.OrderTypeDirect,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = listingTemplate.Execute(w, map[string]any{
		"Rows":    rows,
		"HasNext": end < len(matched),
		"Next":    page + 1,
	})
}

// filterOrders returns orders newest first; callers hold s.mu
func (s *Server) filterOrders(fromStr, toStr, types string) []*Order {
	from, errFrom := models.ParseDate(fromStr)
	to, errTo := models.ParseDate(toStr)
	wantTypes := strings.Split(types, ",")

	var out []*Order
	for _, o := range s.orders {
		if !s.ignoreFilters {
			if errFrom == nil && o.Date.Before(from) {
				continue
			}
			if errTo == nil && o.Date.After(to) {
				continue
			}
			if types != "" && !contains(wantTypes, string(o.Type)) {
				continue
			}
		}
		out = append(out, o)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), v) {
			return true
		}
	}
	return false
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&s.detailRequests, 1)
	if s.reject(w, r) {
		return
	}
	id := r.PathValue("id")

	s.mu.RLock()
	delay := s.detailDelays[id]
	s.mu.RUnlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	s.mu.Lock()
	if inj, ok := s.detailErrors[id]; ok {
		status := inj.status
		if inj.left > 0 {
			inj.left--
			if inj.left == 0 {
				delete(s.detailErrors, id)
			}
		}
		s.mu.Unlock()
		w.WriteHeader(status)
		return
	}
	raw, hasRaw := s.rawDetails[id]
	o, ok := s.orders[id]
	var body map[string]any
	if ok {
		body = DetailJSON(*o)
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case hasRaw:
		_, _ = w.Write(raw)
	case ok:
		_ = json.NewEncoder(w).Encode(body)
	default:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"errors": []string{"Order not found"}})
	}
}

// DetailJSON builds the order API body for o
func DetailJSON(o Order) map[string]any {
	channel := "TCGplayer"
	if o.Type == models.OrderTypeDirect {
		channel = "TCGplayer Direct"
	}

	body := map[string]any{
		"orderNumber":      o.ID,
		"createdAt":        o.Date.Add(15 * time.Hour).Format(time.RFC3339),
		"status":           "Shipped",
		"orderChannel":     channel,
		"orderFulfillment": string(o.Type),
		"buyerName":        "Test Buyer",
		"buyerEmail":       "buyer@example.com",
		"shippingAddress": map[string]any{
			"recipientName": "Test Buyer",
			"addressOne":    "1 Main St",
			"city":          "Springfield",
			"territory":     "IL",
			"postalCode":    "62701",
			"country":       "US",
		},
		"transaction": map[string]any{
			"grossAmount":    4.49,
			"netAmount":      3.9,
			"feeAmount":      0.59,
			"productAmount":  3.5,
			"shippingAmount": 0.99,
		},
		"products": []any{
			map[string]any{
				"name":          "Lightning Bolt",
				"productId":     1234,
				"skuId":         5678,
				"quantity":      2,
				"unitPrice":     1.75,
				"extendedPrice": 3.5,
				"url":           "https://www.tcgplayer.com/product/1234",
			},
		},
		"refunds":   []any{},
		"sellerKey": "mock-seller",
	}
	for k, v := range o.Extra {
		body[k] = v
	}
	return body
}
