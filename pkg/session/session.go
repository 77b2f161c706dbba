package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	errs "tcgsync/pkg/errors"
	"tcgsync/pkg/logger"
	"tcgsync/pkg/tcgplayer"
)

// Session is an authenticated HTTP context for the seller portal and order
// API. It is immutable once returned by Provider.Get and is never renewed:
// an expired session surfaces as an auth error on the next request.
type Session struct {
	client    *resty.Client
	portalURL string
	apiURL    string
	storeURL  string
	account   string
	log       logger.Logger
}

// Page is a fetched HTML document
type Page struct {
	URL         *url.URL
	ContentType string
	Body        []byte
}

func (s *Session) PortalURL() string { return s.portalURL }
func (s *Session) APIURL() string    { return s.apiURL }
func (s *Session) StoreURL() string  { return s.storeURL }

// Account is the name of the credential set the session was built from
func (s *Session) Account() string { return s.account }

// GetHTML fetches an HTML page
func (s *Session) GetHTML(ctx context.Context, rawURL string) (*Page, error) {
	res, err := s.get(ctx, rawURL, "text/html,application/xhtml+xml")
	if err != nil {
		return nil, err
	}

	return &Page{
		URL:         finalURL(res),
		ContentType: res.Header().Get("Content-Type"),
		Body:        res.Body(),
	}, nil
}

// GetJSON fetches rawURL and decodes the body into v. Pass a *json.RawMessage
// to keep the body verbatim.
func (s *Session) GetJSON(ctx context.Context, rawURL string, v any) error {
	res, err := s.get(ctx, rawURL, "application/json")
	if err != nil {
		return err
	}

	if err := json.Unmarshal(res.Body(), v); err != nil {
		s.log.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          rawURL,
			"status":       res.StatusCode(),
			"error":        err.Error(),
			"body_preview": preview(res.Body()),
		})
		return errs.NewParseError("response is not valid JSON", err)
	}
	return nil
}

func (s *Session) get(ctx context.Context, rawURL, accept string) (*resty.Response, error) {
	start := time.Now()
	res, err := s.client.R().
		SetContext(ctx).
		SetHeader("Accept", accept).
		Get(rawURL)
	duration := time.Since(start)

	if err != nil {
		// Only the caller's context ends the request for good. A client
		// timeout is a network failure like any other.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.log.WarnWithFields("HTTP request failed", map[string]interface{}{
			"url":      rawURL,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, "request failed", err)
	}

	s.log.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      rawURL,
		"status":   res.StatusCode(),
		"duration": duration,
	})

	if res.StatusCode() == http.StatusTooManyRequests {
		logger.LogRateLimit(s.log, endpoint(rawURL), retryAfter(res.Header().Get("Retry-After")))
	}
	if err := statusError(res.StatusCode()); err != nil {
		return nil, err
	}
	// Both hosts answer an expired session with a redirect to sign-in.
	if tcgplayer.IsLoginURL(finalURL(res)) {
		return nil, errs.NewAuthError("session redirected to sign-in page", 0)
	}
	return res, nil
}

func endpoint(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host + u.Path
}

// retryAfter reads a Retry-After header given in seconds; zero when absent
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// statusError maps an HTTP status to a typed error; nil for 2xx and 3xx
func statusError(code int) error {
	switch {
	case code < 400:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return errs.NewAuthError("session rejected", code)
	case code == http.StatusNotFound:
		return &errs.Error{Type: errs.ErrorTypeNotFound, Code: code, Message: "resource not found"}
	case code == http.StatusTooManyRequests:
		return &errs.Error{Type: errs.ErrorTypeRateLimit, Code: code, Message: "rate limit exceeded"}
	case code >= 500:
		return &errs.Error{Type: errs.ErrorTypeServerError, Code: code, Message: "server error"}
	default:
		return &errs.Error{Type: errs.ErrorTypeUnknown, Code: code, Message: fmt.Sprintf("unexpected status code: %d", code)}
	}
}

func finalURL(res *resty.Response) *url.URL {
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		return res.RawResponse.Request.URL
	}
	if res.Request != nil {
		u, _ := url.Parse(res.Request.URL)
		return u
	}
	return nil
}

// looksSignedOut reports whether an HTML body is a sign-in form rather than
// an authenticated page.
func looksSignedOut(body []byte) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}

	if doc.Find("input[name='Password'], input[type='password']").Length() > 0 {
		return true
	}

	signIn := false
	doc.Find("button, input[type='submit'], a.btn").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			text = sel.AttrOr("value", "")
		}
		if strings.EqualFold(text, "Sign In") || strings.EqualFold(text, "Log In") {
			signIn = true
			return false
		}
		return true
	})
	return signIn
}

func preview(body []byte) string {
	if len(body) > 200 {
		return string(body[:200]) + "..."
	}
	return string(body)
}
