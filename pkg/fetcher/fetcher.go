package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	errs "tcgsync/pkg/errors"
	"tcgsync/pkg/logger"
	"tcgsync/pkg/models"
	"tcgsync/pkg/ratelimit"
	"tcgsync/pkg/retry"
	"tcgsync/pkg/tcgplayer"
)

// Source performs authenticated JSON requests; *session.Session implements it
type Source interface {
	GetJSON(ctx context.Context, url string, v any) error
	APIURL() string
}

// Options configures a Fetcher
type Options struct {
	Limiter ratelimit.Limiter
	Retry   *retry.Config
	Logger  logger.Logger
}

// Fetcher retrieves and normalizes single order details
type Fetcher struct {
	src     Source
	limiter ratelimit.Limiter
	retry   *retry.Config
	log     logger.Logger
}

func New(src Source, opts Options) *Fetcher {
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	retryCfg := opts.Retry
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	return &Fetcher{
		src:     src,
		limiter: limiter,
		retry:   retryCfg,
		log:     logger.OrDefault(opts.Logger).WithField("component", "fetcher"),
	}
}

// Fetch returns the normalized detail of one order. Auth, not-found and parse
// failures are returned without retrying.
func (f *Fetcher) Fetch(ctx context.Context, orderID string) (*models.OrderRecord, error) {
	url := tcgplayer.OrderDetailURL(f.src.APIURL(), orderID)
	start := time.Now()

	raw, err := retry.DoWithResult(ctx, func(ctx context.Context) (json.RawMessage, error) {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		var body json.RawMessage
		if err := f.src.GetJSON(ctx, url, &body); err != nil {
			return nil, err
		}
		return body, nil
	}, f.retry)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, errs.NewNotFoundError(orderID)
		}
		return nil, err
	}

	record, err := Normalize(raw)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, errs.NewNotFoundError(orderID)
		}
		return nil, fmt.Errorf("order %s: %w", orderID, err)
	}
	if !strings.EqualFold(record.OrderID, orderID) {
		return nil, errs.NewParseError(fmt.Sprintf("requested order %s but received %s", orderID, record.OrderID), nil)
	}

	f.log.DebugWithFields("Order detail fetched", map[string]interface{}{
		"order_id":    orderID,
		"line_items":  len(record.LineItems),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return record, nil
}
