package crawler

import (
	"context"
	"fmt"
	"iter"
	"time"

	errs "tcgsync/pkg/errors"
	"tcgsync/pkg/logger"
	"tcgsync/pkg/models"
	"tcgsync/pkg/ratelimit"
	"tcgsync/pkg/retry"
	"tcgsync/pkg/session"
	"tcgsync/pkg/tcgplayer"
)

// Source fetches listing pages; *session.Session implements it
type Source interface {
	GetHTML(ctx context.Context, url string) (*session.Page, error)
	PortalURL() string
}

// Request selects the orders to list. From and To are inclusive civil dates.
type Request struct {
	From      time.Time
	To        time.Time
	Filter    models.OrderTypeFilter
	PageSize  int
	StartPage int
	// SortedDesc allows stopping at the first page whose rows are all older
	// than From. Without it every page is scanned.
	SortedDesc bool
	// OnPage is called after every row of a page has been yielded
	OnPage func(page, rows, matched int)
}

// Options configures a Crawler
type Options struct {
	Limiter ratelimit.Limiter
	Retry   *retry.Config
	Logger  logger.Logger
}

// Crawler walks the paginated order listing
type Crawler struct {
	src     Source
	limiter ratelimit.Limiter
	retry   *retry.Config
	log     logger.Logger
}

func New(src Source, opts Options) *Crawler {
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}

	retryCfg := retry.DefaultConfig()
	if opts.Retry != nil {
		c := *opts.Retry
		retryCfg = &c
	}
	// A truncated page parses badly; fetch it again before giving up
	retryCfg.RetryIf = func(err error) bool {
		return retry.DefaultRetryIf(err) || errs.IsParsing(err)
	}

	return &Crawler{
		src:     src,
		limiter: limiter,
		retry:   retryCfg,
		log:     logger.OrDefault(opts.Logger).WithField("component", "crawler"),
	}
}

func (r *Request) normalize() error {
	if r.From.IsZero() || r.To.IsZero() {
		return errs.New(errs.ErrorTypeValidation, "date range is required")
	}
	r.From = models.CivilDate(r.From)
	r.To = models.CivilDate(r.To)
	if r.From.After(r.To) {
		return errs.New(errs.ErrorTypeValidation, fmt.Sprintf("from date %s is after to date %s",
			r.From.Format(models.ISODateLayout), r.To.Format(models.ISODateLayout)))
	}
	if r.Filter == "" {
		r.Filter = models.FilterNormal
	}
	if r.PageSize <= 0 || r.PageSize > tcgplayer.MaxPageSize {
		r.PageSize = tcgplayer.DefaultPageSize
	}
	if r.StartPage < 1 {
		r.StartPage = 1
	}
	return nil
}

// Crawl lazily yields the summaries matching req, page by page. The sequence
// stops after the first error; page failures are *errors.CrawlError values
// carrying the last fully yielded page.
func (c *Crawler) Crawl(ctx context.Context, req Request) iter.Seq2[models.OrderSummary, error] {
	return func(yield func(models.OrderSummary, error) bool) {
		if err := req.normalize(); err != nil {
			yield(models.OrderSummary{}, err)
			return
		}

		seen := make(map[string]bool)
		lastCompleted := req.StartPage - 1

		for page := req.StartPage; ; page++ {
			if err := ctx.Err(); err != nil {
				yield(models.OrderSummary{}, &errs.CrawlError{LastCompletedPage: lastCompleted, Err: err})
				return
			}

			start := time.Now()
			listing, err := c.fetchPage(ctx, req, page)
			if err != nil {
				c.log.ErrorWithFields("Listing page failed", map[string]interface{}{
					"page":  page,
					"error": err.Error(),
				})
				yield(models.OrderSummary{}, &errs.CrawlError{LastCompletedPage: lastCompleted, Err: err})
				return
			}

			matched := 0
			allOlder := len(listing.summaries) > 0
			for _, s := range listing.summaries {
				if !s.OrderDate.Before(req.From) {
					allOlder = false
				}
				if s.OrderDate.Before(req.From) || s.OrderDate.After(req.To) || !req.Filter.Matches(s.OrderType) {
					continue
				}
				if seen[s.OrderID] {
					continue
				}
				seen[s.OrderID] = true
				matched++
				if !yield(s, nil) {
					return
				}
			}

			lastCompleted = page
			if listing.skipped > 0 {
				c.log.WarnWithFields("Skipped listing rows without an order number", map[string]interface{}{
					"page":    page,
					"skipped": listing.skipped,
				})
			}
			logger.LogCrawlPage(c.log, page, listing.rows, matched, time.Since(start))
			if req.OnPage != nil {
				req.OnPage(page, listing.rows, matched)
			}

			// The pager decides when present; the portal may serve fewer rows
			// than asked for and still have more pages.
			switch {
			case len(listing.summaries) == 0:
				return
			case listing.pager && !listing.hasNext:
				return
			case !listing.pager && listing.rows < req.PageSize:
				return
			case req.SortedDesc && allOlder:
				c.log.DebugWithFields("Reached orders older than the range", map[string]interface{}{"page": page})
				return
			}
		}
	}
}

func (c *Crawler) fetchPage(ctx context.Context, req Request, page int) (*listingPage, error) {
	url := tcgplayer.ListingURL(c.src.PortalURL(), tcgplayer.ListingQuery{
		From:   req.From,
		To:     req.To,
		Filter: req.Filter,
		Page:   page,
		Size:   req.PageSize,
	})

	return retry.DoWithResult(ctx, func(ctx context.Context) (*listingPage, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		p, err := c.src.GetHTML(ctx, url)
		if err != nil {
			return nil, err
		}
		return parseListing(p)
	}, c.retry)
}
