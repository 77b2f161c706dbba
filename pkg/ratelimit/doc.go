// Package ratelimit paces requests so a long crawl does not trip the seller
// portal's throttling.
//
// TokenBucket refills continuously and allows short bursts. SlidingWindow
// caps requests inside a moving window and is used for the order API, which
// enforces a per-minute quota. Both implement Limiter:
//
//	limiter := ratelimit.FromConfig(cfg.RateLimit)
//	if err := limiter.Wait(ctx); err != nil {
//		return err // cancelled
//	}
package ratelimit
