// Package retry runs portal and API calls again on transient failures.
//
// Backoff is exponential with jitter. When the configured strategy is an
// ErrorTypeBackoff the delay is picked from the error type of the failure,
// so a 429 from the order API waits much longer than a dropped connection.
// Auth, not-found and parsing errors are returned on the first attempt.
//
//	cfg := retry.FromConfig(appCfg.Retry, log)
//	html, err := retry.DoWithResult(ctx, func(ctx context.Context) ([]byte, error) {
//		return sess.GetHTML(ctx, url)
//	}, cfg)
package retry
