// Package fetcher retrieves single order details from the order management
// API and normalizes them into models.OrderRecord values.
//
// Normalize is pure and can be used on saved API bodies:
//
//	record, err := fetcher.Normalize(body)
//	if errors.IsParsing(err) {
//	    // shape changed beyond what Normalize tolerates
//	}
package fetcher
