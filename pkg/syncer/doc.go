// Package syncer moves orders from the listing crawl into storage.
//
// For each order summary the Coordinator decides, from its mode, whether the
// detail must be fetched and whether the stored document must be replaced:
//
//	skip_existing  key exists            -> SkippedExisting, no fetch
//	check_md5      key exists, same hash -> SkippedIdentical, no write
//	check_md5      key exists, new hash  -> OverwrittenDifferent
//	any            key absent            -> Written
//
// Run keeps going past failures of single orders and stops on errors that
// affect every order: a failed crawl, a rejected session, cancellation or an
// unreachable storage backend.
package syncer
