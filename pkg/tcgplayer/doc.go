// Package tcgplayer holds the seller portal and order API endpoints, the
// listing page selectors, and the raw JSON shapes returned by the order
// management API.
//
// Nothing here performs I/O. The session, crawler and fetcher packages build
// on these definitions.
package tcgplayer
