// Package workerpool runs keyed jobs on a fixed number of goroutines.
//
// At most one job per key is queued or running at a time; Submit returns
// ErrDuplicate for a second one. Every processed job yields a Result, so
// callers drain Results until Stop closes it.
package workerpool
