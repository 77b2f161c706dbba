package syncer

import (
	"fmt"
	"time"
)

// Result is the outcome of syncing one order
type Result int

const (
	Written Result = iota
	SkippedExisting
	OverwrittenDifferent
	SkippedIdentical
)

func (r Result) String() string {
	switch r {
	case Written:
		return "written"
	case SkippedExisting:
		return "skipped_existing"
	case OverwrittenDifferent:
		return "overwritten_different"
	case SkippedIdentical:
		return "skipped_identical"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Stage names where a per-order failure happened
type Stage string

const (
	StageCheck Stage = "check"
	StageFetch Stage = "fetch"
	StageWrite Stage = "write"
)

// StageError attaches the failing stage to an error returned by Sync
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return string(e.Stage) + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

// Failure is one order that could not be synced
type Failure struct {
	OrderID string
	Stage   Stage
	Err     error
}

// Report accumulates the results of a run
type Report struct {
	Written              int
	OverwrittenDifferent int
	SkippedExisting      int
	SkippedIdentical     int
	Failed               int
	Failures             []Failure
	Started              time.Time
	Finished             time.Time
}

// Processed counts every order that reached a result or failed
func (r *Report) Processed() int {
	return r.Written + r.OverwrittenDifferent + r.SkippedExisting + r.SkippedIdentical + r.Failed
}

func (r *Report) Duration() time.Duration {
	if r.Finished.IsZero() {
		return time.Since(r.Started)
	}
	return r.Finished.Sub(r.Started)
}

// Summary is a one-line count of every result
func (r *Report) Summary() string {
	return fmt.Sprintf("written=%d overwritten=%d skipped_existing=%d skipped_identical=%d failed=%d",
		r.Written, r.OverwrittenDifferent, r.SkippedExisting, r.SkippedIdentical, r.Failed)
}

func (r *Report) add(res Result) {
	switch res {
	case Written:
		r.Written++
	case OverwrittenDifferent:
		r.OverwrittenDifferent++
	case SkippedExisting:
		r.SkippedExisting++
	case SkippedIdentical:
		r.SkippedIdentical++
	}
}

// snapshot copies the counters and failures
func (r *Report) snapshot() Report {
	cp := *r
	cp.Failures = append([]Failure(nil), r.Failures...)
	return cp
}
