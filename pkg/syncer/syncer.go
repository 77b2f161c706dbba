package syncer

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	"tcgsync/internal/workerpool"
	errs "tcgsync/pkg/errors"
	"tcgsync/pkg/logger"
	"tcgsync/pkg/models"
	"tcgsync/pkg/storage"
)

// Fetcher returns the normalized detail of one order
type Fetcher interface {
	Fetch(ctx context.Context, orderID string) (*models.OrderRecord, error)
}

// Options configures a Coordinator. When both SkipExisting and CheckMD5 are
// set, SkipExisting is checked first, so hashing only applies to new keys.
type Options struct {
	SkipExisting bool
	CheckMD5     bool
	// FailureThreshold consecutive storage failures before any successful
	// write abort the run; 0 disables the check.
	FailureThreshold int
	Concurrency      int
	Logger           logger.Logger
	// OnResult is called once per processed order, from a single goroutine
	OnResult func(summary models.OrderSummary, result Result, err error)
}

// Coordinator drives orders from the listing into storage
type Coordinator struct {
	fetcher Fetcher
	store   storage.Backend
	opts    Options
	log     logger.Logger

	mu                 sync.Mutex
	report             *Report
	storageFailures    int
	hasSuccessfulWrite bool
}

func New(f Fetcher, store storage.Backend, opts Options) *Coordinator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	c := &Coordinator{
		fetcher: f,
		store:   store,
		opts:    opts,
		log:     logger.OrDefault(opts.Logger).WithField("component", "syncer"),
	}
	if opts.SkipExisting && opts.CheckMD5 {
		c.log.Warn("Both skip_existing and check_md5 are set; existing orders are skipped without hashing")
	}
	return c
}

// Sync stores one order according to the coordinator's mode. Errors are
// *StageError values.
func (c *Coordinator) Sync(ctx context.Context, summary models.OrderSummary) (Result, error) {
	key := models.KeyFor(summary.OrderID)

	if c.opts.SkipExisting {
		exists, err := c.store.Exists(ctx, key)
		if err != nil {
			return 0, &StageError{Stage: StageCheck, Err: err}
		}
		if exists {
			return SkippedExisting, nil
		}
	}

	record, err := c.fetcher.Fetch(ctx, summary.OrderID)
	if err != nil {
		return 0, &StageError{Stage: StageFetch, Err: err}
	}
	data, err := models.Canonical(record)
	if err != nil {
		return 0, &StageError{Stage: StageFetch, Err: errs.NewParseError("could not encode order record", err)}
	}

	result := Written
	if c.opts.CheckMD5 {
		stored, err := c.store.HashOf(ctx, key)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			return 0, &StageError{Stage: StageCheck, Err: err}
		case stored == models.ContentHash(data):
			return SkippedIdentical, nil
		default:
			result = OverwrittenDifferent
		}
	}

	if err := c.store.Write(ctx, key, data); err != nil {
		return 0, &StageError{Stage: StageWrite, Err: err}
	}
	return result, nil
}

// Snapshot returns a copy of the report of the current or last run
func (c *Coordinator) Snapshot() Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.report == nil {
		return Report{}
	}
	return c.report.snapshot()
}

// Run syncs every summary of the sequence. Per-order failures are collected
// in the report; an error from the sequence, an auth failure, cancellation
// or a storage outage stops the run and is returned with the partial report.
func (c *Coordinator) Run(ctx context.Context, summaries iter.Seq2[models.OrderSummary, error]) (*Report, error) {
	c.mu.Lock()
	c.report = &Report{Started: time.Now()}
	c.storageFailures = 0
	c.hasSuccessfulWrite = false
	c.mu.Unlock()

	logger.LogComponentStart(c.log, "syncer", map[string]interface{}{
		"skip_existing": c.opts.SkipExisting,
		"check_md5":     c.opts.CheckMD5,
		"concurrency":   c.opts.Concurrency,
	})

	var err error
	if c.opts.Concurrency > 1 {
		err = c.runConcurrent(ctx, summaries)
	} else {
		err = c.runSequential(ctx, summaries)
	}

	c.mu.Lock()
	c.report.Finished = time.Now()
	report := c.report.snapshot()
	c.mu.Unlock()

	reason := "completed"
	if err != nil {
		reason = err.Error()
	}
	logger.LogMetrics(c.log, "sync", map[string]interface{}{
		"written":           report.Written,
		"overwritten":       report.OverwrittenDifferent,
		"skipped_existing":  report.SkippedExisting,
		"skipped_identical": report.SkippedIdentical,
		"failed":            report.Failed,
		"duration":          report.Duration(),
	})
	logger.LogComponentStop(c.log, "syncer", reason)

	return &report, err
}

func (c *Coordinator) runSequential(ctx context.Context, summaries iter.Seq2[models.OrderSummary, error]) error {
	for summary, err := range summaries {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		result, err := c.Sync(ctx, summary)
		if fatal := c.record(ctx, summary, result, err); fatal != nil {
			return fatal
		}
	}
	return ctx.Err()
}

type outcome struct {
	summary models.OrderSummary
	result  Result
	err     error
}

func (c *Coordinator) runConcurrent(ctx context.Context, summaries iter.Seq2[models.OrderSummary, error]) error {
	pool := workerpool.New[models.OrderSummary, outcome](ctx, c.opts.Concurrency,
		func(ctx context.Context, s models.OrderSummary) outcome {
			result, err := c.Sync(ctx, s)
			return outcome{summary: s, result: result, err: err}
		}, nil, c.log)
	pool.Start()

	var (
		fatalMu sync.Mutex
		fatal   error
	)
	setFatal := func(err error) {
		fatalMu.Lock()
		defer fatalMu.Unlock()
		if fatal == nil {
			fatal = err
			pool.Cancel()
		}
	}
	getFatal := func() error {
		fatalMu.Lock()
		defer fatalMu.Unlock()
		return fatal
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range pool.Results() {
			if getFatal() != nil {
				continue
			}
			if err := c.record(ctx, r.Value.summary, r.Value.result, r.Value.err); err != nil {
				setFatal(err)
			}
		}
	}()

	for summary, err := range summaries {
		if err != nil {
			setFatal(err)
			break
		}
		if getFatal() != nil {
			break
		}
		if err := pool.Submit(summary.OrderID, summary); err != nil {
			if errors.Is(err, workerpool.ErrDuplicate) {
				c.log.DebugWithFields("Order already in flight", map[string]interface{}{"order_id": summary.OrderID})
				continue
			}
			break
		}
	}

	pool.Stop()
	<-done

	if err := getFatal(); err != nil {
		return err
	}
	return ctx.Err()
}

// record adds one outcome to the report and returns a non-nil error when
// the run must stop. Only the run's own context counts as cancellation; a
// request timeout inside a fetch is an ordinary per-order failure.
func (c *Coordinator) record(ctx context.Context, summary models.OrderSummary, result Result, err error) error {
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	fatal := c.tally(summary, result, err)
	if c.opts.OnResult != nil {
		c.opts.OnResult(summary, result, err)
	}
	return fatal
}

func (c *Coordinator) tally(summary models.OrderSummary, result Result, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.report.add(result)
		if result == Written || result == OverwrittenDifferent {
			c.storageFailures = 0
			c.hasSuccessfulWrite = true
		}
		logger.LogSyncResult(c.log, summary.OrderID, result.String(), nil)
		return nil
	}

	stage := StageFetch
	var se *StageError
	if errors.As(err, &se) {
		stage = se.Stage
	}
	c.report.Failed++
	c.report.Failures = append(c.report.Failures, Failure{OrderID: summary.OrderID, Stage: stage, Err: err})
	logger.LogSyncResult(c.log.WithField("stage", string(stage)), summary.OrderID, "", err)

	if errs.IsAuth(err) {
		return err
	}
	if errs.IsStorage(err) {
		c.storageFailures++
		if c.opts.FailureThreshold > 0 && !c.hasSuccessfulWrite && c.storageFailures >= c.opts.FailureThreshold {
			return errs.Wrap(errs.ErrorTypeStorage, "storage backend appears unavailable", err)
		}
	}
	return nil
}
