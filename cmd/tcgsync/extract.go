package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tcgsync/pkg/auth"
	"tcgsync/pkg/cache"
	"tcgsync/pkg/checkpoint"
	"tcgsync/pkg/config"
	"tcgsync/pkg/crawler"
	"tcgsync/pkg/fetcher"
	"tcgsync/pkg/logger"
	"tcgsync/pkg/models"
	"tcgsync/pkg/ratelimit"
	"tcgsync/pkg/retry"
	"tcgsync/pkg/runlock"
	"tcgsync/pkg/session"
	"tcgsync/pkg/storage"
	"tcgsync/pkg/syncer"
	"tcgsync/pkg/ui"
)

var (
	fromDate     string
	toDate       string
	orderType    string
	storageType  string
	bucket       string
	prefix       string
	endpoint     string
	storagePath  string
	skipExisting bool
	checkMD5     bool
	cookiesFile  string
	accountName  string
	concurrency  int
	rateLimit    int
	maxRetries   int
	resumeRun    bool
	forceRestart bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract orders for a date range into storage",
	Long: `Extract lists the seller portal orders placed between --from and --to
(inclusive), fetches the detail of each one and stores it as <order id>.json.

Write policy:
  --skip-existing  orders already in storage are not fetched again
  --check-md5      orders are fetched and only rewritten when their content changed
Without either flag every listed order is fetched and written.

A session is taken from, in order: --cookies, the stored account named by
--account, TCGSYNC_COOKIE_HEADER, then the most recently imported account.`,
	Example: `  # Normal orders of December into ./orders
  tcgsync extract --from 12/01/2025 --to 12/31/2025

  # All orders into S3, only rewriting changed ones
  tcgsync extract --from 2025-12-01 --to 2025-12-31 --order-type all \
    --storage-type s3 --bucket my-orders --check-md5

  # Continue an interrupted extraction
  tcgsync extract --from 2025-12-01 --to 2025-12-31 --resume`,
	Args: cobra.NoArgs,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	f := extractCmd.Flags()
	f.StringVar(&fromDate, "from", "", "first order date, MM/DD/YYYY or YYYY-MM-DD")
	f.StringVar(&toDate, "to", "", "last order date, MM/DD/YYYY or YYYY-MM-DD")
	f.StringVar(&orderType, "order-type", "", "Normal, Direct or All (default Normal)")
	f.StringVar(&storageType, "storage-type", "", "local or s3 (default local)")
	f.StringVar(&bucket, "bucket", "", "bucket name for s3 storage")
	f.StringVar(&prefix, "prefix", "", "key prefix inside the bucket")
	f.StringVar(&endpoint, "endpoint", "", "S3-compatible endpoint (default AWS)")
	f.StringVar(&storagePath, "storage-path", "", "directory for local storage (default ./orders)")
	f.BoolVar(&skipExisting, "skip-existing", false, "do not fetch orders that are already stored")
	f.BoolVar(&checkMD5, "check-md5", false, "rewrite stored orders only when their content changed")
	f.StringVar(&cookiesFile, "cookies", "", "cookie export file (JSON or Netscape format)")
	f.StringVarP(&accountName, "account", "a", "", "use a stored account")
	f.IntVar(&concurrency, "concurrency", 0, "orders fetched in parallel (default 1)")
	f.IntVar(&rateLimit, "rate-limit", 0, "requests per minute")
	f.IntVar(&maxRetries, "max-retries", 0, "attempts per request")
	f.BoolVar(&resumeRun, "resume", false, "resume from the last checkpoint of this extraction")
	f.BoolVar(&forceRestart, "force-restart", false, "discard an existing checkpoint and start over")
	extractCmd.MarkFlagsMutuallyExclusive("resume", "force-restart")
}

func extractFlags(cmd *cobra.Command) map[string]interface{} {
	flags := map[string]interface{}{
		"from":         fromDate,
		"to":           toDate,
		"order-type":   orderType,
		"storage-type": storageType,
		"bucket":       bucket,
		"prefix":       prefix,
		"endpoint":     endpoint,
		"storage-path": storagePath,
		"cookies":      cookiesFile,
		"account":      accountName,
		"concurrency":  concurrency,
		"rate-limit":   rateLimit,
		"max-retries":  maxRetries,
	}
	// booleans only override the config when given explicitly
	if cmd.Flags().Changed("skip-existing") {
		flags["skip-existing"] = skipExisting
	}
	if cmd.Flags().Changed("check-md5") {
		flags["check-md5"] = checkMD5
	}
	return flags
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(extractFlags(cmd))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.GetLogger().WithField("command", "extract")

	if cfg.Crawl.From == "" || cfg.Crawl.To == "" {
		return errors.New("--from and --to are required")
	}
	from, err := models.ParseDate(cfg.Crawl.From)
	if err != nil {
		return err
	}
	to, err := models.ParseDate(cfg.Crawl.To)
	if err != nil {
		return err
	}
	filter, err := models.ParseOrderTypeFilter(cfg.Crawl.OrderType)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.Lock.Enabled {
		release, err := acquireRunLock(ctx, cfg, "extract:"+store.String(), log)
		if err != nil {
			return err
		}
		defer release()
	}

	ui.PrintInfo("Range", fmt.Sprintf("%s to %s", from.Format(models.ISODateLayout), to.Format(models.ISODateLayout)))
	ui.PrintInfo("Order type", string(filter))
	ui.PrintInfo("Storage", store.String())

	sess, err := openSession(ctx, cfg, log)
	if err != nil {
		return err
	}
	ui.PrintInfo("Account", sess.Account())

	limiter := ratelimit.FromConfig(cfg.RateLimit)
	retryCfg := retry.FromConfig(cfg.Retry, log)

	cr := crawler.New(sess, crawler.Options{Limiter: limiter, Retry: retryCfg, Logger: log})
	fe := fetcher.New(sess, fetcher.Options{Limiter: limiter, Retry: retryCfg, Logger: log})

	display := ui.NewProgressDisplay(ui.Output, "extract", verbose)
	coord := syncer.New(fe, store, syncer.Options{
		SkipExisting:     cfg.Sync.SkipExisting,
		CheckMD5:         cfg.Sync.CheckMD5,
		FailureThreshold: cfg.Sync.FailureThreshold,
		Concurrency:      cfg.Sync.Concurrency,
		Logger:           log,
		OnResult:         display.OnResult,
	})

	req := crawler.Request{
		From:       from,
		To:         to,
		Filter:     filter,
		PageSize:   cfg.Crawl.PageSize,
		SortedDesc: cfg.Crawl.SortedDesc,
		StartPage:  1,
	}

	var tracker *progressTracker
	if cfg.Checkpoint.Enabled {
		tracker, err = openCheckpoint(cfg, checkpoint.Key{From: from, To: to, Filter: filter, Target: store.String()}, display)
		if err != nil {
			return err
		}
		req.StartPage = tracker.cp.NextPage()
	}

	req.OnPage = func(page, rows, matched int) {
		display.PageScanned(page, rows, matched)
		if tracker != nil {
			tracker.pageDone(page, matched, coord.Snapshot(), log)
		}
	}

	ui.PrintHighlight("[EXTRACTING ORDERS]")
	report, runErr := coord.Run(ctx, cr.Crawl(ctx, req))
	display.Complete(report)
	ui.RenderReport(ui.Output, report)

	notifier := ui.NewNotifier(ui.Output, notifications)
	if runErr != nil {
		log.WithError(runErr).Error("Extraction failed")
		if tracker != nil {
			ui.PrintWarning("Checkpoint kept; rerun with --resume to continue", tracker.mgr.Path())
		}
		notifier.SendError("tcgsync extraction failed", runErr.Error())
		return runErr
	}

	if tracker != nil {
		if err := tracker.mgr.Delete(); err != nil {
			log.WithError(err).Warn("Failed to delete checkpoint")
		}
	}
	notifier.SendSuccess("tcgsync extraction complete", report.Summary())
	return nil
}

// openStorage builds the configured backend with the optional hash cache in front
func openStorage(ctx context.Context, cfg *config.Config, log logger.Logger) (storage.Backend, func(), error) {
	store, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}

	c, err := cache.New(cfg.Cache)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open cache: %w", err)
	}
	if c == nil {
		return store, func() {}, nil
	}
	if err := c.Ping(ctx); err != nil {
		log.WithError(err).Warn("Hash cache unreachable; continuing without it")
		c.Close()
		return store, func() {}, nil
	}
	return storage.WithCache(store, c, cfg.Cache.TTL, log), func() { c.Close() }, nil
}

func acquireRunLock(ctx context.Context, cfg *config.Config, name string, log logger.Logger) (func(), error) {
	url := cfg.Lock.RedisURL
	if url == "" {
		url = cfg.Cache.RedisURL
	}
	locker, err := runlock.New(url, cfg.Lock.TTL, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect run lock: %w", err)
	}
	lock, err := locker.Acquire(ctx, name)
	if err != nil {
		locker.Close()
		if errors.Is(err, runlock.ErrHeld) {
			return nil, fmt.Errorf("another extraction is writing to the same storage: %w", err)
		}
		return nil, err
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			log.WithError(err).Warn("Failed to release run lock")
		}
		locker.Close()
	}, nil
}

func openSession(ctx context.Context, cfg *config.Config, log logger.Logger) (*session.Session, error) {
	opts := session.OptionsFromConfig(cfg.Session)
	opts.Retry = retry.FromConfig(cfg.Retry, log)
	opts.Logger = log

	if opts.CookieHeader == "" && opts.CookiesFile == "" {
		creds, err := auth.NewManager()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize credential manager: %w", err)
		}
		opts.Credentials = creds
	}

	sess, err := session.NewProvider(opts).Get(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			ui.PrintError("No seller session found")
			fmt.Fprintln(ui.Output, "\nImport the cookies of a signed-in browser session first:")
			fmt.Fprintln(ui.Output, "  tcgsync auth import --cookies cookies.json")
		}
		return nil, err
	}
	return sess, nil
}

// progressTracker saves the checkpoint after every fully processed listing page
type progressTracker struct {
	mgr  *checkpoint.Manager
	cp   *checkpoint.Checkpoint
	base checkpoint.Counters
	seen int
}

func openCheckpoint(cfg *config.Config, key checkpoint.Key, display *ui.ProgressDisplay) (*progressTracker, error) {
	mgr, err := checkpoint.NewManager(cfg.Checkpoint.Dir, key)
	if err != nil {
		return nil, err
	}

	if forceRestart {
		if err := mgr.BackupCheckpoint(); err != nil {
			return nil, err
		}
		if err := mgr.Delete(); err != nil {
			return nil, err
		}
	}

	t := &progressTracker{mgr: mgr}
	if resumeRun {
		cp, err := mgr.Load()
		if err != nil {
			return nil, err
		}
		if cp != nil {
			t.cp = cp
			t.base = cp.Counters
			t.seen = cp.OrdersSeen
			display.Resume(cp.LastCompletedPage, cp.OrdersSeen)
			return t, nil
		}
		ui.PrintWarning("No checkpoint for this extraction; starting from page 1")
	} else if mgr.Exists() {
		ui.PrintWarning("Replacing the checkpoint of an earlier run (use --resume to continue it)", mgr.Path())
	}

	cp, err := mgr.Create()
	if err != nil {
		return nil, err
	}
	t.cp = cp
	return t, nil
}

func (t *progressTracker) pageDone(page, matched int, r syncer.Report, log logger.Logger) {
	t.seen += matched
	run := checkpoint.Counters{
		Written:          r.Written,
		Overwritten:      r.OverwrittenDifferent,
		SkippedExisting:  r.SkippedExisting,
		SkippedIdentical: r.SkippedIdentical,
		Failed:           r.Failed,
	}
	if err := t.mgr.UpdateProgress(t.cp, page, t.seen, t.base, run); err != nil {
		log.WithError(err).Warn("Failed to save checkpoint")
	}
}
