package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"tcgsync/pkg/models"
	"tcgsync/pkg/syncer"
)

// ProgressDisplay renders a single updating status line for a sync run
type ProgressDisplay struct {
	mu        sync.Mutex
	out       io.Writer
	label     string
	startTime time.Time
	isDebug   bool

	page     int
	listed   int
	stored   int
	skipped  int
	failed   int
	lastID   string
	baseline int
}

// NewProgressDisplay creates a display writing to w. In debug mode every
// order gets its own line instead of the rewriting status line.
func NewProgressDisplay(w io.Writer, label string, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:       w,
		label:     label,
		startTime: time.Now(),
		isDebug:   debug,
	}
}

// Resume seeds the counters from a checkpoint
func (p *ProgressDisplay) Resume(page, ordersSeen int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.page = page
	p.baseline = ordersSeen
	fmt.Fprintf(p.out, "%s Resuming after page %d (%d orders already seen)\n", Magenta("→"), page, ordersSeen)
}

// PageScanned matches crawler.Request.OnPage
func (p *ProgressDisplay) PageScanned(page, rows, matched int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.page = page
	p.listed += matched
	if p.isDebug {
		fmt.Fprintf(p.out, "%s Page %d: %d rows, %d in range\n", Magenta("→"), page, rows, matched)
		return
	}
	p.printProgress()
}

// OnResult matches syncer.Options.OnResult
func (p *ProgressDisplay) OnResult(summary models.OrderSummary, result syncer.Result, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastID = summary.OrderID
	switch {
	case err != nil:
		p.failed++
	case result == syncer.Written || result == syncer.OverwrittenDifferent:
		p.stored++
	default:
		p.skipped++
	}

	if !p.isDebug {
		p.printProgress()
		return
	}
	if err != nil {
		fmt.Fprintf(p.out, "%s %s %v\n", Red("✗"), summary.OrderID, err)
		return
	}
	fmt.Fprintf(p.out, "%s %s %s\n", Green("✓"), summary.OrderID, Dim(result.String()))
}

func (p *ProgressDisplay) printProgress() {
	elapsed := time.Since(p.startTime)
	processed := p.stored + p.skipped + p.failed

	line := fmt.Sprintf("%s page %d • %d listed • %d stored • %d skipped • %.1f/min",
		Cyan(p.label),
		p.page,
		p.listed,
		p.stored,
		p.skipped,
		rate(processed, elapsed),
	)
	if p.failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d failed", p.failed))
	}
	if p.lastID != "" {
		line += " • " + Dim(p.lastID)
	}

	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 120), line)
}

// RateLimitWarning shows a pause caused by the seller portal
func (p *ProgressDisplay) RateLimitWarning(waitTime time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\n%s Rate limited. Waiting %s...\n", Yellow("⚠"), formatDuration(waitTime))
}

// Complete prints the closing line of the run
func (p *ProgressDisplay) Complete(report *syncer.Report) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime)
	if report != nil && !report.Finished.IsZero() {
		elapsed = report.Duration()
	}
	mark := Green("✓")
	if p.failed > 0 {
		mark = Yellow("!")
	}

	fmt.Fprintf(p.out, "\n\n%s %s: %d orders processed in %s (%.1f/min)\n",
		mark,
		p.label,
		p.stored+p.skipped+p.failed,
		formatDuration(elapsed),
		rate(p.stored+p.skipped+p.failed, elapsed),
	)
	if p.baseline > 0 {
		fmt.Fprintf(p.out, "  %s %d orders were handled by the interrupted run\n", Dim("•"), p.baseline)
	}
}

func rate(n int, elapsed time.Duration) float64 {
	if elapsed.Minutes() <= 0 {
		return 0
	}
	return float64(n) / elapsed.Minutes()
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
