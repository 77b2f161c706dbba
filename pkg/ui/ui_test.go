package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tcgsync/pkg/models"
	"tcgsync/pkg/storage"
	"tcgsync/pkg/syncer"
)

func init() {
	SetColor(false)
}

func TestRenderReport(t *testing.T) {
	var buf bytes.Buffer
	RenderReport(&buf, &syncer.Report{
		Written:          3,
		SkippedIdentical: 2,
		Failed:           1,
		Failures: []syncer.Failure{
			{OrderID: "ABCD1234-5678AB-9ABCD", Stage: syncer.StageFetch, Err: errors.New("order not found")},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Sync summary")
	assert.Contains(t, out, "skipped_identical")
	assert.Contains(t, out, "Failed orders")
	assert.Contains(t, out, "ABCD1234-5678AB-9ABCD")
	assert.Contains(t, out, "order not found")
}

func TestRenderReportWithoutFailures(t *testing.T) {
	var buf bytes.Buffer
	RenderReport(&buf, &syncer.Report{Written: 1})
	assert.NotContains(t, buf.String(), "Failed orders")
}

func TestRenderKeysAndCopyReport(t *testing.T) {
	var buf bytes.Buffer
	RenderKeys(&buf, "local:/tmp/orders", []KeyHash{{Key: "A.json", Hash: "0cc175b9c0f1b6a831c399e269772661"}})
	RenderCopyReport(&buf, "s3://bucket/orders", "local:/tmp/orders", &storage.CopyReport{
		Copied:   1,
		Failures: []storage.CopyFailure{{Key: "B.json", Err: errors.New("access denied")}},
	})

	out := buf.String()
	assert.Contains(t, out, "A.json")
	assert.Contains(t, out, "0cc175b9c0f1b6a831c399e269772661")
	assert.Contains(t, out, "B.json")
	assert.Contains(t, out, "access denied")
}

func TestProgressDisplayDebugLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, "extract", true)

	p.PageScanned(1, 10, 4)
	p.OnResult(models.OrderSummary{OrderID: "A"}, syncer.Written, nil)
	p.OnResult(models.OrderSummary{OrderID: "B"}, syncer.SkippedExisting, nil)
	p.OnResult(models.OrderSummary{OrderID: "C"}, 0, errors.New("boom"))
	p.Complete(&syncer.Report{Started: time.Now().Add(-time.Minute), Finished: time.Now()})

	out := buf.String()
	assert.Contains(t, out, "Page 1: 10 rows, 4 in range")
	assert.Contains(t, out, "✓ A written")
	assert.Contains(t, out, "✓ B skipped_existing")
	assert.Contains(t, out, "✗ C boom")
	assert.Contains(t, out, "3 orders processed")
}

func TestProgressDisplayStatusLine(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, "extract", false)
	p.Resume(4, 2000)
	p.OnResult(models.OrderSummary{OrderID: "A"}, syncer.OverwrittenDifferent, nil)

	out := buf.String()
	assert.Contains(t, out, "Resuming after page 4")
	assert.Contains(t, out, "page 4 • 0 listed • 1 stored • 0 skipped")
}

type recordingSender struct {
	titles []string
	err    error
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func TestNotifier(t *testing.T) {
	var buf bytes.Buffer
	sender := &recordingSender{err: errors.New("no display")}
	n := NewNotifierWithSender(&buf, sender)

	n.SendSuccess("Sync complete", "5 orders written")
	n.SendError("Sync failed", "session expired")

	assert.Equal(t, []string{"Sync complete", "Sync failed"}, sender.titles)
	assert.Contains(t, buf.String(), "5 orders written")

	buf.Reset()
	NewNotifier(&buf, false).SendSuccess("quiet", "console only")
	assert.Contains(t, buf.String(), "console only")
}
