package ui

import (
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"tcgsync/pkg/storage"
	"tcgsync/pkg/syncer"
)

// NewTable returns a rounded table mirrored to w
func NewTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

// RenderReport prints the per-result counts of a sync run and, when any
// order failed, a second table listing them.
func RenderReport(w io.Writer, r *syncer.Report) {
	t := NewTable(w)
	t.SetTitle("Sync summary")
	t.AppendHeader(table.Row{"Result", "Orders"})
	t.AppendRows([]table.Row{
		{syncer.Written.String(), r.Written},
		{syncer.OverwrittenDifferent.String(), r.OverwrittenDifferent},
		{syncer.SkippedExisting.String(), r.SkippedExisting},
		{syncer.SkippedIdentical.String(), r.SkippedIdentical},
		{"failed", r.Failed},
	})
	t.AppendFooter(table.Row{"total", r.Processed()})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight}})
	t.Render()

	if len(r.Failures) > 0 {
		RenderFailures(w, r.Failures)
	}
}

func RenderFailures(w io.Writer, failures []syncer.Failure) {
	t := NewTable(w)
	t.SetTitle("Failed orders")
	t.AppendHeader(table.Row{"Order", "Stage", "Error"})
	for _, f := range failures {
		t.AppendRow(table.Row{f.OrderID, string(f.Stage), truncate(f.Err.Error(), 80)})
	}
	t.Render()
}

// KeyHash is one row of a storage listing
type KeyHash struct {
	Key  string
	Hash string
}

func RenderKeys(w io.Writer, location string, rows []KeyHash) {
	t := NewTable(w)
	t.SetTitle(location)
	t.AppendHeader(table.Row{"#", "Key", "MD5"})
	for i, r := range rows {
		t.AppendRow(table.Row{i + 1, r.Key, r.Hash})
	}
	t.AppendFooter(table.Row{"", "objects", len(rows)})
	t.Render()
}

// RenderCopyReport prints the outcome of a bulk copy between backends
func RenderCopyReport(w io.Writer, src, dst string, r *storage.CopyReport) {
	t := NewTable(w)
	t.SetTitle(src + " → " + dst)
	t.AppendHeader(table.Row{"Copied", "Skipped", "Failed"})
	t.AppendRow(table.Row{r.Copied, r.Skipped, len(r.Failures)})
	t.Render()

	if len(r.Failures) == 0 {
		return
	}
	ft := NewTable(w)
	ft.AppendHeader(table.Row{"Key", "Error"})
	for _, f := range r.Failures {
		ft.AppendRow(table.Row{f.Key, truncate(f.Err.Error(), 80)})
	}
	ft.Render()
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
