package cli

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"

	"github.com/smessmer/codaio-exporter/internal/export"
)

// prettyReporter renders live progress bars on stderr, one tracker per
// task (documents during export, tables during reimport).
type prettyReporter struct {
	pw progress.Writer
}

// newPrettyReporter creates a reporter and starts rendering in the
// background. Call Stop when the work is finished.
func newPrettyReporter() *prettyReporter {
	pw := progress.NewWriter()
	pw.SetOutputWriter(os.Stderr)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(25)
	pw.SetMessageWidth(40)
	pw.SetSortBy(progress.SortByMessage)
	pw.SetStyle(progress.StyleDefault)
	pw.SetTrackerPosition(progress.PositionRight)
	pw.SetUpdateFrequency(100 * time.Millisecond)

	go pw.Render()
	return &prettyReporter{pw: pw}
}

// TaskStarted implements export.Reporter.
func (r *prettyReporter) TaskStarted(name string) export.Tracker {
	tracker := &progress.Tracker{Message: name}
	r.pw.AppendTracker(tracker)
	return &prettyTracker{tracker: tracker}
}

// Stop ends rendering and waits for the final frame so the shell prompt
// doesn't interleave with the last progress line.
func (r *prettyReporter) Stop() {
	r.pw.Stop()
	for r.pw.IsRenderInProgress() {
		time.Sleep(5 * time.Millisecond)
	}
}

// prettyTracker adapts a go-pretty tracker to the export.Tracker interface.
// Totals are discovered incrementally, so the running total is kept here
// and pushed via UpdateTotal.
type prettyTracker struct {
	tracker *progress.Tracker
	total   atomic.Int64
}

// AddTotal implements export.Tracker.
func (t *prettyTracker) AddTotal(delta int64) {
	t.tracker.UpdateTotal(t.total.Add(delta))
}

// AddDone implements export.Tracker.
func (t *prettyTracker) AddDone(delta int64) {
	t.tracker.Increment(delta)
}

// Done implements export.Tracker.
func (t *prettyTracker) Done() {
	t.tracker.MarkAsDone()
}

// newReporter picks the progress implementation for the current output
// mode: live bars for humans, nothing when --json output must stay clean.
// The returned stop function is a no-op for the silent reporter.
func newReporter() (export.Reporter, func()) {
	if IsJSONOutput() {
		return export.NopReporter{}, func() {}
	}
	r := newPrettyReporter()
	return r, r.Stop
}
