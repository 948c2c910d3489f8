package export

// Reporter receives progress events during an export or reimport. The CLI
// plugs in a live terminal renderer; tests use recording implementations.
type Reporter interface {
	// TaskStarted begins tracking one unit of work that has its own
	// done/total counts, e.g. one document during export. The name is
	// what a UI displays next to the counts.
	TaskStarted(name string) Tracker
}

// Tracker tracks one task's progress. Implementations must be safe for
// concurrent use: table workers increment counts in parallel.
type Tracker interface {
	// AddTotal grows the expected amount of work. Totals are discovered
	// incrementally while paginating table listings, so they grow during
	// the run rather than being known upfront.
	AddTotal(delta int64)

	// AddDone records completed work.
	AddDone(delta int64)

	// Done marks the task finished regardless of counts.
	Done()
}

// NopReporter discards all progress events.
type NopReporter struct{}

// TaskStarted implements Reporter.
func (NopReporter) TaskStarted(string) Tracker { return nopTracker{} }

type nopTracker struct{}

func (nopTracker) AddTotal(int64) {}
func (nopTracker) AddDone(int64)  {}
func (nopTracker) Done()          {}
