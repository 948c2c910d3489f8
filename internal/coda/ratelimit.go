package coda

import (
	"context"
	"sync"
	"time"
)

// adaptiveGate pauses all API traffic for a fixed interval after the server
// signals overload. Concurrent requests flow freely until one of them gets a
// 429; from that point every request waits until the backoff window ends.
//
// This complements the token-bucket limiter: the bucket paces steady-state
// traffic, the gate reacts to the server telling us the pace was still
// too high.
type adaptiveGate struct {
	mu       sync.Mutex
	until    time.Time
	interval time.Duration
}

func newAdaptiveGate(interval time.Duration) *adaptiveGate {
	return &adaptiveGate{interval: interval}
}

// wait blocks until any active backoff window has passed, or the context is
// cancelled. The window may be extended by other goroutines while we sleep,
// so the deadline is re-read after every sleep.
func (g *adaptiveGate) wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		until := g.until
		g.mu.Unlock()

		remaining := time.Until(until)
		if remaining <= 0 {
			return nil
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// trip opens a new backoff window starting now. Calling trip while a window
// is already active pushes the deadline out again.
func (g *adaptiveGate) trip() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.until = time.Now().Add(g.interval)
}
