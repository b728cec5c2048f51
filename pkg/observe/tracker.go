package observe

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval is how often the tracker drains its channel.
const DefaultPollInterval = time.Second

// Drainer is anything that can hand over its queued records without blocking.
type Drainer interface {
	Drain() []Record
}

// Tracker holds the "current" display state: the last well-formed record
// observed. It is a latest-wins view, not an event log.
type Tracker struct {
	mu       sync.RWMutex
	current  Record
	has      bool
	onChange func(Record)
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// OnChange sets a callback invoked after the current record changes.
// It runs on the polling goroutine.
func (t *Tracker) OnChange(fn func(Record)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = fn
}

// Current returns the current record. ok is false until the first update.
func (t *Tracker) Current() (r Record, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current, t.has
}

// Apply makes the last valid record in records current. Invalid records are
// skipped; if none is valid the current state is unchanged.
// It reports whether the current record changed.
func (t *Tracker) Apply(records []Record) bool {
	var latest Record
	found := false
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Valid() {
			latest = records[i]
			found = true
			break
		}
	}
	if !found {
		return false
	}

	t.mu.Lock()
	t.current = latest
	t.has = true
	fn := t.onChange
	t.mu.Unlock()

	if fn != nil {
		fn(latest)
	}
	return true
}

// Poll drains src every interval and applies the result until ctx is done.
// A non-positive interval uses DefaultPollInterval.
func (t *Tracker) Poll(ctx context.Context, src Drainer, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Apply(src.Drain())
		}
	}
}
