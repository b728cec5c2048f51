package observe

import "sync/atomic"

// DefaultCapacity is the default number of records buffered between drains.
const DefaultCapacity = 64

// Channel is a bounded queue of Records between the tool path and a single
// polling consumer. Publish never blocks: when the buffer is full the oldest
// record is discarded so the newest one is always kept.
type Channel struct {
	ch chan Record

	published atomic.Int64
	dropped   atomic.Int64
	rejected  atomic.Int64
}

// NewChannel creates a channel holding up to capacity records.
// A non-positive capacity uses DefaultCapacity.
func NewChannel(capacity int) *Channel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Channel{ch: make(chan Record, capacity)}
}

// Publish enqueues r. Malformed records are rejected. It reports whether r was queued.
func (c *Channel) Publish(r Record) bool {
	if !r.Valid() {
		c.rejected.Add(1)
		return false
	}

	for attempt := 0; attempt < 3; attempt++ {
		select {
		case c.ch <- r:
			c.published.Add(1)
			return true
		default:
		}

		// Full: make room by discarding the oldest record.
		select {
		case <-c.ch:
			c.dropped.Add(1)
		default:
		}
	}

	c.dropped.Add(1)
	return false
}

// Drain returns every record currently queued, oldest first, without blocking.
// An empty result means there has been no update since the last drain.
func (c *Channel) Drain() []Record {
	var out []Record
	for i := 0; i < cap(c.ch); i++ {
		select {
		case r := <-c.ch:
			out = append(out, r)
		default:
			return out
		}
	}
	return out
}

// Len returns the number of queued records.
func (c *Channel) Len() int {
	return len(c.ch)
}

// Stats holds channel counters.
type Stats struct {
	Published int64 `json:"published"`
	Dropped   int64 `json:"dropped"`
	Rejected  int64 `json:"rejected"`
	Queued    int   `json:"queued"`
}

// Stats returns a snapshot of the channel counters.
func (c *Channel) Stats() Stats {
	return Stats{
		Published: c.published.Load(),
		Dropped:   c.dropped.Load(),
		Rejected:  c.rejected.Load(),
		Queued:    len(c.ch),
	}
}
