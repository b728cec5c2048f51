package bridge

import (
	"github.com/teslashibe/go-pizza-agent/internal/log"
	"github.com/teslashibe/go-pizza-agent/pkg/observe"
)

// Fanout publishes each record to every publisher. A panicking publisher
// does not prevent delivery to the others.
type Fanout []Publisher

// Publish reports whether at least one publisher accepted r.
func (f Fanout) Publish(r observe.Record) bool {
	accepted := false
	for _, p := range f {
		if p == nil {
			continue
		}
		if safePublish(p, r) {
			accepted = true
		}
	}
	return accepted
}

func safePublish(p Publisher, r observe.Record) (ok bool) {
	defer func() {
		if v := recover(); v != nil {
			log.Component("bridge").Debug("publisher panicked", "panic", v)
			ok = false
		}
	}()
	return p.Publish(r)
}
