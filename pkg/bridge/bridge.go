// Package bridge mirrors tool results onto observation channels.
//
// A bridged handler returns exactly what the wrapped handler returned. The copy
// sent to observers is best effort: normalization or publishing failures are
// logged and dropped, never surfaced to the agent.
package bridge

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/teslashibe/go-pizza-agent/internal/log"
	"github.com/teslashibe/go-pizza-agent/pkg/observe"
	"github.com/teslashibe/go-pizza-agent/pkg/tools"
)

// Publisher accepts observation records without blocking.
type Publisher interface {
	Publish(observe.Record) bool
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(observe.Record) bool

// Publish calls f(r).
func (f PublisherFunc) Publish(r observe.Record) bool {
	return f(r)
}

// Observable is implemented by structured results that carry order fields.
type Observable interface {
	Observation() (orderID, status, errCode string)
}

// Wrap returns a handler that calls h, publishes a normalized copy of its
// result to pub, and returns the result unchanged.
func Wrap(name string, h tools.Handler, pub Publisher) tools.Handler {
	return func(ctx context.Context, p tools.Params) tools.Result {
		res := h(ctx, p)
		publish(name, res, pub)
		return res
	}
}

// Middleware returns a registry middleware that bridges every tool to pub.
func Middleware(pub Publisher) tools.Middleware {
	return func(name string, next tools.Handler) tools.Handler {
		return Wrap(name, next, pub)
	}
}

func publish(name string, res tools.Result, pub Publisher) {
	defer func() {
		if p := recover(); p != nil {
			log.Component("bridge").Debug("observation dropped", "tool", name, "panic", p)
		}
	}()

	if pub == nil {
		return
	}
	rec, ok := Normalize(name, res)
	if !ok {
		log.Component("bridge").Debug("observation skipped: not an order record", "tool", name)
		return
	}
	if !pub.Publish(rec) {
		log.Component("bridge").Debug("observation not queued", "tool", name, "order_id", rec.OrderID)
	}
}

// Normalize converts a tool result into a canonical record. It accepts a
// structured value or a JSON object in the result text. ok is false when
// nothing decodes or no order id is present.
func Normalize(tool string, res tools.Result) (observe.Record, bool) {
	if rec, ok := fromValue(tool, res.Value); ok {
		return rec, true
	}
	if res.Text != "" {
		return fromJSON(tool, []byte(res.Text))
	}
	return observe.Record{}, false
}

func fromValue(tool string, v any) (observe.Record, bool) {
	switch x := v.(type) {
	case nil:
		return observe.Record{}, false
	case observe.Record:
		if x.Tool == "" {
			x.Tool = tool
		}
		return x, x.Valid()
	case Observable:
		id, status, code := x.Observation()
		return valid(observe.NewRecord(tool, id, status, code))
	case map[string]any:
		return fromMap(tool, x)
	case string:
		return fromJSON(tool, []byte(x))
	case []byte:
		return fromJSON(tool, x)
	default:
		return observe.Record{}, false
	}
}

func fromJSON(tool string, data []byte) (observe.Record, bool) {
	if !strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		return observe.Record{}, false
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return observe.Record{}, false
	}
	return fromMap(tool, m)
}

func fromMap(tool string, m map[string]any) (observe.Record, bool) {
	id := tools.NewParams(m).OrderID()
	status, _ := m["status"].(string)
	code, _ := m["error"].(string)
	return valid(observe.NewRecord(tool, id, status, code))
}

func valid(r observe.Record) (observe.Record, bool) {
	return r, r.Valid()
}
