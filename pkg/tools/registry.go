// Package tools implements the client tools the voice agent can call and the
// registry that dispatches calls to them by name.
//
// A handler returns a structured value. The registry renders that value into
// the single string returned to the agent, using the response convention fixed
// for the deployment: JSON for programmatic callers, or a speakable sentence.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/teslashibe/go-pizza-agent/internal/log"
)

// Registry errors.
var (
	// ErrUnknownTool indicates no tool is registered under the requested name.
	ErrUnknownTool = errors.New("tools: unknown tool")

	// ErrToolFailed indicates a handler panicked.
	ErrToolFailed = errors.New("tools: tool failed")
)

// Convention selects how results are rendered for the agent.
type Convention string

const (
	// Structured returns JSON payloads.
	Structured Convention = "structured"

	// Speech returns human-readable sentences.
	Speech Convention = "speech"
)

// ParseConvention validates a convention name.
func ParseConvention(s string) (Convention, error) {
	switch Convention(s) {
	case Structured, Speech:
		return Convention(s), nil
	default:
		return "", fmt.Errorf("tools: unknown response convention %q", s)
	}
}

// Definition describes a tool to the agent.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Result is what a handler produces. Value is the structured payload; Text,
// when set by the handler, is returned verbatim instead of rendering Value.
type Result struct {
	Value any
	Text  string
}

// Handler executes a tool with coerced parameters. Handlers report failures
// inside the Result rather than panicking.
type Handler func(ctx context.Context, p Params) Result

// Middleware wraps a handler at registration time.
type Middleware func(name string, next Handler) Handler

// Speaker is implemented by values with a speakable rendering.
type Speaker interface {
	Speak() string
}

// Render turns v into the string returned to the agent.
func Render(c Convention, v any) string {
	if s, ok := v.(string); ok {
		return s
	}

	if c == Speech {
		if sp, ok := v.(Speaker); ok {
			return sp.Speak()
		}
		return fmt.Sprint(v)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return `{"error":"system_error"}`
	}
	return string(data)
}

type entry struct {
	def     Definition
	handler Handler
}

// Registry maps tool names to handlers. It is built once per session and
// handed to the agent session adapter.
type Registry struct {
	convention Convention

	mu         sync.RWMutex
	tools      map[string]entry
	middleware []Middleware
}

// NewRegistry creates an empty registry rendering with convention c.
func NewRegistry(c Convention) *Registry {
	if c == "" {
		c = Structured
	}
	return &Registry{
		convention: c,
		tools:      make(map[string]entry),
	}
}

// Convention returns the registry's response convention.
func (r *Registry) Convention() Convention {
	return r.convention
}

// Use adds middleware applied to every tool registered afterwards.
func (r *Registry) Use(mw ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, mw...)
}

// Register adds a tool. Middleware added with Use wraps the handler here,
// the first Use being outermost.
func (r *Registry) Register(def Definition, h Handler) error {
	if def.Name == "" || h == nil {
		return fmt.Errorf("tools: invalid tool %q", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tools[def.Name]; ok {
		return fmt.Errorf("tools: %q already registered", def.Name)
	}

	for i := len(r.middleware) - 1; i >= 0; i-- {
		h = r.middleware[i](def.Name, h)
	}
	r.tools[def.Name] = entry{def: def, handler: h}
	return nil
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Definitions returns the registered tool definitions sorted by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.tools))
	for _, e := range r.tools {
		defs = append(defs, e.def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Call runs the named tool and returns its result with Text rendered.
//
// raw is coerced to Params once here. If coercion fails the handler still runs
// with empty params, so the failure surfaces as the tool's own validation
// outcome. A panicking handler yields a SystemError result and ErrToolFailed.
func (r *Registry) Call(ctx context.Context, name string, raw any) (res Result, err error) {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()

	logger := log.Component("tools")

	if !ok {
		logger.Warn("unknown tool called", "tool", name)
		v := UnknownTool{Name: name}
		return Result{Value: v, Text: Render(r.convention, v)}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	params, perr := ParseParams(raw)
	if perr != nil {
		logger.Warn("invalid tool parameters", "tool", name, "error", perr)
		params = NewParams(nil)
	}

	defer func() {
		if p := recover(); p != nil {
			logger.Error("tool panicked", "tool", name, "panic", p)
			v := SystemError{Tool: name}
			res = Result{Value: v, Text: Render(r.convention, v)}
			err = fmt.Errorf("%w: %s: %v", ErrToolFailed, name, p)
		}
	}()

	res = e.handler(ctx, params)
	if res.Text == "" {
		res.Text = Render(r.convention, res.Value)
	}
	return res, nil
}

// Dispatch runs the named tool and returns the string for the agent.
// The string is always well formed, even when err is non-nil.
func (r *Registry) Dispatch(ctx context.Context, name string, raw any) (string, error) {
	res, err := r.Call(ctx, name, raw)
	return res.Text, err
}
