// Package session runs one support call: it connects the agent, dispatches
// client tool calls to the registry, and tears everything down exactly once
// whether the end comes from the operator, a signal, or the agent saying
// goodbye.
//
// Audio is not handled here: a session only carries tool calls and
// transcripts unless an AudioIO is attached with WithAudio, which is where a
// microphone and speaker plug in.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-pizza-agent/internal/log"
	"github.com/teslashibe/go-pizza-agent/pkg/conversation"
)

// DefaultDrainDelay lets the agent finish speaking before teardown.
const DefaultDrainDelay = 2 * time.Second

var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("session: already started")
	// ErrStopped is returned by Start when Stop ran while connecting.
	ErrStopped = errors.New("session: stopped while connecting")
)

// Dispatcher runs a tool by name. *tools.Registry implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, raw any) (string, error)
}

// AudioIO is the local microphone and speaker.
type AudioIO interface {
	// Frames yields PCM16 mono microphone frames until closed.
	Frames() <-chan []byte
	// Play queues agent audio for playback.
	Play(audio []byte)
}

// Option configures a Session.
type Option func(*Session)

// WithEndDetector replaces the goodbye detector. nil disables detection.
func WithEndDetector(d EndDetector) Option {
	return func(s *Session) {
		s.detector = d
	}
}

// WithDrainDelay sets the wait between detecting a goodbye and stopping.
func WithDrainDelay(d time.Duration) Option {
	return func(s *Session) {
		if d >= 0 {
			s.drainDelay = d
		}
	}
}

// WithAudio streams audio between the agent and a local device.
func WithAudio(a AudioIO) Option {
	return func(s *Session) {
		s.audio = a
	}
}

// Session is a single call with the agent.
type Session struct {
	id         string
	provider   conversation.Provider
	tools      Dispatcher
	detector   EndDetector
	drainDelay time.Duration
	audio      AudioIO
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	started   atomic.Bool
	active    atomic.Bool
	ending    atomic.Bool
	startedAt atomic.Int64
	toolCalls atomic.Int64

	stopOnce sync.Once
	done     chan struct{}

	mu       sync.Mutex
	stopping bool
	inflight sync.WaitGroup
}

// New creates a session. Nothing connects until Start.
func New(provider conversation.Provider, tools Dispatcher, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         uuid.NewString(),
		provider:   provider,
		tools:      tools,
		detector:   NewPhraseDetector(),
		drainDelay: DefaultDrainDelay,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.Component("session").With("session_id", s.id)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Active reports whether the call is in progress.
func (s *Session) Active() bool { return s.active.Load() }

// StartedAt returns when the call connected, or the zero time.
func (s *Session) StartedAt() time.Time {
	ns := s.startedAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// ToolCalls returns the number of tool calls handled.
func (s *Session) ToolCalls() int64 { return s.toolCalls.Load() }

// Done is closed when the session has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session stops or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start wires callbacks and connects. ctx bounds only the connection attempt;
// the call itself runs until Stop. A failed Start ends the session.
func (s *Session) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	p := s.provider
	p.OnToolCall(s.handleToolCall)
	p.OnTranscript(s.handleTranscript)
	p.OnError(func(err error) {
		s.logger.Error("agent error", "error", err)
	})
	p.OnInterruption(func() {
		s.logger.Debug("caller interrupted agent")
	})
	p.OnDisconnect(func() {
		if s.active.Load() {
			s.logger.Info("agent disconnected")
			go s.Stop()
		}
	})
	if s.audio != nil {
		p.OnAudio(s.audio.Play)
	}

	s.logger.Info("starting session")

	// Stop aborts a connect in flight.
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	unhook := context.AfterFunc(s.ctx, cancel)
	defer unhook()

	if err := p.Connect(connCtx); err != nil {
		aborted := s.ctx.Err() != nil
		s.Stop()
		if aborted {
			s.logger.Info("session stopped while connecting")
			return ErrStopped
		}
		s.logger.Error("failed to connect to agent", "error", err)
		return fmt.Errorf("session: connect: %w", err)
	}

	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		// Stop closed the provider before the connection existed.
		if err := p.Close(); err != nil {
			s.logger.Warn("error closing agent connection", "error", err)
		}
		s.logger.Info("session stopped while connecting")
		return ErrStopped
	}
	s.startedAt.Store(time.Now().UnixNano())
	s.active.Store(true)
	s.mu.Unlock()

	if s.audio != nil {
		go s.pumpAudio()
	}

	s.logger.Info("session started", "conversation_id", p.ConversationID())
	return nil
}

// Stop ends the call. It is idempotent and safe from any goroutine; teardown
// errors are logged, never returned.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopping = true
		wasActive := s.active.Swap(false)
		s.mu.Unlock()
		s.cancel()

		if err := s.provider.Close(); err != nil {
			s.logger.Warn("error closing agent connection", "error", err)
		}

		s.inflight.Wait()
		close(s.done)

		if wasActive {
			s.logger.Info("session ended",
				"duration", time.Since(s.StartedAt()).Round(time.Millisecond),
				"tool_calls", s.toolCalls.Load(),
			)
		}
	})
}

// handleToolCall runs off the provider's read loop.
func (s *Session) handleToolCall(id, name string, args map[string]any) {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		s.logger.Debug("tool call after stop ignored", "tool", name, "call_id", id)
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	s.toolCalls.Add(1)
	go func() {
		defer s.inflight.Done()

		s.logger.Info("tool call", "tool", name, "call_id", id)

		result, err := s.tools.Dispatch(s.ctx, name, args)
		if err != nil {
			s.logger.Warn("tool call failed", "tool", name, "call_id", id, "error", err)
		}

		if err := s.provider.SubmitToolResult(id, result, err != nil); err != nil {
			if s.active.Load() {
				s.logger.Warn("failed to submit tool result", "tool", name, "call_id", id, "error", err)
			}
			return
		}
		s.logger.Debug("tool result submitted", "tool", name, "call_id", id, "result", result)
	}()
}

func (s *Session) handleTranscript(role, text string, isFinal bool) {
	switch role {
	case conversation.RoleUser:
		s.logger.Info("user", "text", text)
	case conversation.RoleAgent:
		s.logger.Info("agent", "text", text)
		if isFinal && s.detector != nil && s.detector.ShouldEnd(text) {
			s.endAfterDrain()
		}
	}
}

// endAfterDrain stops the session once the drain delay passes, without
// blocking the caller.
func (s *Session) endAfterDrain() {
	if !s.ending.CompareAndSwap(false, true) {
		return
	}
	s.logger.Info("goodbye detected, ending call", "drain_delay", s.drainDelay)

	go func() {
		t := time.NewTimer(s.drainDelay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-s.ctx.Done():
		}
		s.Stop()
	}()
}

func (s *Session) pumpAudio() {
	frames := s.audio.Frames()
	for {
		select {
		case <-s.ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if err := s.provider.SendAudio(frame); err != nil {
				if conversation.IsNotConnected(err) {
					return
				}
				s.logger.Debug("failed to send audio", "error", err)
			}
		}
	}
}
