package conversation

import (
	"context"
	"sync"
)

// ToolResult is a captured SubmitToolResult call.
type ToolResult struct {
	Result  string
	IsError bool
}

// Mock is a mock implementation of Provider for testing.
type Mock struct {
	mu sync.RWMutex

	connected      bool
	conversationID string
	tools          []Tool

	onAudio        func(audio []byte)
	onAudioDone    func()
	onTranscript   func(role, text string, isFinal bool)
	onToolCall     func(id, name string, args map[string]any)
	onError        func(err error)
	onInterruption func()
	onDisconnect   func()

	// Configurable behavior
	ConnectFunc          func(ctx context.Context) error
	CloseFunc            func() error
	SendAudioFunc        func(audio []byte) error
	SubmitToolResultFunc func(callID, result string, isError bool) error

	// Captured calls for assertions
	AudioSent   [][]byte
	ToolResults map[string]ToolResult
	CloseCalls  int

	results chan string
}

// NewMock creates a new Mock provider.
func NewMock() *Mock {
	return &Mock{
		conversationID: "mock-conversation",
		ToolResults:    make(map[string]ToolResult),
		results:        make(chan string, 64),
	}
}

// Connect implements Provider.
func (m *Mock) Connect(ctx context.Context) error {
	if m.ConnectFunc != nil {
		if err := m.ConnectFunc(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected {
		return ErrAlreadyConnected
	}
	m.connected = true
	return nil
}

// Close implements Provider.
func (m *Mock) Close() error {
	m.mu.Lock()
	m.CloseCalls++
	wasConnected := m.connected
	m.connected = false
	fn := m.onDisconnect
	m.mu.Unlock()

	if wasConnected && fn != nil {
		fn()
	}
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// IsConnected implements Provider.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// ConversationID implements Provider.
func (m *Mock) ConversationID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conversationID
}

// SendAudio implements Provider.
func (m *Mock) SendAudio(audio []byte) error {
	if m.SendAudioFunc != nil {
		return m.SendAudioFunc(audio)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	m.AudioSent = append(m.AudioSent, audio)
	return nil
}

// RegisterTool implements Provider.
func (m *Mock) RegisterTool(tool Tool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools = append(m.tools, tool)
}

// SubmitToolResult implements Provider.
func (m *Mock) SubmitToolResult(callID, result string, isError bool) error {
	if m.SubmitToolResultFunc != nil {
		return m.SubmitToolResultFunc(callID, result, isError)
	}
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return ErrNotConnected
	}
	m.ToolResults[callID] = ToolResult{Result: result, IsError: isError}
	m.mu.Unlock()

	select {
	case m.results <- callID:
	default:
	}
	return nil
}

// OnAudio implements Provider.
func (m *Mock) OnAudio(fn func(audio []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAudio = fn
}

// OnAudioDone implements Provider.
func (m *Mock) OnAudioDone(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAudioDone = fn
}

// OnTranscript implements Provider.
func (m *Mock) OnTranscript(fn func(role, text string, isFinal bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTranscript = fn
}

// OnToolCall implements Provider.
func (m *Mock) OnToolCall(fn func(id, name string, args map[string]any)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onToolCall = fn
}

// OnError implements Provider.
func (m *Mock) OnError(fn func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
}

// OnInterruption implements Provider.
func (m *Mock) OnInterruption(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onInterruption = fn
}

// OnDisconnect implements Provider.
func (m *Mock) OnDisconnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnect = fn
}

// Test helpers

// SimulateAudio triggers the OnAudio callback with the given audio.
func (m *Mock) SimulateAudio(audio []byte) {
	m.mu.RLock()
	fn := m.onAudio
	m.mu.RUnlock()
	if fn != nil {
		fn(audio)
	}
}

// SimulateAudioDone triggers the OnAudioDone callback.
func (m *Mock) SimulateAudioDone() {
	m.mu.RLock()
	fn := m.onAudioDone
	m.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// SimulateTranscript triggers the OnTranscript callback.
func (m *Mock) SimulateTranscript(role, text string, isFinal bool) {
	m.mu.RLock()
	fn := m.onTranscript
	m.mu.RUnlock()
	if fn != nil {
		fn(role, text, isFinal)
	}
}

// SimulateToolCall triggers the OnToolCall callback.
func (m *Mock) SimulateToolCall(id, name string, args map[string]any) {
	m.mu.RLock()
	fn := m.onToolCall
	m.mu.RUnlock()
	if fn != nil {
		fn(id, name, args)
	}
}

// SimulateError triggers the OnError callback.
func (m *Mock) SimulateError(err error) {
	m.mu.RLock()
	fn := m.onError
	m.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// SimulateInterruption triggers the OnInterruption callback.
func (m *Mock) SimulateInterruption() {
	m.mu.RLock()
	fn := m.onInterruption
	m.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// SimulateDisconnect drops the connection as if the agent hung up.
func (m *Mock) SimulateDisconnect() {
	m.mu.Lock()
	was := m.connected
	m.connected = false
	fn := m.onDisconnect
	m.mu.Unlock()
	if was && fn != nil {
		fn()
	}
}

// Results receives the call ID of each submitted tool result.
func (m *Mock) Results() <-chan string {
	return m.results
}

// ToolResult returns the captured result for callID.
func (m *Mock) ToolResult(callID string) (ToolResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.ToolResults[callID]
	return r, ok
}

// Closes returns how many times Close was called.
func (m *Mock) Closes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.CloseCalls
}

// GetTools returns the registered tools.
func (m *Mock) GetTools() []Tool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Tool{}, m.tools...)
}

// Ensure Mock implements Provider.
var _ Provider = (*Mock)(nil)
