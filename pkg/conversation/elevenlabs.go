package conversation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	elevenLabsBaseURL = "wss://api.elevenlabs.io/v1/convai/conversation"
)

// ElevenLabs implements Provider for the ElevenLabs Agents Platform.
type ElevenLabs struct {
	config    *Config
	logger    *slog.Logger
	apiClient *apiClient

	mu             sync.RWMutex
	conn           *websocket.Conn
	state          ConnectionState
	tools          []Tool
	cancelCtx      context.CancelFunc
	agentID        string
	conversationID string
	disconnectOnce *sync.Once

	// gorilla/websocket allows one concurrent writer.
	writeMu sync.Mutex

	onAudio        func(audio []byte)
	onAudioDone    func()
	onTranscript   func(role, text string, isFinal bool)
	onToolCall     func(id, name string, args map[string]any)
	onError        func(err error)
	onInterruption func()
	onDisconnect   func()

	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
}

// NewElevenLabs creates a new ElevenLabs conversation provider.
//
// Talk to an agent configured in the ElevenLabs dashboard:
//
//	provider, _ := NewElevenLabs(
//	    WithAPIKey(apiKey),
//	    WithAgentID(agentID),
//	)
//
// Or create one with the pizzeria tools on first Connect:
//
//	provider, _ := NewElevenLabs(
//	    WithAPIKey(apiKey),
//	    WithVoiceID(voiceID),
//	    WithAutoCreateAgent(true),
//	    WithTools(tools...),
//	)
func NewElevenLabs(opts ...Option) (*ElevenLabs, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &ElevenLabs{
		config:    cfg,
		logger:    cfg.Logger.With("component", "conversation.elevenlabs"),
		apiClient: newAPIClient(cfg.APIKey, cfg.APIBaseURL, cfg.Timeout),
		agentID:   cfg.AgentID,
		tools:     append([]Tool(nil), cfg.Tools...),
		state:     StateDisconnected,
	}, nil
}

// EnsureAgent returns the agent ID, creating the agent first when none is
// configured and auto-creation is enabled.
func (e *ElevenLabs) EnsureAgent(ctx context.Context) (string, error) {
	e.mu.RLock()
	id := e.agentID
	tools := append([]Tool(nil), e.tools...)
	e.mu.RUnlock()

	if id != "" {
		return id, nil
	}
	if !e.config.AutoCreateAgent {
		return "", ErrMissingAgentID
	}

	e.logger.Info("creating agent programmatically",
		"voice_id", e.config.VoiceID,
		"llm", e.config.LLM,
		"tools", len(tools),
	)

	resp, err := e.apiClient.CreateAgent(ctx, buildAgentConfig(e.config, tools))
	if err != nil {
		return "", fmt.Errorf("conversation.elevenlabs: create agent failed: %w", err)
	}

	e.mu.Lock()
	e.agentID = resp.AgentID
	e.mu.Unlock()

	e.logger.Info("agent created successfully", "agent_id", resp.AgentID)
	return resp.AgentID, nil
}

// Connect establishes the WebSocket connection to ElevenLabs.
func (e *ElevenLabs) Connect(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateDisconnected {
		e.mu.Unlock()
		return ErrAlreadyConnected
	}
	e.state = StateConnecting
	e.mu.Unlock()

	fail := func(err error) error {
		e.mu.Lock()
		e.state = StateDisconnected
		e.mu.Unlock()
		return err
	}

	agentID, err := e.EnsureAgent(ctx)
	if err != nil {
		return fail(err)
	}

	wsURL, err := url.Parse(e.config.BaseURL)
	if err != nil {
		return fail(fmt.Errorf("conversation.elevenlabs: invalid URL: %w", err))
	}
	q := wsURL.Query()
	q.Set("agent_id", agentID)
	wsURL.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("xi-api-key", e.config.APIKey)

	dialer := websocket.Dialer{
		HandshakeTimeout: e.config.Timeout,
	}

	e.logger.Info("connecting to ElevenLabs Agents Platform", "agent_id", agentID)

	conn, resp, err := dialer.DialContext(ctx, wsURL.String(), headers)
	if err != nil {
		if resp != nil {
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return fail(NewConnectionError("unauthorized", err, false))
			}
			return fail(NewConnectionError(
				fmt.Sprintf("dial failed with status %d", resp.StatusCode),
				err,
				resp.StatusCode >= 500,
			))
		}
		return fail(NewConnectionError("dial failed", err, true))
	}

	msgCtx, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	e.conn = conn
	e.state = StateConnected
	e.cancelCtx = cancel
	e.conversationID = ""
	e.disconnectOnce = &sync.Once{}
	e.mu.Unlock()

	if err := e.writeJSON(map[string]any{"type": "conversation_initiation_client_data"}); err != nil {
		e.logger.Warn("failed to send initiation data", "error", err)
	}

	go e.handleMessages(msgCtx, conn)

	e.logger.Info("connected to ElevenLabs Agents Platform")
	return nil
}

// AgentID returns the current agent ID (may be auto-created).
func (e *ElevenLabs) AgentID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.agentID
}

// ConversationID returns the id from the initiation metadata.
func (e *ElevenLabs) ConversationID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.conversationID
}

// Close gracefully closes the connection.
func (e *ElevenLabs) Close() error {
	e.mu.Lock()
	if e.state == StateDisconnected {
		e.mu.Unlock()
		return nil
	}
	if e.cancelCtx != nil {
		e.cancelCtx()
	}
	conn := e.conn
	e.conn = nil
	e.state = StateDisconnected
	e.mu.Unlock()

	var err error
	if conn != nil {
		e.writeMu.Lock()
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		e.writeMu.Unlock()
		err = conn.Close()
	}

	e.emitDisconnect()
	e.logger.Info("disconnected from ElevenLabs Agents Platform",
		"messages_sent", e.messagesSent.Load(),
		"messages_received", e.messagesReceived.Load(),
	)
	return err
}

// IsConnected returns true if connected.
func (e *ElevenLabs) IsConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state == StateConnected
}

// SendAudio sends microphone audio as a user_audio_chunk.
func (e *ElevenLabs) SendAudio(audio []byte) error {
	return e.writeJSON(map[string]string{
		"user_audio_chunk": base64.StdEncoding.EncodeToString(audio),
	})
}

// RegisterTool registers a tool for agent creation.
func (e *ElevenLabs) RegisterTool(tool Tool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tools = append(e.tools, tool)
}

// SubmitToolResult answers a client_tool_call.
func (e *ElevenLabs) SubmitToolResult(callID, result string, isError bool) error {
	err := e.writeJSON(map[string]any{
		"type":         "client_tool_result",
		"tool_call_id": callID,
		"result":       result,
		"is_error":     isError,
	})
	if err != nil {
		return err
	}
	e.logger.Debug("submitted tool result",
		"call_id", callID,
		"result_len", len(result),
		"is_error", isError,
	)
	return nil
}

func (e *ElevenLabs) writeJSON(v any) error {
	e.mu.RLock()
	conn := e.conn
	state := e.state
	e.mu.RUnlock()

	if state != StateConnected || conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("conversation.elevenlabs: marshal failed: %w", err)
	}

	e.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	e.writeMu.Unlock()
	if err != nil {
		return NewConnectionError("write failed", err, true)
	}

	e.messagesSent.Add(1)
	return nil
}

// OnAudio sets the audio callback.
func (e *ElevenLabs) OnAudio(fn func(audio []byte)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onAudio = fn
}

// OnAudioDone sets the audio done callback.
func (e *ElevenLabs) OnAudioDone(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onAudioDone = fn
}

// OnTranscript sets the transcript callback.
func (e *ElevenLabs) OnTranscript(fn func(role, text string, isFinal bool)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTranscript = fn
}

// OnToolCall sets the tool call callback.
func (e *ElevenLabs) OnToolCall(fn func(id, name string, args map[string]any)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onToolCall = fn
}

// OnError sets the error callback.
func (e *ElevenLabs) OnError(fn func(err error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onError = fn
}

// OnInterruption sets the interruption callback.
func (e *ElevenLabs) OnInterruption(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onInterruption = fn
}

// OnDisconnect sets the disconnect callback.
func (e *ElevenLabs) OnDisconnect(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onDisconnect = fn
}

// handleMessages reads until the connection closes or ctx is canceled.
func (e *ElevenLabs) handleMessages(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		e.mu.Lock()
		if e.conn == conn {
			e.conn = nil
			e.state = StateDisconnected
		}
		e.mu.Unlock()
		conn.Close()
		e.emitDisconnect()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(e.config.ReadTimeout))

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				e.logger.Info("connection closed by agent")
				return
			}
			e.logger.Error("read error", "error", err)
			e.emitError(NewConnectionError("read failed", err, true))
			return
		}

		e.messagesReceived.Add(1)

		var msg elevenLabsIncoming
		if err := json.Unmarshal(data, &msg); err != nil {
			e.logger.Warn("failed to parse message", "error", err)
			continue
		}

		e.handleMessage(msg)
	}
}

// handleMessage processes a single message. Both the nested event format and
// the older flat format are accepted.
func (e *ElevenLabs) handleMessage(msg elevenLabsIncoming) {
	switch msg.Type {
	case "conversation_initiation_metadata":
		if m := msg.InitiationMetadata; m != nil {
			e.mu.Lock()
			e.conversationID = m.ConversationID
			e.mu.Unlock()
			e.logger.Info("conversation started",
				"conversation_id", m.ConversationID,
				"output_format", m.AgentOutputAudioFormat,
			)
		}

	case "audio":
		audioData := msg.Audio
		if msg.AudioEvent != nil && msg.AudioEvent.AudioBase64 != "" {
			audioData = msg.AudioEvent.AudioBase64
		}
		if audioData == "" {
			return
		}
		audio, err := base64.StdEncoding.DecodeString(audioData)
		if err != nil {
			e.logger.Warn("failed to decode audio", "error", err)
			return
		}
		e.emitAudio(audio)

	case "audio_done", "agent_response_done":
		e.emitAudioDone()

	case "user_transcript":
		text := msg.Text
		if msg.UserTranscription != nil {
			text = msg.UserTranscription.UserTranscript
		}
		e.emitTranscript(RoleUser, text, true)

	case "agent_response":
		text := msg.Text
		if msg.AgentResponse != nil {
			text = msg.AgentResponse.AgentResponse
		}
		e.emitTranscript(RoleAgent, text, true)

	case "tool_call", "client_tool_call":
		name, id, params := msg.ToolName, msg.ToolCallID, msg.Parameters
		if msg.ClientToolCall != nil {
			name = msg.ClientToolCall.ToolName
			id = msg.ClientToolCall.ToolCallID
			params = msg.ClientToolCall.Parameters
		}
		e.emitToolCall(id, name, params)

	case "interruption":
		e.emitInterruption()

	case "error":
		e.emitError(NewAPIError(0, msg.Code, msg.Message))

	case "ping":
		eventID := 0
		if msg.PingEvent != nil {
			eventID = msg.PingEvent.EventID
		}
		if err := e.writeJSON(map[string]any{"type": "pong", "event_id": eventID}); err != nil {
			e.logger.Debug("pong failed", "error", err)
		}

	default:
		e.logger.Debug("unhandled message type", "type", msg.Type)
	}
}

func (e *ElevenLabs) emitAudio(audio []byte) {
	e.mu.RLock()
	fn := e.onAudio
	e.mu.RUnlock()
	if fn != nil {
		fn(audio)
	}
}

func (e *ElevenLabs) emitAudioDone() {
	e.mu.RLock()
	fn := e.onAudioDone
	e.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (e *ElevenLabs) emitTranscript(role, text string, isFinal bool) {
	e.mu.RLock()
	fn := e.onTranscript
	e.mu.RUnlock()
	if fn != nil && text != "" {
		fn(role, text, isFinal)
	}
}

func (e *ElevenLabs) emitToolCall(id, name string, args map[string]any) {
	e.mu.RLock()
	fn := e.onToolCall
	e.mu.RUnlock()
	if fn != nil {
		fn(id, name, args)
	}
}

func (e *ElevenLabs) emitInterruption() {
	e.mu.RLock()
	fn := e.onInterruption
	e.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (e *ElevenLabs) emitError(err error) {
	e.mu.RLock()
	fn := e.onError
	e.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

func (e *ElevenLabs) emitDisconnect() {
	e.mu.RLock()
	fn := e.onDisconnect
	once := e.disconnectOnce
	e.mu.RUnlock()
	if fn == nil || once == nil {
		return
	}
	once.Do(fn)
}

// Message types for the ElevenLabs conversation protocol.

type elevenLabsIncoming struct {
	Type       string         `json:"type"`
	Audio      string         `json:"audio,omitempty"`
	Text       string         `json:"text,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Code       string         `json:"code,omitempty"`
	Message    string         `json:"message,omitempty"`

	InitiationMetadata *initiationMetadata `json:"conversation_initiation_metadata_event,omitempty"`
	AudioEvent         *audioEvent         `json:"audio_event,omitempty"`
	PingEvent          *pingEvent          `json:"ping_event,omitempty"`
	ClientToolCall     *clientToolCall     `json:"client_tool_call,omitempty"`
	UserTranscription  *userTranscription  `json:"user_transcription_event,omitempty"`
	AgentResponse      *agentResponse      `json:"agent_response_event,omitempty"`
}

type initiationMetadata struct {
	ConversationID         string `json:"conversation_id"`
	AgentOutputAudioFormat string `json:"agent_output_audio_format,omitempty"`
	UserInputAudioFormat   string `json:"user_input_audio_format,omitempty"`
}

type audioEvent struct {
	EventID     int    `json:"event_id"`
	AudioBase64 string `json:"audio_base_64"`
}

type pingEvent struct {
	EventID int `json:"event_id"`
	PingMs  int `json:"ping_ms,omitempty"`
}

type clientToolCall struct {
	ToolName   string         `json:"tool_name"`
	ToolCallID string         `json:"tool_call_id"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type userTranscription struct {
	UserTranscript string `json:"user_transcript"`
}

type agentResponse struct {
	AgentResponse string `json:"agent_response"`
}

// Ensure ElevenLabs implements Provider.
var _ Provider = (*ElevenLabs)(nil)
