// Package conversation connects to a hosted voice agent and surfaces its
// events (audio, transcripts, client tool calls) through the Provider
// interface.
//
// Example usage:
//
//	provider, err := conversation.NewElevenLabs(
//	    conversation.WithAPIKey(os.Getenv("ELEVENLABS_API_KEY")),
//	    conversation.WithAgentID(os.Getenv("ELEVENLABS_AGENT_ID")),
//	)
//	if err != nil {
//	    return err
//	}
//	defer provider.Close()
//
//	provider.OnToolCall(func(id, name string, args map[string]any) {
//	    result, err := registry.Dispatch(ctx, name, args)
//	    provider.SubmitToolResult(id, result, err != nil)
//	})
//
//	if err := provider.Connect(ctx); err != nil {
//	    return err
//	}
package conversation

import (
	"context"
)

// ConnectionState represents the WebSocket connection state.
type ConnectionState int

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected ConnectionState = iota
	// StateConnecting indicates connection is being established.
	StateConnecting
	// StateConnected indicates an active connection.
	StateConnected
)

// String returns a human-readable connection state.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Transcript roles.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// Tool describes a client tool the agent may call.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Provider is a live conversation with a hosted agent.
type Provider interface {
	// Connect opens the conversation. Register callbacks first.
	Connect(ctx context.Context) error

	// Close ends the conversation. Safe to call more than once.
	Close() error

	// IsConnected returns true while the conversation is open.
	IsConnected() bool

	// ConversationID returns the id assigned by the service, once known.
	ConversationID() string

	// SendAudio streams PCM16 mono microphone audio to the agent.
	SendAudio(audio []byte) error

	// RegisterTool declares a client tool. Used when creating an agent.
	RegisterTool(tool Tool)

	// SubmitToolResult answers a client tool call.
	SubmitToolResult(callID, result string, isError bool) error

	// OnAudio is called with agent audio.
	OnAudio(fn func(audio []byte))

	// OnAudioDone is called when the agent finishes a response.
	OnAudioDone(fn func())

	// OnTranscript is called for user and agent text.
	OnTranscript(fn func(role, text string, isFinal bool))

	// OnToolCall is called when the agent invokes a client tool.
	OnToolCall(fn func(id, name string, args map[string]any))

	// OnError is called for service and connection errors.
	OnError(fn func(err error))

	// OnInterruption is called when the user talks over the agent.
	OnInterruption(fn func())

	// OnDisconnect is called once when the conversation ends for any reason.
	OnDisconnect(fn func())
}
