package conversation

import (
	"log/slog"
	"time"
)

// DefaultSystemPrompt instructs the agent to act as the pizzeria's phone
// support and to use the client tools.
const DefaultSystemPrompt = `You are a friendly customer support agent for a pizza restaurant.
Help callers check the status of their orders and, when an order is late or the caller is unhappy, offer a discount.
Always call get_order_status with the caller's order number before describing an order. Never guess a status.
Call generate_discount to create a discount code and read it back clearly.
When the caller is done, say goodbye.`

// DefaultFirstMessage is spoken when the call starts.
const DefaultFirstMessage = "Hi, thanks for calling! How can I help you with your pizza order today?"

// Config holds configuration for conversation providers.
type Config struct {
	// APIKey is the ElevenLabs API key.
	APIKey string

	// AgentID is the agent to talk to. If empty and AutoCreateAgent is set,
	// an agent is created on Connect.
	AgentID string

	// VoiceID is the TTS voice for a created agent.
	VoiceID string

	// LLM is the model for a created agent.
	LLM string

	// AgentName names a created agent in the ElevenLabs dashboard.
	AgentName string

	// FirstMessage is spoken by a created agent when the call starts.
	FirstMessage string

	// SystemPrompt is the instruction for a created agent.
	SystemPrompt string

	// AutoCreateAgent enables agent creation when AgentID is empty.
	AutoCreateAgent bool

	// BaseURL overrides the conversation WebSocket endpoint.
	BaseURL string

	// APIBaseURL overrides the REST endpoint.
	APIBaseURL string

	// Timeout bounds the WebSocket handshake and REST calls.
	Timeout time.Duration

	// ReadTimeout is how long the connection may stay silent.
	ReadTimeout time.Duration

	// Logger is the structured logger to use.
	Logger *slog.Logger

	// Tools are registered on a created agent.
	Tools []Tool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM:          "gemini-2.0-flash",
		AgentName:    "pizza-support",
		FirstMessage: DefaultFirstMessage,
		SystemPrompt: DefaultSystemPrompt,
		BaseURL:      elevenLabsBaseURL,
		APIBaseURL:   elevenLabsAPIBaseURL,
		Timeout:      30 * time.Second,
		ReadTimeout:  5 * time.Minute,
		Logger:       slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.AgentID == "" && !c.AutoCreateAgent {
		return ErrMissingAgentID
	}
	if c.AgentID == "" && c.VoiceID == "" {
		return ErrMissingVoiceID
	}
	return nil
}

// Option is a functional option for configuring providers.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithAgentID sets the agent ID.
func WithAgentID(id string) Option {
	return func(c *Config) {
		c.AgentID = id
	}
}

// WithVoiceID sets the voice for programmatic agent creation.
func WithVoiceID(id string) Option {
	return func(c *Config) {
		c.VoiceID = id
	}
}

// WithLLM sets the language model for a created agent.
// Supported values include "gemini-2.0-flash", "claude-3-5-sonnet", "gpt-4o".
func WithLLM(model string) Option {
	return func(c *Config) {
		c.LLM = model
	}
}

// WithAgentName sets the created agent's name.
func WithAgentName(name string) Option {
	return func(c *Config) {
		c.AgentName = name
	}
}

// WithFirstMessage sets the greeting. Empty means wait for the caller.
func WithFirstMessage(msg string) Option {
	return func(c *Config) {
		c.FirstMessage = msg
	}
}

// WithSystemPrompt sets the system instruction.
func WithSystemPrompt(prompt string) Option {
	return func(c *Config) {
		c.SystemPrompt = prompt
	}
}

// WithAutoCreateAgent enables agent creation if AgentID is not provided.
// Requires VoiceID.
func WithAutoCreateAgent(enabled bool) Option {
	return func(c *Config) {
		c.AutoCreateAgent = enabled
	}
}

// WithBaseURL sets the WebSocket endpoint.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithAPIBaseURL sets the REST endpoint.
func WithAPIBaseURL(url string) Option {
	return func(c *Config) {
		c.APIBaseURL = url
	}
}

// WithTimeout sets the connection timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithTools sets the tools registered on a created agent.
func WithTools(tools ...Tool) Option {
	return func(c *Config) {
		c.Tools = tools
	}
}
