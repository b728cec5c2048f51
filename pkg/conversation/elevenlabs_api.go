package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-pizza-agent/internal/httpc"
)

const (
	elevenLabsAPIBaseURL = "https://api.elevenlabs.io/v1"
)

// AgentConfig represents the agent configuration for the ElevenLabs API.
type AgentConfig struct {
	Name               string              `json:"name,omitempty"`
	ConversationConfig *ConversationConfig `json:"conversation_config"`
}

// ConversationConfig contains the main conversation settings.
type ConversationConfig struct {
	Agent *AgentSettings `json:"agent,omitempty"`
	TTS   *TTSConfig     `json:"tts,omitempty"`
}

// AgentSettings configures the agent's behavior.
type AgentSettings struct {
	Prompt       *PromptConfig `json:"prompt,omitempty"`
	FirstMessage string        `json:"first_message,omitempty"`
	Language     string        `json:"language,omitempty"`
}

// PromptConfig holds the system prompt, model and client tools.
type PromptConfig struct {
	Prompt string      `json:"prompt"`
	LLM    string      `json:"llm,omitempty"`
	Tools  []AgentTool `json:"tools,omitempty"`
}

// TTSConfig configures text-to-speech.
type TTSConfig struct {
	VoiceID string `json:"voice_id"`
}

// AgentTool is a client tool definition on the agent.
type AgentTool struct {
	Type             string         `json:"type"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	ExpectsResponse  bool           `json:"expects_response"`
	Parameters       map[string]any `json:"parameters,omitempty"`
	ResponseTimeoutS int            `json:"response_timeout_secs,omitempty"`
}

// CreateAgentResponse is the response from creating an agent.
type CreateAgentResponse struct {
	AgentID string `json:"agent_id"`
}

// GetAgentResponse is the response from getting an agent.
type GetAgentResponse struct {
	AgentID            string              `json:"agent_id"`
	Name               string              `json:"name"`
	ConversationConfig *ConversationConfig `json:"conversation_config"`
}

// apiClient handles REST API calls to ElevenLabs.
type apiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func newAPIClient(apiKey, baseURL string, timeout time.Duration) *apiClient {
	if baseURL == "" {
		baseURL = elevenLabsAPIBaseURL
	}
	return &apiClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpc.NewClient(timeout),
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrAgentNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return NewAPIError(resp.StatusCode, "", strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// CreateAgent creates a new agent via the REST API.
func (c *apiClient) CreateAgent(ctx context.Context, cfg AgentConfig) (*CreateAgentResponse, error) {
	var result CreateAgentResponse
	if err := c.do(ctx, http.MethodPost, "/convai/agents/create", cfg, &result); err != nil {
		return nil, err
	}
	if result.AgentID == "" {
		return nil, fmt.Errorf("create agent: empty agent_id in response")
	}
	return &result, nil
}

// GetAgent retrieves an agent by ID.
func (c *apiClient) GetAgent(ctx context.Context, agentID string) (*GetAgentResponse, error) {
	var result GetAgentResponse
	if err := c.do(ctx, http.MethodGet, "/convai/agents/"+agentID, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteAgent removes an agent by ID.
func (c *apiClient) DeleteAgent(ctx context.Context, agentID string) error {
	return c.do(ctx, http.MethodDelete, "/convai/agents/"+agentID, nil, nil)
}

// Voice is an ElevenLabs voice.
type Voice struct {
	VoiceID  string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// ListVoices returns the voices available to the API key.
func (c *apiClient) ListVoices(ctx context.Context) ([]Voice, error) {
	var result struct {
		Voices []Voice `json:"voices"`
	}
	if err := c.do(ctx, http.MethodGet, "/voices", nil, &result); err != nil {
		return nil, err
	}
	return result.Voices, nil
}

// ListVoices returns the voices available to the configured API key.
func (e *ElevenLabs) ListVoices(ctx context.Context) ([]Voice, error) {
	return e.apiClient.ListVoices(ctx)
}

// DeleteAgent deletes the agent this provider created or was given.
// The provider must be closed first.
func (e *ElevenLabs) DeleteAgent(ctx context.Context) error {
	if e.IsConnected() {
		return ErrAlreadyConnected
	}
	id := e.AgentID()
	if id == "" {
		return ErrMissingAgentID
	}
	return e.apiClient.DeleteAgent(ctx, id)
}

// VerifyAgent checks that the configured agent exists and the key is accepted.
func (e *ElevenLabs) VerifyAgent(ctx context.Context) error {
	id := e.AgentID()
	if id == "" {
		return ErrMissingAgentID
	}
	_, err := e.apiClient.GetAgent(ctx, id)
	return err
}

// buildAgentConfig creates an AgentConfig from the provider Config and tools.
func buildAgentConfig(cfg *Config, tools []Tool) AgentConfig {
	agentCfg := AgentConfig{
		Name: cfg.AgentName,
		ConversationConfig: &ConversationConfig{
			Agent: &AgentSettings{
				Prompt: &PromptConfig{
					Prompt: cfg.SystemPrompt,
					LLM:    cfg.LLM,
				},
				FirstMessage: cfg.FirstMessage,
				Language:     "en",
			},
		},
	}

	if cfg.VoiceID != "" {
		agentCfg.ConversationConfig.TTS = &TTSConfig{VoiceID: cfg.VoiceID}
	}

	for _, t := range tools {
		agentCfg.ConversationConfig.Agent.Prompt.Tools = append(agentCfg.ConversationConfig.Agent.Prompt.Tools, AgentTool{
			Type:             "client",
			Name:             t.Name,
			Description:      t.Description,
			ExpectsResponse:  true,
			Parameters:       t.Parameters,
			ResponseTimeoutS: 20,
		})
	}

	return agentCfg
}
