// Package config holds runtime configuration for the pizza agent.
// Flag parsing is done in cmd/pizza-agent; this package is data plus env overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultOrdersPath    = "orders.json"
	DefaultDashboardPort = "8501"
	DefaultDrainDelay    = 2 * time.Second
	DefaultPollInterval  = time.Second
	DefaultAMQPExchange  = "pizza.tool_events"
)

// Store backends.
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
)

// Response conventions. One is chosen per deployment and never mixed.
const (
	ModeStructured = "structured"
	ModeSpeech     = "speech"
)

// Config holds all configuration for the agent process.
type Config struct {
	// ElevenLabs credentials.
	APIKey  string
	AgentID string

	// VoiceID and LLM are only used when creating the agent programmatically.
	VoiceID     string
	LLM         string
	CreateAgent bool

	// Order store.
	Store       string // "file" or "postgres"
	OrdersPath  string
	AutoSeed    bool
	DatabaseURL string

	// Optional AMQP fan-out of tool events.
	AMQPURL      string
	AMQPExchange string

	// ResponseMode selects the string returned to the agent: "structured" or "speech".
	ResponseMode string

	// Dashboard.
	DashboardEnabled bool
	DashboardPort    string
	PollInterval     time.Duration

	// Session end handling.
	DrainDelay time.Duration

	LogLevel string
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Store:            StoreFile,
		OrdersPath:       DefaultOrdersPath,
		AutoSeed:         true,
		AMQPExchange:     DefaultAMQPExchange,
		ResponseMode:     ModeStructured,
		DashboardEnabled: true,
		DashboardPort:    DefaultDashboardPort,
		PollInterval:     DefaultPollInterval,
		DrainDelay:       DefaultDrainDelay,
		LLM:              "gemini-2.0-flash",
		LogLevel:         "info",
	}
}

// LoadEnv applies environment overrides. Call it before flag parsing so flags win.
func (c *Config) LoadEnv() {
	c.APIKey = envOr("ELEVENLABS_API_KEY", c.APIKey)
	c.AgentID = envOr("ELEVENLABS_AGENT_ID", c.AgentID)
	c.VoiceID = envOr("ELEVENLABS_VOICE_ID", c.VoiceID)
	c.Store = envOr("PIZZA_STORE", c.Store)
	c.OrdersPath = envOr("PIZZA_ORDERS_PATH", c.OrdersPath)
	c.DatabaseURL = envOr("DATABASE_URL", c.DatabaseURL)
	c.AMQPURL = envOr("AMQP_URL", c.AMQPURL)
	c.ResponseMode = envOr("PIZZA_RESPONSE_MODE", c.ResponseMode)
	c.DashboardPort = envOr("DASHBOARD_PORT", c.DashboardPort)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)

	if v := os.Getenv("PIZZA_AUTO_SEED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.AutoSeed = b
		}
	}
	if v := os.Getenv("PIZZA_DRAIN_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.DrainDelay = d
		}
	}
}

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return &ConfigError{Field: "APIKey", Message: "ELEVENLABS_API_KEY environment variable is required"}
	}
	if c.AgentID == "" && !c.CreateAgent {
		return &ConfigError{Field: "AgentID", Message: "ELEVENLABS_AGENT_ID is required unless -create-agent is set"}
	}
	if c.CreateAgent && c.VoiceID == "" {
		return &ConfigError{Field: "VoiceID", Message: "ELEVENLABS_VOICE_ID is required with -create-agent"}
	}

	switch c.Store {
	case StoreFile:
		if strings.TrimSpace(c.OrdersPath) == "" {
			return &ConfigError{Field: "OrdersPath", Message: "orders path must not be empty"}
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return &ConfigError{Field: "DatabaseURL", Message: "DATABASE_URL is required for the postgres store"}
		}
	default:
		return &ConfigError{Field: "Store", Message: fmt.Sprintf("unknown store %q (want file or postgres)", c.Store)}
	}

	switch c.ResponseMode {
	case ModeStructured, ModeSpeech:
	default:
		return &ConfigError{Field: "ResponseMode", Message: fmt.Sprintf("unknown response mode %q (want structured or speech)", c.ResponseMode)}
	}

	if c.DrainDelay < 0 {
		return &ConfigError{Field: "DrainDelay", Message: "drain delay must not be negative"}
	}
	return nil
}

// MaskedAPIKey returns the API key with the middle hidden, for console output.
func (c *Config) MaskedAPIKey() string {
	if len(c.APIKey) <= 14 {
		return "****"
	}
	return c.APIKey[:10] + "..." + c.APIKey[len(c.APIKey)-4:]
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
