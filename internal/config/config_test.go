package config

import (
	"errors"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	c := Default()
	if c.OrdersPath != "orders.json" {
		t.Errorf("expected orders.json, got %s", c.OrdersPath)
	}
	if c.ResponseMode != ModeStructured {
		t.Errorf("expected structured mode, got %s", c.ResponseMode)
	}
	if c.DrainDelay != 2*time.Second {
		t.Errorf("expected 2s drain delay, got %v", c.DrainDelay)
	}
	if !c.AutoSeed {
		t.Error("auto seed should default to true")
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "sk_test")
	t.Setenv("ELEVENLABS_AGENT_ID", "agent_1")
	t.Setenv("PIZZA_RESPONSE_MODE", "speech")
	t.Setenv("PIZZA_AUTO_SEED", "false")
	t.Setenv("PIZZA_DRAIN_DELAY", "500ms")
	t.Setenv("PIZZA_ORDERS_PATH", "/tmp/orders.json")

	c := Default()
	c.LoadEnv()

	if c.APIKey != "sk_test" || c.AgentID != "agent_1" {
		t.Errorf("credentials not loaded: %q %q", c.APIKey, c.AgentID)
	}
	if c.ResponseMode != ModeSpeech {
		t.Errorf("expected speech, got %s", c.ResponseMode)
	}
	if c.AutoSeed {
		t.Error("expected auto seed disabled")
	}
	if c.DrainDelay != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", c.DrainDelay)
	}
	if c.OrdersPath != "/tmp/orders.json" {
		t.Errorf("unexpected orders path %s", c.OrdersPath)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Default()
		c.APIKey = "sk_test"
		c.AgentID = "agent_1"
		return c
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing key", func(c *Config) { c.APIKey = "" }, "APIKey"},
		{"missing agent", func(c *Config) { c.AgentID = "" }, "AgentID"},
		{"create agent without voice", func(c *Config) { c.AgentID = ""; c.CreateAgent = true }, "VoiceID"},
		{"create agent with voice", func(c *Config) { c.AgentID = ""; c.CreateAgent = true; c.VoiceID = "v" }, ""},
		{"unknown store", func(c *Config) { c.Store = "redis" }, "Store"},
		{"postgres without url", func(c *Config) { c.Store = StorePostgres }, "DatabaseURL"},
		{"empty orders path", func(c *Config) { c.OrdersPath = "  " }, "OrdersPath"},
		{"unknown mode", func(c *Config) { c.ResponseMode = "mixed" }, "ResponseMode"},
		{"negative drain", func(c *Config) { c.DrainDelay = -time.Second }, "DrainDelay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, cfgErr.Field)
			}
		})
	}
}

func TestMaskedAPIKey(t *testing.T) {
	c := Config{APIKey: "sk_66f0aea5b12ee6c4587e"}
	if got := c.MaskedAPIKey(); got != "sk_66f0aea...587e" {
		t.Errorf("unexpected mask %s", got)
	}
	c.APIKey = "short"
	if got := c.MaskedAPIKey(); got != "****" {
		t.Errorf("unexpected mask %s", got)
	}
}
