// Package config loads and exposes application configuration (TOML).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Orchestration modes selectable via [webchat] mode.
const (
	ModeDelegated = "delegated"
	ModeDirect    = "direct"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath      = "config.toml"
	DefaultHTTPAddr        = ":8080"
	DefaultTokenTTLSeconds = 3600
	DefaultBaseURL         = "https://conversations.twilio.com"
	DefaultOrchestratorURL = "https://flex-api.twilio.com/v2/WebChats"
	DefaultTimeoutSeconds  = 10
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log           LogConfig           `toml:"log"`
	Server        ServerConfig        `toml:"server"`
	Token         TokenConfig         `toml:"token"`
	Conversations ConversationsConfig `toml:"conversations"`
	Webchat       WebchatConfig       `toml:"webchat"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP server listen address. HTTP_ADDR overrides it.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// TokenConfig holds the credential signing key pair, the conversations
// service the chat grant is scoped to, and the credential lifetime.
type TokenConfig struct {
	AccountSID string `toml:"account_sid"`
	APIKey     string `toml:"api_key"`
	APISecret  string `toml:"api_secret"`
	ServiceSID string `toml:"service_sid"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

// ConversationsConfig holds REST API endpoints and credentials for the
// conversations platform, plus the routing SIDs each orchestration mode uses.
type ConversationsConfig struct {
	BaseURL         string `toml:"base_url"`
	OrchestratorURL string `toml:"orchestrator_url"`
	AccountSID      string `toml:"account_sid"`
	AuthToken       string `toml:"auth_token"`
	AddressSID      string `toml:"address_sid"`
	FlowSID         string `toml:"flow_sid"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// WebchatConfig selects the orchestration strategy ("delegated" or "direct").
type WebchatConfig struct {
	Mode string `toml:"mode"`
}

// Load reads and parses the TOML config file at path and applies default values
// for missing fields. Call Validate before handing the result to components.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Token: TokenConfig{
			TTLSeconds: DefaultTokenTTLSeconds,
		},
		Conversations: ConversationsConfig{
			BaseURL:         DefaultBaseURL,
			OrchestratorURL: DefaultOrchestratorURL,
			TimeoutSeconds:  DefaultTimeoutSeconds,
		},
		Webchat: WebchatConfig{
			Mode: ModeDelegated,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	if value := os.Getenv("HTTP_ADDR"); value != "" {
		cfg.Server.Addr = value
	}

	return cfg, nil
}

// Validate checks that the fields each configured mode depends on are present.
// Malformed configuration is a startup failure, never a per-request one.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Token.AccountSID) == "" {
		return errors.New("token account_sid is required")
	}
	if strings.TrimSpace(c.Token.APIKey) == "" {
		return errors.New("token api_key is required")
	}
	if strings.TrimSpace(c.Token.APISecret) == "" {
		return errors.New("token api_secret is required")
	}
	if strings.TrimSpace(c.Token.ServiceSID) == "" {
		return errors.New("token service_sid is required")
	}
	if c.Token.TTLSeconds <= 0 {
		return errors.New("token ttl_seconds must be positive")
	}
	if strings.TrimSpace(c.Conversations.AccountSID) == "" {
		return errors.New("conversations account_sid is required")
	}
	if strings.TrimSpace(c.Conversations.AuthToken) == "" {
		return errors.New("conversations auth_token is required")
	}

	switch c.Webchat.Mode {
	case ModeDelegated:
		if strings.TrimSpace(c.Conversations.AddressSID) == "" {
			return errors.New("conversations address_sid is required in delegated mode")
		}
	case ModeDirect:
		if strings.TrimSpace(c.Conversations.FlowSID) == "" {
			return errors.New("conversations flow_sid is required in direct mode")
		}
	default:
		return fmt.Errorf("invalid webchat mode: %s", c.Webchat.Mode)
	}

	return nil
}
