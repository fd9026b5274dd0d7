package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPAddr, cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, DefaultTokenTTLSeconds, cfg.Token.TTLSeconds)
	assert.Equal(t, DefaultBaseURL, cfg.Conversations.BaseURL)
	assert.Equal(t, DefaultOrchestratorURL, cfg.Conversations.OrchestratorURL)
	assert.Equal(t, ModeDelegated, cfg.Webchat.Mode)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[log]
level = "debug"
format = "json"

[server]
addr = ":9090"

[token]
account_sid = "AC123"
api_key = "SK123"
api_secret = "secret"
service_sid = "IS123"
ttl_seconds = 900

[conversations]
account_sid = "AC123"
auth_token = "token"
flow_sid = "FW123"

[webchat]
mode = "direct"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 900, cfg.Token.TTLSeconds)
	assert.Equal(t, "FW123", cfg.Conversations.FlowSID)
	assert.Equal(t, ModeDirect, cfg.Webchat.Mode)
	// Unset sections keep their defaults.
	assert.Equal(t, DefaultBaseURL, cfg.Conversations.BaseURL)

	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	base := Config{
		Token: TokenConfig{
			AccountSID: "AC123",
			APIKey:     "SK123",
			APISecret:  "secret",
			ServiceSID: "IS123",
			TTLSeconds: 3600,
		},
		Conversations: ConversationsConfig{
			AccountSID: "AC123",
			AuthToken:  "token",
			AddressSID: "IG123",
			FlowSID:    "FW123",
		},
		Webchat: WebchatConfig{Mode: ModeDelegated},
	}
	require.NoError(t, base.Validate())

	missingSecret := base
	missingSecret.Token.APISecret = ""
	assert.Error(t, missingSecret.Validate())

	zeroTTL := base
	zeroTTL.Token.TTLSeconds = 0
	assert.Error(t, zeroTTL.Validate())

	delegatedNoAddress := base
	delegatedNoAddress.Conversations.AddressSID = ""
	assert.Error(t, delegatedNoAddress.Validate())

	directNoFlow := base
	directNoFlow.Webchat.Mode = ModeDirect
	directNoFlow.Conversations.FlowSID = ""
	assert.Error(t, directNoFlow.Validate())

	badMode := base
	badMode.Webchat.Mode = "both"
	assert.Error(t, badMode.Validate())
}
