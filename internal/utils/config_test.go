package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benmeehan/signal-agent/internal/constants"
	"github.com/benmeehan/signal-agent/internal/mocks"
	"github.com/benmeehan/signal-agent/pkg/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  url: wss://plant.example.com/ws
auth:
  enabled: true
  login_url: https://plant.example.com/login
  username: operator
  password: secret
  base_delay: 2s
`)

	cfg, err := LoadConfig(path, file.NewFileService())
	require.NoError(t, err)

	assert.Equal(t, "wss://plant.example.com/ws", cfg.Server.URL)
	assert.Equal(t, constants.DefaultTokenParam, cfg.Server.TokenParam)
	assert.Equal(t, constants.DefaultHandoffGrace, cfg.Server.HandoffGrace)
	assert.Equal(t, 2*time.Second, cfg.Auth.BaseDelay)
	assert.Equal(t, constants.DefaultMaxDelay, cfg.Auth.MaxDelay)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "signals", cfg.Bridge.Topic)
	assert.Equal(t, 4, cfg.Bridge.Workers)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := writeConfig(t, `
server:
  url: http://plant.example.com/ws
auth:
  enabled: true
logging:
  format: xml
bridge:
  enabled: true
  qos: 3
`)

	_, err := LoadConfig(path, file.NewFileService())
	require.Error(t, err)
	for _, want := range []string{"unsupported scheme", "auth.login_url", "logging.format", "bridge.broker", "bridge.qos"} {
		assert.ErrorContains(t, err, want)
	}
}

func TestLoadConfig_ReadError(t *testing.T) {
	files := new(mocks.MockFileOperations)
	files.On("ReadYamlFile", "config.yaml", mock.Anything).Return(errors.New("permission denied"))

	_, err := LoadConfig("config.yaml", files)
	assert.EqualError(t, err, "permission denied")
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.False(t, cfg.Auth.Enabled)
	assert.Equal(t, ":9090", cfg.Status.Address)
}

func TestDefaultConfig_RoundTrip(t *testing.T) {
	fs := file.NewFileService()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, fs.WriteYamlFile(path, DefaultConfig()))

	cfg, err := LoadConfig(path, fs)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestValidate_MissingURL(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	assert.ErrorContains(t, cfg.Validate(), "server.url is required")
}

func TestValidate_DelayOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.Enabled = true
	cfg.Auth.BaseDelay = time.Minute
	cfg.Auth.MaxDelay = time.Second
	assert.ErrorContains(t, cfg.Validate(), "auth.max_delay")
}
