package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.Equal(t, "127.0.0.1:9001", cfg.HTTPAddr)
	assert.Equal(t, protocol.MaxFrameSize, cfg.MaxFrameSize)
	assert.Equal(t, 10*time.Second, cfg.ShutdownGrace)
}

func TestNewConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("CHAT_LISTEN_ADDR", "0.0.0.0:7000")
	t.Setenv("CHAT_HTTP_ADDR", "0.0.0.0:7001")
	t.Setenv("CHAT_ALLOWED_ORIGINS", "http://example.com, https://chat.example.com")
	t.Setenv("CHAT_MAX_FRAME_SIZE", "2048")
	t.Setenv("CHAT_SHUTDOWN_GRACE", "5")

	cfg := NewConfigFromEnv()

	assert.Equal(t, "0.0.0.0:7000", cfg.ListenAddr)
	assert.Equal(t, "0.0.0.0:7001", cfg.HTTPAddr)
	assert.Equal(t, []string{"http://example.com", "https://chat.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 2048, cfg.MaxFrameSize)
	assert.Equal(t, 5*time.Second, cfg.ShutdownGrace)
}

func TestNewConfigFromEnvEmptyHTTPAddrDisablesGateway(t *testing.T) {
	t.Setenv("CHAT_HTTP_ADDR", "")

	cfg := NewConfigFromEnv()
	assert.Equal(t, "", cfg.HTTPAddr)
}

func TestNewConfigFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("CHAT_MAX_FRAME_SIZE", "not-a-number")
	t.Setenv("CHAT_SHUTDOWN_GRACE", "-3")

	cfg := NewConfigFromEnv()

	assert.Equal(t, protocol.MaxFrameSize, cfg.MaxFrameSize)
	assert.Equal(t, 10*time.Second, cfg.ShutdownGrace)
}

func TestSanitizeConfigAppliesFloors(t *testing.T) {
	cfg := sanitizeConfig(Config{})

	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.Equal(t, protocol.MaxFrameSize, cfg.MaxFrameSize)
	assert.Equal(t, 10*time.Second, cfg.ShutdownGrace)
}
