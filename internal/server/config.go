// Package server provides configuration helpers that define runtime defaults
// and validation for the chat service.
package server

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// Config holds the server configuration settings.
type Config struct {
	// ListenAddr is the TCP address the chat protocol listens on.
	ListenAddr string
	// HTTPAddr is the address of the WebSocket gateway and health endpoint.
	// Empty disables the gateway.
	HTTPAddr string
	// AllowedOrigins restricts WebSocket upgrades; "*" allows any origin.
	AllowedOrigins []string
	// MaxFrameSize caps a single inbound protocol frame in bytes.
	MaxFrameSize int
	// ShutdownGrace bounds how long shutdown waits for live sessions.
	ShutdownGrace time.Duration
}

func defaultConfig() Config {
	return Config{
		ListenAddr: "127.0.0.1:9000",
		HTTPAddr:   "127.0.0.1:9001",
		AllowedOrigins: []string{
			"http://localhost:9001",
		},
		MaxFrameSize:  protocol.MaxFrameSize,
		ShutdownGrace: 10 * time.Second,
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:9000"
	}

	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = protocol.MaxFrameSize
	}

	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}

	return cfg
}

// NewConfig creates a Config instance populated with default values for all
// settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	// Load CHAT_LISTEN_ADDR
	if addr := os.Getenv("CHAT_LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}

	// Load CHAT_HTTP_ADDR (set empty to disable the gateway)
	if addr, ok := os.LookupEnv("CHAT_HTTP_ADDR"); ok {
		cfg.HTTPAddr = addr
	}

	// Load CHAT_ALLOWED_ORIGINS
	if origins := os.Getenv("CHAT_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	// Load CHAT_MAX_FRAME_SIZE
	if maxSize := os.Getenv("CHAT_MAX_FRAME_SIZE"); maxSize != "" {
		cfg.MaxFrameSize = parseIntValue(maxSize, cfg.MaxFrameSize)
	}

	// Load CHAT_SHUTDOWN_GRACE (seconds)
	if grace := os.Getenv("CHAT_SHUTDOWN_GRACE"); grace != "" {
		cfg.ShutdownGrace = parseGracePeriod(grace, cfg.ShutdownGrace)
	}

	sanitized := sanitizeConfig(cfg)
	return &sanitized
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseGracePeriod(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
