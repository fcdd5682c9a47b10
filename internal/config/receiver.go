package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"traveler/traveler/internal/verify"
)

// ReceiverConfig configures the standalone passive receiver. It is built
// entirely from the environment.
type ReceiverConfig struct {
	Host         string
	Port         int
	Path         string
	SharedSecret string
	// AuthMode is Open or SignatureOnly; RECEIVER_AUTH_MODE overrides the
	// default of SignatureOnly when a shared secret is set.
	AuthMode     verify.Mode
	AllowSources []string
	MaxBodyKB    int

	GatewayURL   string
	GatewayToken string
	SessionKey   string

	LogLevel zerolog.Level
}

// LoadReceiver reads the receiver settings from the environment.
func LoadReceiver() (*ReceiverConfig, error) {
	logLevel, _ := zerolog.ParseLevel(DefaultLogLevel)

	cfg := &ReceiverConfig{
		Host:         GetEnvString("HOST", ""),
		Port:         GetEnvInt("PORT", DefaultReceiverPort),
		Path:         GetEnvString("WEBHOOK_PATH", DefaultWebhookPath),
		SharedSecret: GetEnvString("RECEIVER_SHARED_SECRET", ""),
		AllowSources: GetEnvList("ALLOW_SOURCES"),
		MaxBodyKB:    GetEnvInt("RECEIVER_MAX_BODY_KB", DefaultReceiverMaxBodyKB),
		GatewayURL:   GetEnvString("OPENCLAW_GATEWAY_URL", ""),
		GatewayToken: GetEnvString("OPENCLAW_GATEWAY_TOKEN", ""),
		SessionKey:   GetEnvString("OPENCLAW_SESSION_KEY", ""),
		LogLevel:     GetEnvLogLevel("RECEIVER_LOG_LEVEL", logLevel),
	}

	cfg.AuthMode = verify.ModeFor("", cfg.SharedSecret)
	if name := GetEnvString("RECEIVER_AUTH_MODE", ""); name != "" {
		mode, err := verify.ParseMode(name)
		if err != nil {
			return nil, configErrorf("RECEIVER_AUTH_MODE: %v", err)
		}
		cfg.AuthMode = mode
	}
	switch cfg.AuthMode {
	case verify.Open:
	case verify.SignatureOnly:
		if cfg.SharedSecret == "" {
			return nil, configErrorf("RECEIVER_AUTH_MODE=signature requires RECEIVER_SHARED_SECRET")
		}
	default:
		return nil, configErrorf("receiver supports open or signature auth, got %s", cfg.AuthMode)
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, configErrorf("PORT out of range: %d", cfg.Port)
	}
	if cfg.Path == "" || cfg.Path[0] != '/' {
		return nil, configErrorf("WEBHOOK_PATH must start with '/': %q", cfg.Path)
	}
	if cfg.MaxBodyKB <= 0 {
		return nil, configErrorf("RECEIVER_MAX_BODY_KB must be positive, got %d", cfg.MaxBodyKB)
	}
	return cfg, nil
}

// ListenAddr returns the formatted listen address for the HTTP server.
func (c *ReceiverConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MaxBodyBytes returns the request body limit in bytes.
func (c *ReceiverConfig) MaxBodyBytes() int64 {
	return int64(c.MaxBodyKB) * 1024
}

// GatewayEnabled reports whether events are relayed to the agent gateway.
func (c *ReceiverConfig) GatewayEnabled() bool {
	return c.GatewayURL != "" && c.GatewayToken != ""
}
