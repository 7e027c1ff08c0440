package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	JWTSecret          string
	CORSAllowedOrigins []string

	// DisplaySessionID identifies the opener half of the station. Messages
	// with a different sender are dropped at the boundary.
	DisplaySessionID string
	// DisplayTopic is the broadcast topic for opener-to-display traffic.
	DisplayTopic string
	// ReplyTopic carries ready and step-complete signals back to the opener.
	ReplyTopic string
	// CartMirrorKey is the key the opener's cart module snapshots under.
	CartMirrorKey string

	TaxRateBps int

	HandshakeDelay  time.Duration
	SettleDelay     time.Duration
	ReceiptComplete time.Duration
	ReceiptDetails  time.Duration

	TerminalFailureRate float64
	TerminalStageDelay  time.Duration

	BackofficeBaseURL string
	OTLPEndpoint      string

	RateLimitRPM int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		DisplaySessionID: valueOrDefault(k.String("DISPLAY_SESSION_ID"), "pos-main"),
		DisplayTopic:     valueOrDefault(k.String("DISPLAY_TOPIC"), "display:messages"),
		ReplyTopic:       valueOrDefault(k.String("DISPLAY_REPLY_TOPIC"), "display:replies"),
		CartMirrorKey:    valueOrDefault(k.String("CART_MIRROR_KEY"), "display:cart"),

		TaxRateBps: int(k.Int64("PRICING_TAX_RATE_BPS")),

		HandshakeDelay:  parseDuration(k.String("TERMINAL_HANDSHAKE_DELAY"), "1500ms"),
		SettleDelay:     parseDuration(k.String("PAYMENT_SETTLE_DELAY"), "2s"),
		ReceiptComplete: parseDuration(k.String("RECEIPT_COMPLETE_DELAY"), "150ms"),
		ReceiptDetails:  parseDuration(k.String("RECEIPT_DETAILS_DELAY"), "1800ms"),

		TerminalFailureRate: k.Float64("TERMINAL_FAILURE_RATE"),
		TerminalStageDelay:  parseDuration(k.String("TERMINAL_STAGE_DELAY"), "600ms"),

		BackofficeBaseURL: k.String("BACKOFFICE_BASE_URL"),
		OTLPEndpoint:      k.String("OTEL_EXPORTER_OTLP_ENDPOINT"),

		RateLimitRPM: int(k.Int64("RATE_LIMIT_RPM")),
	}

	if cfg.TaxRateBps <= 0 {
		cfg.TaxRateBps = 825
	}
	if cfg.RateLimitRPM <= 0 {
		cfg.RateLimitRPM = 120
	}
	if cfg.TerminalFailureRate < 0 || cfg.TerminalFailureRate > 1 {
		return nil, errors.New("TERMINAL_FAILURE_RATE must be within [0,1]")
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}
