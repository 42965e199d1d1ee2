package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang-wa-broadcast/internal/app"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr        string
	GatewayURL      string
	AMQPURL         string // Empty disables the progress stream
	LogLevel        string
	DefaultDialCode string
	AllowedOrigins  string
	MockGatewayAddr string

	Send         app.ModeConfig
	Verify       app.ModeConfig
	LegacyVerify app.ModeConfig

	RetryBackoff       time.Duration
	BatchInterval      time.Duration
	StatusPollInterval time.Duration

	RateLimit float64 // Operator API requests per second per client IP
	RateBurst int
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the environment, applying defaults for
// unset keys. Malformed numbers and durations are reported, not ignored.
func FromEnv() (Config, error) {
	p := parser{}
	cfg := Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		GatewayURL:      getenv("GATEWAY_URL", "http://localhost:3001"),
		AMQPURL:         os.Getenv("AMQP_URL"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		DefaultDialCode: getenv("DEFAULT_DIAL_CODE", "91"),
		AllowedOrigins:  getenv("ALLOWED_ORIGINS", "*"),
		MockGatewayAddr: getenv("MOCK_GATEWAY_ADDR", ":3001"),

		Send: app.ModeConfig{
			MaxRecipients: p.int("SEND_MAX_RECIPIENTS", 100),
			BatchSize:     p.int("SEND_BATCH_SIZE", 0),
			Timeout:       p.duration("SEND_TIMEOUT", 30*time.Second),
		},
		Verify: app.ModeConfig{
			MaxRecipients: p.int("VERIFY_MAX_RECIPIENTS", 100),
			BatchSize:     p.int("VERIFY_BATCH_SIZE", 20),
			Timeout:       p.duration("VERIFY_TIMEOUT", 300*time.Second),
		},
		LegacyVerify: app.ModeConfig{
			MaxRecipients: p.int("LEGACY_VERIFY_MAX_RECIPIENTS", 10),
			BatchSize:     0,
			Timeout:       p.duration("LEGACY_VERIFY_TIMEOUT", 30*time.Second),
		},

		RetryBackoff:       p.duration("RETRY_BACKOFF", 5*time.Second),
		BatchInterval:      p.duration("BATCH_INTERVAL", 0),
		StatusPollInterval: p.duration("STATUS_POLL_INTERVAL", 10*time.Second),

		RateLimit: p.float("API_RATE_LIMIT", 5),
		RateBurst: p.int("API_RATE_BURST", 10),
	}
	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Dispatch returns the dispatch service settings.
func (c Config) Dispatch() app.Config {
	return app.Config{
		Send:            c.Send,
		Verify:          c.Verify,
		LegacyVerify:    c.LegacyVerify,
		BatchInterval:   c.BatchInterval,
		DefaultDialCode: c.DefaultDialCode,
	}
}

// Origins splits AllowedOrigins on commas.
func (c Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

type parser struct {
	errs []error
}

func (p *parser) int(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("parse %s: %w", k, err))
		return def
	}
	return n
}

func (p *parser) float(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("parse %s: %w", k, err))
		return def
	}
	return f
}

func (p *parser) duration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("parse %s: %w", k, err))
		return def
	}
	return d
}
