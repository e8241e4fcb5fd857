// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/mailbroker/internal/domain/model"
)

// Session backends accepted by MAILBROKER_SESSION_BACKEND.
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// PaymentAccount is an out-of-band account users pay into before submitting a
// payment reference.
type PaymentAccount struct {
	Name   string
	Number string
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr      string
	DBPath          string
	UnitPrice       model.Money
	Currency        string
	VerifyURL       string
	VerifyPurpose   string
	VerifyTimeout   time.Duration
	AdminToken      string
	SecretKey       []byte
	SessionBackend  string
	RedisAddr       string
	SessionTTL      time.Duration
	LowStock        int
	PaymentAccounts []PaymentAccount
}

// HasVerifier returns true when an inbox-check endpoint is configured.
func (c *Config) HasVerifier() bool {
	return c.VerifyURL != ""
}

// HasAdmin returns true when operator endpoints are enabled.
func (c *Config) HasAdmin() bool {
	return c.AdminToken != ""
}

// Load reads configuration from environment variables and returns a validated Config.
// Every variable is optional. Invalid values fail fast.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:      envOr("MAILBROKER_LISTEN_ADDR", "127.0.0.1:8080"),
		DBPath:          envOr("MAILBROKER_DB_PATH", "mailbroker.db"),
		Currency:        envOr("MAILBROKER_CURRENCY", "BDT"),
		VerifyURL:       os.Getenv("MAILBROKER_VERIFY_URL"),
		VerifyPurpose:   envOr("MAILBROKER_VERIFY_PURPOSE", "facebook"),
		AdminToken:      os.Getenv("MAILBROKER_ADMIN_TOKEN"),
		SessionBackend:  envOr("MAILBROKER_SESSION_BACKEND", SessionBackendMemory),
		RedisAddr:       envOr("MAILBROKER_REDIS_ADDR", "127.0.0.1:6379"),
		PaymentAccounts: []PaymentAccount{},
	}

	price := envOr("MAILBROKER_UNIT_PRICE", "2.00")
	unitPrice, err := model.ParseMoney(price)
	if err != nil || unitPrice <= 0 {
		return nil, fmt.Errorf("MAILBROKER_UNIT_PRICE has invalid amount %q", price)
	}
	cfg.UnitPrice = unitPrice

	if cfg.VerifyTimeout, err = durationEnv("MAILBROKER_VERIFY_TIMEOUT", 20*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = durationEnv("MAILBROKER_SESSION_TTL", 30*time.Minute); err != nil {
		return nil, err
	}

	cfg.LowStock = 10
	if v, ok := os.LookupEnv("MAILBROKER_LOW_STOCK"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("MAILBROKER_LOW_STOCK has invalid value %q", v)
		}
		cfg.LowStock = n
	}

	switch cfg.SessionBackend {
	case SessionBackendMemory, SessionBackendRedis:
	default:
		return nil, fmt.Errorf("MAILBROKER_SESSION_BACKEND must be %q or %q, got %q",
			SessionBackendMemory, SessionBackendRedis, cfg.SessionBackend)
	}

	if v := os.Getenv("MAILBROKER_SECRET_KEY"); v != "" {
		key, err := hex.DecodeString(v)
		if err != nil || len(key) != 32 {
			return nil, fmt.Errorf("MAILBROKER_SECRET_KEY must be 64 hex characters")
		}
		cfg.SecretKey = key
	}

	if v := os.Getenv("MAILBROKER_PAYMENT_ACCOUNTS"); v != "" {
		for _, entry := range strings.Split(v, ",") {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			name, number, ok := strings.Cut(entry, "=")
			name, number = strings.TrimSpace(name), strings.TrimSpace(number)
			if !ok || name == "" || number == "" {
				return nil, fmt.Errorf("MAILBROKER_PAYMENT_ACCOUNTS entry %q is not name=number", entry)
			}
			cfg.PaymentAccounts = append(cfg.PaymentAccounts, PaymentAccount{Name: name, Number: number})
		}
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}
