package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	HTTPAddr        string
	DatabaseURL     string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	JWTSecret       string
	ServiceToken    string
	LogLevel        string
	LogFormat       string
	ViewCacheTTL    time.Duration
	ShutdownTimeout time.Duration
	ConsumerName    string
	Ledger          LedgerConfig
	Paystack        PaystackConfig
}

// LedgerConfig holds the posting limits and policies applied by the ledger.
type LedgerConfig struct {
	Currency             string
	MinTransfer          decimal.Decimal
	MaxTransfer          decimal.Decimal
	MinTopUp             decimal.Decimal
	SignupBonus          decimal.Decimal
	RequirePIN           bool
	DepositsBypassFreeze bool
	PINMaxAttempts       int
	PINLockDuration      time.Duration
}

type PaystackConfig struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	CallbackURL   string
	Timeout       time.Duration
}

// DefaultLedgerConfig returns the limits used when no override is set.
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		Currency:             "NGN",
		MinTransfer:          decimal.RequireFromString("1.00"),
		MaxTransfer:          decimal.RequireFromString("100000.00"),
		MinTopUp:             decimal.RequireFromString("100.00"),
		SignupBonus:          decimal.Zero,
		RequirePIN:           false,
		DepositsBypassFreeze: true,
		PINMaxAttempts:       3,
		PINLockDuration:      30 * time.Minute,
	}
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	defaults := DefaultLedgerConfig()
	cfg := &Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		ServiceToken:  getEnv("SERVICE_TOKEN", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		ConsumerName:  getEnv("CONSUMER_NAME", hostname()),
		Paystack: PaystackConfig{
			BaseURL:     getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
			SecretKey:   getEnv("PAYSTACK_SECRET_KEY", ""),
			CallbackURL: getEnv("PAYSTACK_CALLBACK_URL", ""),
		},
	}
	cfg.Paystack.WebhookSecret = getEnv("PAYSTACK_WEBHOOK_SECRET", cfg.Paystack.SecretKey)

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.ViewCacheTTL, err = getEnvDuration("VIEW_CACHE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Paystack.Timeout, err = getEnvDuration("PAYSTACK_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}

	ledger := defaults
	ledger.Currency = getEnv("LEDGER_CURRENCY", defaults.Currency)
	if ledger.MinTransfer, err = getEnvDecimal("LEDGER_MIN_TRANSFER", defaults.MinTransfer); err != nil {
		return nil, err
	}
	if ledger.MaxTransfer, err = getEnvDecimal("LEDGER_MAX_TRANSFER", defaults.MaxTransfer); err != nil {
		return nil, err
	}
	if ledger.MinTopUp, err = getEnvDecimal("LEDGER_MIN_TOPUP", defaults.MinTopUp); err != nil {
		return nil, err
	}
	if ledger.SignupBonus, err = getEnvDecimal("LEDGER_SIGNUP_BONUS", defaults.SignupBonus); err != nil {
		return nil, err
	}
	if ledger.RequirePIN, err = getEnvBool("LEDGER_REQUIRE_PIN", defaults.RequirePIN); err != nil {
		return nil, err
	}
	if ledger.DepositsBypassFreeze, err = getEnvBool("LEDGER_DEPOSITS_BYPASS_FREEZE", defaults.DepositsBypassFreeze); err != nil {
		return nil, err
	}
	if ledger.PINMaxAttempts, err = getEnvInt("LEDGER_PIN_MAX_ATTEMPTS", defaults.PINMaxAttempts); err != nil {
		return nil, err
	}
	if ledger.PINLockDuration, err = getEnvDuration("LEDGER_PIN_LOCK_DURATION", defaults.PINLockDuration); err != nil {
		return nil, err
	}
	cfg.Ledger = ledger

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return c.Ledger.Validate()
}

func (l LedgerConfig) Validate() error {
	if !l.MinTransfer.IsPositive() {
		return fmt.Errorf("minimum transfer must be positive, got %s", l.MinTransfer)
	}
	if l.MaxTransfer.LessThan(l.MinTransfer) {
		return fmt.Errorf("maximum transfer %s is below minimum %s", l.MaxTransfer, l.MinTransfer)
	}
	if l.MinTopUp.IsNegative() || l.SignupBonus.IsNegative() {
		return fmt.Errorf("top-up minimum and signup bonus must not be negative")
	}
	if l.PINMaxAttempts < 1 {
		return fmt.Errorf("PIN max attempts must be at least 1, got %d", l.PINMaxAttempts)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvDecimal(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "wallet-service"
	}
	return name
}
