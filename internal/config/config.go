// Package config loads the terminal's settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	WidgetBridge    = "bridge"
	WidgetSimulated = "simulated"
)

type Config struct {
	HTTPPort           string
	APIBaseURL         string
	APIToken           string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64

	TaxRate        decimal.Decimal
	Currency       string
	CurrencySymbol string

	PaymentProviderKey string
	PaymentWidget      string
	PaymentTTL         time.Duration
	PaymentSimSecret   string

	RedisAddr         string
	RedisPassword     string
	CatalogCacheScope string

	JournalDriver string
	JournalDSN    string

	KafkaBrokers       []string
	KafkaTopic         string
	CatalogEventsTopic string
	CatalogEventsGroup string

	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration

	ReceiptPrinterPath string
	LogLevel           string
}

// Load reads the environment. Unset keys fall back to defaults; malformed values are errors.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		APIBaseURL:         getEnv("API_BASE_URL", "http://localhost:5000/api/v1.0"),
		APIToken:           getEnv("API_TOKEN", ""),
		MaxRequestBodySize: 1 << 20, // 1MB
		Currency:           getEnv("CURRENCY", "INR"),
		CurrencySymbol:     getEnv("CURRENCY_SYMBOL", "₹"),
		PaymentProviderKey: getEnv("PAYMENT_PROVIDER_KEY", ""),
		PaymentWidget:      strings.ToLower(getEnv("PAYMENT_WIDGET", WidgetBridge)),
		PaymentSimSecret:   getEnv("PAYMENT_SIM_SECRET", "billflow-dev-secret"),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		CatalogCacheScope:  getEnv("CATALOG_CACHE_SCOPE", "default"),
		JournalDriver:      strings.ToLower(getEnv("JOURNAL_DRIVER", "sqlite")),
		JournalDSN:         getEnv("JOURNAL_DSN", "billflow.db"),
		KafkaBrokers:       splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "billflow-orders"),
		CatalogEventsTopic: getEnv("CATALOG_EVENTS_TOPIC", ""),
		CatalogEventsGroup: getEnv("CATALOG_EVENTS_GROUP", defaultGroup()),
		ReceiptPrinterPath: getEnv("RECEIPT_PRINTER_PATH", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}

	var errs []error
	cfg.RequestTimeout = getDuration("REQUEST_TIMEOUT", 30*time.Second, &errs)
	cfg.ShutdownTimeout = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second, &errs)
	cfg.PaymentTTL = getDuration("PAYMENT_TTL", 15*time.Minute, &errs)
	cfg.BreakerTimeout = getDuration("BREAKER_TIMEOUT", 30*time.Second, &errs)

	rate, err := decimal.NewFromString(getEnv("TAX_RATE", "0.05"))
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("TAX_RATE: %w", err))
	case rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)):
		errs = append(errs, fmt.Errorf("TAX_RATE: %s is outside [0, 1)", rate))
	}
	cfg.TaxRate = rate

	failures, err := strconv.ParseUint(getEnv("BREAKER_MAX_FAILURES", "5"), 10, 32)
	if err != nil || failures == 0 {
		errs = append(errs, fmt.Errorf("BREAKER_MAX_FAILURES: must be a positive integer"))
	}
	cfg.BreakerMaxFailures = uint32(failures)

	if cfg.PaymentWidget != WidgetBridge && cfg.PaymentWidget != WidgetSimulated {
		errs = append(errs, fmt.Errorf("PAYMENT_WIDGET: unknown widget %q", cfg.PaymentWidget))
	}
	if cfg.JournalDriver != "sqlite" && cfg.JournalDriver != "postgres" {
		errs = append(errs, fmt.Errorf("JOURNAL_DRIVER: unknown driver %q", cfg.JournalDriver))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// OnlinePaymentEnabled is false when no provider key is configured.
func (c *Config) OnlinePaymentEnabled() bool {
	return c.PaymentProviderKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return defaultValue
	}
	return d
}

// defaultGroup gives each terminal its own consumer group so every terminal sees every event.
func defaultGroup() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return "billflow-pos-" + host
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
