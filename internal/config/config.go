// Package config loads process-wide settings: an optional .env file, an
// optional YAML file named by CONFIG_FILE, then environment variables on top.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/imrishuroy/go-payment-webhook/pkg/logger"
)

var (
	ErrMissingSigningSecret = errors.New("webhook signing secret is not configured")
	ErrMissingProcessorKey  = errors.New("payment processor credential is not configured")
	ErrMissingLedgerTable   = errors.New("ledger table is not configured")
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Webhook       WebhookConfig       `yaml:"webhook"`
	Payments      PaymentsConfig      `yaml:"payments"`
	Processor     ProcessorConfig     `yaml:"processor"`
	Ledger        LedgerConfig        `yaml:"ledger"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Log           logger.Config       `yaml:"log"`
}

type ServerConfig struct {
	Addr     string `yaml:"addr"`
	RunLocal bool   `yaml:"run_local"`
}

type WebhookConfig struct {
	SigningSecret string        `yaml:"signing_secret"`
	Tolerance     time.Duration `yaml:"tolerance"`
	EventType     string        `yaml:"event_type"`
}

// PaymentsConfig describes the single paid product. Amount and Currency price
// the checkout and fill in webhook payloads that omit them.
type PaymentsConfig struct {
	ProductCode string `yaml:"product_code"`
	Amount      int64  `yaml:"amount"`
	Currency    string `yaml:"currency"`
}

type ProcessorConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	ReturnURL  string        `yaml:"return_url"`
	CancelURL  string        `yaml:"cancel_url"`
	WebhookURL string        `yaml:"webhook_url"`
}

type LedgerConfig struct {
	TableName    string        `yaml:"table_name"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type NotificationsConfig struct {
	QueueURL string `yaml:"queue_url"`
}

type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
}

// Default returns the configuration used when nothing overrides a field.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Webhook: WebhookConfig{
			Tolerance: 5 * time.Minute,
			EventType: "payment.succeeded",
		},
		Payments: PaymentsConfig{
			ProductCode: "jungle-pass",
			Amount:      499,
			Currency:    "USD",
		},
		Processor: ProcessorConfig{
			Timeout: 10 * time.Second,
		},
		Ledger: LedgerConfig{
			TableName:    "payments-ledger",
			WriteTimeout: 5 * time.Second,
		},
		Log: logger.Config{Level: "info"},
	}
}

// Load builds the configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Addr, "HTTP_ADDR")
	setString(&cfg.Webhook.SigningSecret, "WEBHOOK_SIGNING_SECRET")
	setString(&cfg.Webhook.EventType, "WEBHOOK_EVENT_TYPE")
	setString(&cfg.Payments.ProductCode, "PAYMENTS_PRODUCT_CODE")
	setString(&cfg.Payments.Currency, "PAYMENTS_DEFAULT_CURRENCY")
	setString(&cfg.Processor.BaseURL, "PROCESSOR_BASE_URL")
	setString(&cfg.Processor.APIKey, "PROCESSOR_API_KEY")
	setString(&cfg.Processor.ReturnURL, "CHECKOUT_RETURN_URL")
	setString(&cfg.Processor.CancelURL, "CHECKOUT_CANCEL_URL")
	setString(&cfg.Processor.WebhookURL, "CHECKOUT_WEBHOOK_URL")
	setString(&cfg.Ledger.TableName, "LEDGER_TABLE")
	setString(&cfg.Notifications.QueueURL, "PAYMENTS_QUEUE_URL")
	setString(&cfg.Metrics.Namespace, "METRICS_NAMESPACE")
	setString(&cfg.Log.Level, "LOG_LEVEL")

	if v := os.Getenv("RUN_LOCAL"); v != "" {
		cfg.Server.RunLocal = v == "true"
	}
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		cfg.Log.Pretty = v == "true"
	}
	if v := os.Getenv("PAYMENTS_DEFAULT_AMOUNT"); v != "" {
		amount, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("PAYMENTS_DEFAULT_AMOUNT: %w", err)
		}
		cfg.Payments.Amount = amount
	}
	for env, dst := range map[string]*time.Duration{
		"WEBHOOK_TOLERANCE":    &cfg.Webhook.Tolerance,
		"PROCESSOR_TIMEOUT":    &cfg.Processor.Timeout,
		"LEDGER_WRITE_TIMEOUT": &cfg.Ledger.WriteTimeout,
	} {
		v := os.Getenv(env)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", env, err)
		}
		*dst = d
	}
	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// Validate reports every missing required setting, joined.
func (c *Config) Validate() error {
	var errs []error
	if c.Webhook.SigningSecret == "" {
		errs = append(errs, ErrMissingSigningSecret)
	}
	if c.Processor.APIKey == "" {
		errs = append(errs, ErrMissingProcessorKey)
	}
	if c.Ledger.TableName == "" {
		errs = append(errs, ErrMissingLedgerTable)
	}
	return errors.Join(errs...)
}

// MarshalZerologObject logs the configuration with credentials reduced to
// presence flags.
func (c *Config) MarshalZerologObject(e *zerolog.Event) {
	e.Str("addr", c.Server.Addr).
		Bool("run_local", c.Server.RunLocal).
		Bool("signing_secret_set", c.Webhook.SigningSecret != "").
		Dur("tolerance", c.Webhook.Tolerance).
		Str("event_type", c.Webhook.EventType).
		Str("product", c.Payments.ProductCode).
		Int64("default_amount", c.Payments.Amount).
		Str("default_currency", c.Payments.Currency).
		Str("processor_base_url", c.Processor.BaseURL).
		Bool("processor_key_set", c.Processor.APIKey != "").
		Str("ledger_table", c.Ledger.TableName).
		Bool("notifications", c.Notifications.QueueURL != "").
		Str("metrics_namespace", c.Metrics.Namespace)
}
