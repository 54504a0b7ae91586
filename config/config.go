// Package config loads the core's own tunables into a typed Config struct
// via github.com/spf13/viper: bill worker pacing, retry schedules, pricing
// cache windows, provider secrets, and the connection strings the
// composition root (cmd/bridgeworker) wires into the Postgres, Redis, and
// Horizon clients. The HTTP-server environment surface is out of scope;
// this is consumed only by the binary that embeds the core.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cngnbridge/core/errors"
)

// BillWorkerConfig holds the bill-payment worker's tick settings (spec §4.I).
// billpayment.NewWorker does not read it; the worker uses its built-in
// 10s tick and 50-row batch.
type BillWorkerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff []int64       `mapstructure:"retry_backoff_seconds"`
}

// WebhookWorkerConfig holds the webhook retry sweep settings (spec §4.J).
// webhook.NewRetryWorker does not read it; the worker uses its built-in
// 60s tick, 50-row batch and 5-retry budget.
type WebhookWorkerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// PricingConfig tunes the rate/quote/fee pipeline (spec §4.D).
type PricingConfig struct {
	RateCacheTTL time.Duration `mapstructure:"rate_cache_ttl"`
	QuoteExpiry  time.Duration `mapstructure:"quote_expiry"`
	PegTolerance string        `mapstructure:"peg_tolerance"`
}

// ProviderSecrets holds the per-provider secret used to verify inbound
// webhook signatures and to authenticate outbound bill-payment calls.
type ProviderSecrets struct {
	FlutterwaveSecretHash string `mapstructure:"flutterwave_secret_hash"`
	FlutterwaveAPIKey     string `mapstructure:"flutterwave_api_key"`
	PaystackSecret        string `mapstructure:"paystack_secret"`
	VTPassAPIKey          string `mapstructure:"vtpass_api_key"`
	VTPassSecretKey       string `mapstructure:"vtpass_secret_key"`
}

// LedgerConfig is the system wallet and Horizon network this process
// submits and observes payments against.
type LedgerConfig struct {
	HorizonURL        string `mapstructure:"horizon_url"`
	NetworkPassphrase string `mapstructure:"network_passphrase"`
	SystemAddress     string `mapstructure:"system_address"`
	SystemSigningSeed string `mapstructure:"system_signing_seed"`
	CNGNIssuer        string `mapstructure:"cngn_issuer"`

	// SigningMode selects how the system wallet signs outgoing payments:
	// "secret" (default) holds the seed in-process via signers.FromSecret,
	// "callback" delegates to an external signing service over HTTP via
	// signers.FromCallback.
	SigningMode        string `mapstructure:"signing_mode"`
	SigningCallbackURL string `mapstructure:"signing_callback_url"`
}

// Config is the full set of recognized options from spec.md §6.
type Config struct {
	LogLevel string `mapstructure:"log_level"`

	Postgres struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"postgres"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Ledger     LedgerConfig        `mapstructure:"ledger"`
	BillWorker BillWorkerConfig    `mapstructure:"bill_worker"`
	Webhook    WebhookWorkerConfig `mapstructure:"webhook"`
	Pricing    PricingConfig       `mapstructure:"pricing"`
	Providers  ProviderSecrets     `mapstructure:"providers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("postgres.dsn", "postgres://localhost:5432/cngnbridge?sslmode=disable")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("ledger.horizon_url", "https://horizon-testnet.stellar.org")
	v.SetDefault("ledger.network_passphrase", "Test SDF Network ; September 2015")
	v.SetDefault("ledger.signing_mode", "secret")

	v.SetDefault("bill_worker.poll_interval", 10*time.Second)
	v.SetDefault("bill_worker.batch_size", 50)
	v.SetDefault("bill_worker.max_retries", 3)
	v.SetDefault("bill_worker.retry_backoff_seconds", []int64{10, 60, 300})

	v.SetDefault("webhook.poll_interval", 30*time.Second)
	v.SetDefault("webhook.batch_size", 50)
	v.SetDefault("webhook.max_retries", 5)
	v.SetDefault("webhook.retry_backoff", 60*time.Second)

	v.SetDefault("pricing.rate_cache_ttl", 60*time.Second)
	v.SetDefault("pricing.quote_expiry", 300*time.Second)
	v.SetDefault("pricing.peg_tolerance", "0.0001")
}

// Load reads configuration from (in ascending priority) defaults, an
// optional config file named configName under configPaths, and
// CNGNBRIDGE_-prefixed environment variables, e.g.
// CNGNBRIDGE_LEDGER_SYSTEM_ADDRESS overrides ledger.system_address.
//
// configName may be empty, in which case only defaults and the
// environment are consulted (cmd/migrate loads this way; cmd/bridgeworker
// also looks for a "bridgeworker" config file).
func Load(configName string, configPaths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CNGNBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)

	if configName != "" {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		for _, p := range configPaths {
			v.AddConfigPath(p)
		}
		if len(configPaths) == 0 {
			v.AddConfigPath(".")
		}
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, errors.NewConfigError(errors.CONFIG_INVALID, "failed to read config file", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.NewConfigError(errors.CONFIG_INVALID, "failed to unmarshal config", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Postgres.DSN == "" {
		return errors.NewConfigError(errors.CONFIG_INVALID, "postgres.dsn is required", nil)
	}
	if c.Ledger.SystemAddress == "" {
		return errors.NewConfigError(errors.CONFIG_INVALID, "ledger.system_address is required", nil)
	}
	if c.Ledger.CNGNIssuer == "" {
		return errors.NewConfigError(errors.CONFIG_INVALID, "ledger.cngn_issuer is required", nil)
	}
	switch c.Ledger.SigningMode {
	case "secret":
		if c.Ledger.SystemSigningSeed == "" {
			return errors.NewConfigError(errors.CONFIG_INVALID, "ledger.system_signing_seed is required when ledger.signing_mode is \"secret\"", nil)
		}
	case "callback":
		if c.Ledger.SigningCallbackURL == "" {
			return errors.NewConfigError(errors.CONFIG_INVALID, "ledger.signing_callback_url is required when ledger.signing_mode is \"callback\"", nil)
		}
	default:
		return errors.NewConfigError(errors.CONFIG_INVALID, "ledger.signing_mode must be \"secret\" or \"callback\"", nil)
	}
	if c.BillWorker.BatchSize <= 0 {
		return errors.NewConfigError(errors.CONFIG_INVALID, "bill_worker.batch_size must be positive", nil)
	}
	if len(c.BillWorker.RetryBackoff) == 0 {
		return errors.NewConfigError(errors.CONFIG_INVALID, "bill_worker.retry_backoff_seconds must not be empty", nil)
	}
	return nil
}
