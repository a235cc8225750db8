package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gregtusar/futures-cli/pkg/secrets"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Shell    ShellConfig    `mapstructure:"shell"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	GCP      GCPConfig      `mapstructure:"gcp"`
}

type ExchangeConfig struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	Testnet   bool   `mapstructure:"testnet"`

	// Endpoint overrides, empty means the environment default.
	BaseURL   string `mapstructure:"base_url"`
	StreamURL string `mapstructure:"stream_url"`

	Timeout           time.Duration `mapstructure:"timeout"`
	RecvWindow        int64         `mapstructure:"recv_window"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	AlignQuantity     bool          `mapstructure:"align_quantity"`
}

type ShellConfig struct {
	Prompt     string `mapstructure:"prompt"`
	Banner     bool   `mapstructure:"banner"`
	WatchCount int    `mapstructure:"watch_count"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	File    string `mapstructure:"file"`
	Console bool   `mapstructure:"console"`
}

type GCPConfig struct {
	ProjectID       string              `mapstructure:"project_id"`
	UseSecrets      bool                `mapstructure:"use_secrets"`
	CredentialsFile string              `mapstructure:"credentials_file"`
	SecretNames     secrets.SecretNames `mapstructure:"secret_names"`
}

// SecretSource resolves named secrets, falling back to a default.
type SecretSource interface {
	GetSecretWithDefault(ctx context.Context, secretName, defaultValue string) string
	Close() error
}

var newSecretSource = func(ctx context.Context, cfg GCPConfig, logger *logrus.Logger) (SecretSource, error) {
	return secrets.NewGCPSecretManager(ctx, cfg.ProjectID, cfg.CredentialsFile, logger)
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"api-key":    "exchange.api_key",
	"api-secret": "exchange.api_secret",
	"testnet":    "exchange.testnet",
	"log-level":  "logging.level",
	"log-file":   "logging.file",
}

// Load merges, from lowest to highest precedence: defaults, the config
// file, .env files, the environment and flags. flags may be nil.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/futures-cli")
	}

	v.SetEnvPrefix("FUTURES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.GCP.UseSecrets && config.GCP.ProjectID != "" {
		ctx := context.Background()
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		if err := loadSecretsFromGCP(ctx, &config, logger); err != nil {
			return nil, fmt.Errorf("error loading secrets from GCP: %w", err)
		}
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Exchange defaults
	v.SetDefault("exchange.api_key", "")
	v.SetDefault("exchange.api_secret", "")
	v.SetDefault("exchange.testnet", true)
	v.SetDefault("exchange.base_url", "")
	v.SetDefault("exchange.stream_url", "")
	v.SetDefault("exchange.timeout", 30*time.Second)
	v.SetDefault("exchange.recv_window", 5000)
	v.SetDefault("exchange.requests_per_second", 10)
	v.SetDefault("exchange.align_quantity", false)

	// Shell defaults
	v.SetDefault("shell.prompt", "futures> ")
	v.SetDefault("shell.banner", true)
	v.SetDefault("shell.watch_count", 10)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.console", false)

	// GCP defaults
	v.SetDefault("gcp.use_secrets", false)
	v.SetDefault("gcp.project_id", "")
	v.SetDefault("gcp.credentials_file", "")

	secretNames := secrets.DefaultSecretNames()
	v.SetDefault("gcp.secret_names.api_key", secretNames.APIKey)
	v.SetDefault("gcp.secret_names.api_secret", secretNames.APISecret)
}

// bindEnv adds the well-known variable names next to the FUTURES_ ones.
func bindEnv(v *viper.Viper) error {
	bindings := [][]string{
		{"exchange.api_key", "FUTURES_EXCHANGE_API_KEY", "BINANCE_API_KEY"},
		{"exchange.api_secret", "FUTURES_EXCHANGE_API_SECRET", "BINANCE_API_SECRET"},
		{"exchange.testnet", "FUTURES_EXCHANGE_TESTNET", "BINANCE_TESTNET"},
		{"gcp.project_id", "FUTURES_GCP_PROJECT_ID", "GCP_PROJECT_ID"},
		{"gcp.use_secrets", "FUTURES_GCP_USE_SECRETS", "GCP_USE_SECRETS"},
	}
	for _, b := range bindings {
		if err := v.BindEnv(b...); err != nil {
			return fmt.Errorf("error binding %s: %w", b[0], err)
		}
	}
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}

	if f := flags.Lookup("mainnet"); f != nil && f.Changed && f.Value.String() == "true" {
		v.Set("exchange.testnet", false)
	}
	return nil
}

func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error loading .env: %w", err)
	}
	return nil
}

func loadSecretsFromGCP(ctx context.Context, config *Config, logger *logrus.Logger) error {
	source, err := newSecretSource(ctx, config.GCP, logger)
	if err != nil {
		return fmt.Errorf("failed to create secret manager: %w", err)
	}
	defer source.Close()

	// Only load secrets if they're not already set
	if config.Exchange.APIKey == "" {
		config.Exchange.APIKey = source.GetSecretWithDefault(ctx, config.GCP.SecretNames.APIKey, "")
	}
	if config.Exchange.APISecret == "" {
		config.Exchange.APISecret = source.GetSecretWithDefault(ctx, config.GCP.SecretNames.APISecret, "")
	}

	logger.Info("Successfully loaded secrets from GCP Secret Manager")
	return nil
}

// Validate checks what is required before any exchange call is made.
func (c *Config) Validate() error {
	if c.Exchange.APIKey == "" {
		return errors.New("api key is required (--api-key, BINANCE_API_KEY or exchange.api_key)")
	}
	if c.Exchange.APISecret == "" {
		return errors.New("api secret is required (--api-secret, BINANCE_API_SECRET or exchange.api_secret)")
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q, expected text or json", c.Logging.Format)
	}
	if c.Shell.WatchCount <= 0 {
		return fmt.Errorf("shell.watch_count must be greater than 0, got %d", c.Shell.WatchCount)
	}
	return nil
}

// Environment names the exchange environment for display.
func (c *Config) Environment() string {
	if c.Exchange.Testnet {
		return "testnet"
	}
	return "live"
}
