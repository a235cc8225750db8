package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("api-key", "", "")
	flags.String("api-secret", "", "")
	flags.Bool("testnet", true, "")
	flags.Bool("mainnet", false, "")
	flags.String("log-level", "info", "")
	flags.String("log-file", "", "")
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.True(t, cfg.Exchange.Testnet)
	assert.Equal(t, 30*time.Second, cfg.Exchange.Timeout)
	assert.Equal(t, int64(5000), cfg.Exchange.RecvWindow)
	assert.Equal(t, float64(10), cfg.Exchange.RequestsPerSecond)
	assert.False(t, cfg.Exchange.AlignQuantity)
	assert.Equal(t, "futures> ", cfg.Shell.Prompt)
	assert.Equal(t, 10, cfg.Shell.WatchCount)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "binance-futures-api-key", cfg.GCP.SecretNames.APIKey)
	assert.Equal(t, "testnet", cfg.Environment())
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	path := writeConfig(t, `
exchange:
  api_key: file-key
  api_secret: file-secret
  timeout: 5s
  align_quantity: true
logging:
  level: debug
  format: json
`)
	t.Setenv("BINANCE_API_SECRET", "env-secret")
	t.Setenv("FUTURES_SHELL_PROMPT", "> ")

	cfg, err := Load(path, newFlags(t, "--api-key", "flag-key", "--mainnet"))
	require.NoError(t, err)

	assert.Equal(t, "flag-key", cfg.Exchange.APIKey)
	assert.Equal(t, "env-secret", cfg.Exchange.APISecret)
	assert.Equal(t, 5*time.Second, cfg.Exchange.Timeout)
	assert.True(t, cfg.Exchange.AlignQuantity)
	assert.False(t, cfg.Exchange.Testnet)
	assert.Equal(t, "live", cfg.Environment())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "> ", cfg.Shell.Prompt)
	require.NoError(t, cfg.Validate())
}

func TestUnchangedFlagsKeepFileValues(t *testing.T) {
	path := writeConfig(t, `
exchange:
  testnet: false
logging:
  level: warn
`)

	cfg, err := Load(path, newFlags(t))
	require.NoError(t, err)
	assert.False(t, cfg.Exchange.Testnet)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Exchange: ExchangeConfig{APIKey: "k", APISecret: "s"},
			Shell:    ShellConfig{WatchCount: 10},
			Logging:  LoggingConfig{Level: "info", Format: "text"},
		}
	}
	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Exchange.APIKey = ""
	assert.ErrorContains(t, cfg.Validate(), "api key is required")

	cfg = valid()
	cfg.Exchange.APISecret = ""
	assert.ErrorContains(t, cfg.Validate(), "api secret is required")

	cfg = valid()
	cfg.Logging.Level = "loud"
	assert.ErrorContains(t, cfg.Validate(), "invalid log level")

	cfg = valid()
	cfg.Logging.Format = "xml"
	assert.ErrorContains(t, cfg.Validate(), "invalid log format")

	cfg = valid()
	cfg.Shell.WatchCount = 0
	assert.ErrorContains(t, cfg.Validate(), "watch_count")
}

type fakeSecrets struct {
	values map[string]string
	closed bool
}

func (f *fakeSecrets) GetSecretWithDefault(_ context.Context, name, def string) string {
	if v, ok := f.values[name]; ok {
		return v
	}
	return def
}

func (f *fakeSecrets) Close() error {
	f.closed = true
	return nil
}

func TestLoadSecretsFromGCP(t *testing.T) {
	fake := &fakeSecrets{values: map[string]string{
		"binance-futures-api-key":    "gcp-key",
		"binance-futures-api-secret": "gcp-secret",
	}}
	orig := newSecretSource
	newSecretSource = func(_ context.Context, cfg GCPConfig, _ *logrus.Logger) (SecretSource, error) {
		assert.Equal(t, "my-project", cfg.ProjectID)
		return fake, nil
	}
	t.Cleanup(func() { newSecretSource = orig })

	t.Setenv("GCP_PROJECT_ID", "my-project")
	t.Setenv("GCP_USE_SECRETS", "true")
	t.Setenv("BINANCE_API_KEY", "env-key")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Exchange.APIKey)
	assert.Equal(t, "gcp-secret", cfg.Exchange.APISecret)
	assert.True(t, fake.closed)
}
