package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/flywheel/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.EvaluateInterval())
	assert.Equal(t, 5*time.Minute, cfg.ClaimInterval())
	assert.Equal(t, "0 0 * * * *", cfg.Scheduler.SweepCron)
	assert.Equal(t, 4, cfg.Scheduler.FanOut)
	assert.Equal(t, 3, cfg.Engine.SwapAttempts)
	assert.Equal(t, time.Second, cfg.RetryBase())
	assert.Equal(t, 3*time.Minute, cfg.SnapshotTTL())
	assert.Equal(t, time.Minute, cfg.CycleTimeout())
	assert.InDelta(t, 0.01, cfg.Engine.MinSpendSOL, 1e-9)
	assert.InDelta(t, 5.0, cfg.Engine.ServiceFeePct, 1e-9)
	assert.Equal(t, "heuristic", cfg.Policy.Source)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "flywheel.db", cfg.Storage.DSN)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_YAMLValues(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
scheduler:
  evaluate_interval_seconds: 60
  claim_interval_seconds: 120
  fan_out: 8
  account_delay_millis: 2000
engine:
  swap_attempts: 5
  service_fee_pct: 2.5
policy:
  source: anthropic
storage:
  driver: postgres
  dsn: postgres://flywheel@localhost/flywheel
treasury:
  token_mint: Treasury111111111111111111111111111111111111
  sweep_threshold_sol: 0.2
`))
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.EvaluateInterval())
	assert.Equal(t, 2*time.Second, cfg.AccountDelay())
	assert.Equal(t, 8, cfg.Scheduler.FanOut)
	assert.Equal(t, 5, cfg.Engine.SwapAttempts)
	assert.InDelta(t, 2.5, cfg.Engine.ServiceFeePct, 1e-9)
	assert.Equal(t, "anthropic", cfg.Policy.Source)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "postgres://flywheel@localhost/flywheel", cfg.Storage.DSN)
	assert.InDelta(t, 0.2, cfg.Treasury.SweepThresholdSOL, 1e-9)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RPC_URL", "https://rpc.example.com")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100200")
	t.Setenv("TREASURY_SECRET_KEY", "base58secret")
	t.Setenv("STORAGE_DSN", "/var/lib/flywheel/flywheel.db")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := config.Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "https://rpc.example.com", cfg.API.RPCURL)
	assert.Equal(t, "sk-ant-test", cfg.Policy.AnthropicAPIKey)
	assert.Equal(t, "123:abc", cfg.Notify.TelegramToken)
	assert.Equal(t, "-100200", cfg.Notify.TelegramChatID)
	assert.Equal(t, "base58secret", cfg.Treasury.SecretKey)
	assert.Equal(t, "/var/lib/flywheel/flywheel.db", cfg.Storage.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_SecretsNeverParsedFromYAML(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
policy:
  anthropic_api_key: leaked
treasury:
  secret_key: leaked
`))
	require.NoError(t, err)

	assert.Empty(t, cfg.Policy.AnthropicAPIKey)
	assert.Empty(t, cfg.Treasury.SecretKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := config.Load(writeConfig(t, "scheduler: [not: a map\n"))
	assert.Error(t, err)
}

func TestLoad_FeePctOutOfRangeFallsBack(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "engine:\n  service_fee_pct: 80\n"))
	require.NoError(t, err)
	assert.InDelta(t, 5.0, cfg.Engine.ServiceFeePct, 1e-9)
}
