package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration.
type Config struct {
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Engine    EngineConfig    `yaml:"engine"`
	API       APIConfig       `yaml:"api"`
	Policy    PolicyConfig    `yaml:"policy"`
	Storage   StorageConfig   `yaml:"storage"`
	Treasury  TreasuryConfig  `yaml:"treasury"`
	Notify    NotifyConfig    `yaml:"notify"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// SchedulerConfig controls tick cadences and fan-out.
type SchedulerConfig struct {
	EvaluateIntervalSeconds int    `yaml:"evaluate_interval_seconds"` // full flywheel cycles
	ClaimIntervalSeconds    int    `yaml:"claim_interval_seconds"`    // fee-claim sweeps
	SweepCron               string `yaml:"sweep_cron"`                // treasury buyback-and-burn
	FanOut                  int    `yaml:"fan_out"`                   // max concurrent account cycles
	AccountDelayMillis      int    `yaml:"account_delay_millis"`      // spacing between account launches
}

// EngineConfig controls the behavior of a single cycle.
type EngineConfig struct {
	SwapAttempts        int     `yaml:"swap_attempts"`
	RetryBaseMillis     int     `yaml:"retry_base_millis"`
	SnapshotTTLSeconds  int     `yaml:"snapshot_ttl_seconds"`
	CycleTimeoutSeconds int     `yaml:"cycle_timeout_seconds"`
	MinSpendSOL         float64 `yaml:"min_spend_sol"`
	ServiceFeePct       float64 `yaml:"service_fee_pct"`
}

// APIConfig holds the external service base URLs.
type APIConfig struct {
	OracleBase    string `yaml:"oracle_base"`
	VenueBase     string `yaml:"venue_base"`
	RPCURL        string `yaml:"rpc_url"`
	AnthropicBase string `yaml:"anthropic_base"`
}

// PolicyConfig selects and tunes the decision policy.
type PolicyConfig struct {
	Source          string `yaml:"source"` // heuristic | anthropic
	AnthropicModel  string `yaml:"anthropic_model"`
	AnthropicAPIKey string `yaml:"-"` // env only, never in the YAML file
}

// StorageConfig selects the ledger store backend.
type StorageConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres | memory
	DSN    string `yaml:"dsn"`
}

// TreasuryConfig configures the platform-token sweep.
type TreasuryConfig struct {
	TokenMint         string  `yaml:"token_mint"`
	Address           string  `yaml:"address"`
	SecretKey         string  `yaml:"-"` // env only
	SweepThresholdSOL float64 `yaml:"sweep_threshold_sol"`
	KeepSOL           float64 `yaml:"keep_sol"` // buffer left behind for tx fees
}

// NotifyConfig controls the notification sinks.
type NotifyConfig struct {
	TelegramEnabled bool   `yaml:"telegram_enabled"`
	TelegramToken   string `yaml:"-"` // env only
	TelegramChatID  string `yaml:"-"` // env only
	Console         bool   `yaml:"console"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LogConfig controls log format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML config file, applying .env and environment
// overrides. Secrets (API keys, bot tokens, the treasury key) come
// exclusively from the environment so they never land in a committed
// file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// EvaluateInterval returns the full-cycle cadence.
func (c *Config) EvaluateInterval() time.Duration {
	return time.Duration(c.Scheduler.EvaluateIntervalSeconds) * time.Second
}

// ClaimInterval returns the fee-claim cadence.
func (c *Config) ClaimInterval() time.Duration {
	return time.Duration(c.Scheduler.ClaimIntervalSeconds) * time.Second
}

// AccountDelay returns the spacing between account launches in a tick.
func (c *Config) AccountDelay() time.Duration {
	return time.Duration(c.Scheduler.AccountDelayMillis) * time.Millisecond
}

// CycleTimeout returns the per-cycle deadline.
func (c *Config) CycleTimeout() time.Duration {
	return time.Duration(c.Engine.CycleTimeoutSeconds) * time.Second
}

// RetryBase returns the base delay for swap retry backoff.
func (c *Config) RetryBase() time.Duration {
	return time.Duration(c.Engine.RetryBaseMillis) * time.Millisecond
}

// SnapshotTTL returns how long a market snapshot stays usable.
func (c *Config) SnapshotTTL() time.Duration {
	return time.Duration(c.Engine.SnapshotTTLSeconds) * time.Second
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("RPC_URL"); v != "" {
		cfg.API.RPCURL = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Policy.AnthropicAPIKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notify.TelegramToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notify.TelegramChatID = v
	}
	if v := os.Getenv("TREASURY_SECRET_KEY"); v != "" {
		cfg.Treasury.SecretKey = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Scheduler.EvaluateIntervalSeconds <= 0 {
		cfg.Scheduler.EvaluateIntervalSeconds = 120
	}
	if cfg.Scheduler.ClaimIntervalSeconds <= 0 {
		cfg.Scheduler.ClaimIntervalSeconds = 300
	}
	if cfg.Scheduler.SweepCron == "" {
		cfg.Scheduler.SweepCron = "0 0 * * * *" // hourly, with seconds field
	}
	if cfg.Scheduler.FanOut <= 0 {
		cfg.Scheduler.FanOut = 4
	}
	if cfg.Scheduler.AccountDelayMillis < 0 {
		cfg.Scheduler.AccountDelayMillis = 0
	}
	if cfg.Engine.SwapAttempts <= 0 {
		cfg.Engine.SwapAttempts = 3
	}
	if cfg.Engine.RetryBaseMillis <= 0 {
		cfg.Engine.RetryBaseMillis = 1000
	}
	if cfg.Engine.SnapshotTTLSeconds <= 0 {
		cfg.Engine.SnapshotTTLSeconds = 180
	}
	if cfg.Engine.CycleTimeoutSeconds <= 0 {
		cfg.Engine.CycleTimeoutSeconds = 60
	}
	if cfg.Engine.MinSpendSOL <= 0 {
		cfg.Engine.MinSpendSOL = 0.01
	}
	if cfg.Engine.ServiceFeePct < 0 || cfg.Engine.ServiceFeePct > 50 {
		cfg.Engine.ServiceFeePct = 5
	}
	if cfg.API.OracleBase == "" {
		cfg.API.OracleBase = "https://api.dexscreener.com/latest/dex"
	}
	if cfg.API.VenueBase == "" {
		cfg.API.VenueBase = "https://pumpportal.fun/api"
	}
	if cfg.API.RPCURL == "" {
		cfg.API.RPCURL = "https://api.mainnet-beta.solana.com"
	}
	if cfg.API.AnthropicBase == "" {
		cfg.API.AnthropicBase = "https://api.anthropic.com"
	}
	if cfg.Policy.Source == "" {
		cfg.Policy.Source = "heuristic"
	}
	if cfg.Policy.AnthropicModel == "" {
		cfg.Policy.AnthropicModel = "claude-3-5-sonnet-20241022"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DSN == "" && cfg.Storage.Driver == "sqlite" {
		cfg.Storage.DSN = "flywheel.db"
	}
	if cfg.Treasury.SweepThresholdSOL <= 0 {
		cfg.Treasury.SweepThresholdSOL = 0.05
	}
	if cfg.Treasury.KeepSOL <= 0 {
		cfg.Treasury.KeepSOL = 0.01
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
