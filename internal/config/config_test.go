package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Limitless.APIKey = "key"
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.True(t, cfg.PaperTrading)
	assert.Equal(t, 0.05, cfg.Strategy.EdgeThreshold)
	assert.Equal(t, 0.03, cfg.Strategy.TakeProfitPercent)
	assert.Equal(t, 0.6, cfg.Strategy.MaxPositionPercent)
	assert.Equal(t, 60*time.Second, cfg.Catalog.RefreshInterval.Duration)
	assert.Equal(t, 250*time.Millisecond, cfg.Strategy.CycleInterval.Duration)
	assert.True(t, cfg.Catalog.KeepSnapshotOnError)
	assert.Equal(t, "limitless_bot.log", cfg.LogFile)
	assert.Equal(t, 5, cfg.LogMaxSizeMB)
	assert.Equal(t, 5, cfg.LogMaxBackups)
}

func TestValidate_LogRotation(t *testing.T) {
	cfg := validConfig()
	cfg.LogMaxSizeMB = 0
	cfg.LogMaxBackups = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_max_size_mb")
	assert.Contains(t, err.Error(), "log_max_backups")

	cfg.LogFile = ""
	require.NoError(t, cfg.Validate())
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Strategy.MaxPositionPercent = 1.5
	cfg.Strategy.TakeProfitPercent = 0
	cfg.LogLevel = "verbose"

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindConfig))
	assert.Contains(t, err.Error(), "api_key is required")
	assert.Contains(t, err.Error(), "max_position_percent")
	assert.Contains(t, err.Error(), "take_profit_percent")
	assert.Contains(t, err.Error(), "log_level")
}

func TestValidate_WalletNeedsContract(t *testing.T) {
	cfg := validConfig()
	cfg.Wallet.PrivateKey = "0xabc"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verifying_contract")

	cfg.Wallet.VerifyingContract = "0x0000000000000000000000000000000000000001"
	require.NoError(t, cfg.Validate())
}

func TestValidate_EnabledSinks(t *testing.T) {
	cfg := validConfig()
	cfg.S3.Enabled = true
	cfg.S3.Bucket = ""
	cfg.Notify.TelegramToken = "t"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3: bucket")
	assert.Contains(t, err.Error(), "telegram_chat_id")
}

func TestLoad_MissingFileUsesDefaultsAndEnv(t *testing.T) {
	t.Setenv("LIMITLESS_API_KEY", "  secret  ")
	t.Setenv("EDGE_THRESHOLD", "0.08")
	t.Setenv("PAPER_TRADING", "off")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Limitless.APIKey)
	assert.Equal(t, 0.08, cfg.Strategy.EdgeThreshold)
	assert.False(t, cfg.PaperTrading)
	assert.Equal(t, "debug", cfg.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestLoad_PrefixedEnvWinsOverLegacy(t *testing.T) {
	t.Setenv("LIMITLESS_API_KEY", "k")
	t.Setenv("TAKE_PROFIT_PERCENT", "0.05")
	t.Setenv("LIMITLESS_STRATEGY_TAKE_PROFIT_PERCENT", "0.07")
	t.Setenv("PAPER_TRADING", "yes")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.07, cfg.Strategy.TakeProfitPercent)
	assert.True(t, cfg.PaperTrading)
}

func TestLoad_TOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
paper_trading = false
log_format = "json"

[limitless]
api_key = "from-file"
request_timeout = "3s"

[feed]
reconnect_backoff = "2s"

[catalog]
asset_keywords = ["btc"]
keep_snapshot_on_error = false

[strategy]
edge_threshold = 0.1
cycle_interval = "1s"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Limitless.APIKey)
	assert.Equal(t, 3*time.Second, cfg.Limitless.RequestTimeout.Duration)
	assert.Equal(t, 2*time.Second, cfg.Feed.ReconnectBackoff.Duration)
	assert.Equal(t, []string{"btc"}, cfg.Catalog.AssetKeywords)
	assert.False(t, cfg.Catalog.KeepSnapshotOnError)
	assert.Equal(t, 0.1, cfg.Strategy.EdgeThreshold)
	assert.Equal(t, time.Second, cfg.Strategy.CycleInterval.Duration)
	assert.False(t, cfg.PaperTrading)
	assert.Equal(t, "json", cfg.LogFormat)
	// Untouched sections keep their defaults.
	assert.Equal(t, 20*time.Second, cfg.Feed.PingInterval.Duration)
}

func TestLoad_BadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("paper_trading = [\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindConfig))
}

func TestLoad_BadEnvNumber(t *testing.T) {
	t.Setenv("MAX_POSITION_PERCENT", "lots")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_POSITION_PERCENT")
}

func TestRedacted(t *testing.T) {
	cfg := validConfig()
	cfg.Wallet.PrivateKey = "0xdead"
	cfg.Server.AuthToken = "tok"

	out := Redacted(&cfg)
	assert.Equal(t, "***", out.Limitless.APIKey)
	assert.Equal(t, "***", out.Wallet.PrivateKey)
	assert.Equal(t, "***", out.Server.AuthToken)
	assert.Empty(t, out.Redis.Password)

	out.Catalog.Statuses[0] = "mutated"
	assert.Equal(t, "key", cfg.Limitless.APIKey)
	assert.Equal(t, "active", cfg.Catalog.Statuses[0])
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", "On"} {
		assert.True(t, parseBool(v), v)
	}
	for _, v := range []string{"0", "false", "no", "off", "maybe"} {
		assert.False(t, parseBool(v), v)
	}
}
