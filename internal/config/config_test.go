package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/gpt-futures-bot/internal/trading"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bot.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalConfig = `{
	"exchange": {"api_key": "k", "api_secret": "s"},
	"advisor": {"provider": "openai", "api_key": "a"}
}`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", cfg.Trading.Symbol)
	assert.Equal(t, "Asia/Seoul", cfg.Trading.Timezone)
	assert.Equal(t, 0.001, cfg.Trading.StepSize)
	assert.Equal(t, 1.0, cfg.Trading.MinNotional)
	assert.False(t, cfg.Trading.Enable15m)

	assert.Equal(t, 70.0, cfg.Policy.MinConfidence)
	assert.Equal(t, 60.0, cfg.Policy.MinTrendStrength)
	assert.Equal(t, 3, cfg.Policy.MaxDailyTrades)
	assert.Equal(t, 60, cfg.Policy.CooldownMinutes)
	assert.Equal(t, 2.0, cfg.Policy.MaxLossPct)

	assert.Equal(t, "bybit", cfg.Exchange.Name)
	assert.Equal(t, "gpt-4o", cfg.Advisor.Model)
	assert.Equal(t, 1024, cfg.Advisor.MaxTokens)
}

func TestLoad_PolicyConversion(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{
		"policy": {
			"min_confidence": 80,
			"cooldown_minutes": 30,
			"leverage_caps": {"low": 2}
		},
		"exchange": {"api_key": "k", "api_secret": "s"},
		"advisor": {"provider": "openai", "api_key": "a"}
	}`))
	require.NoError(t, err)

	pc := cfg.PolicyConfig()
	assert.Equal(t, 80.0, pc.MinConfidence)
	assert.Equal(t, 30*time.Minute, pc.Cooldown)
	assert.Equal(t, 2, pc.LeverageCaps[trading.RiskLow])
	// Unspecified levels keep the defaults.
	assert.Equal(t, 10, pc.LeverageCaps[trading.RiskHigh])
	assert.Equal(t, 20.0, pc.PositionCaps[trading.RiskMedium])
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := map[string]string{
		"missing exchange creds": `{
			"advisor": {"provider": "openai", "api_key": "a"}
		}`,
		"bad timezone": `{
			"trading": {"timezone": "Mars/Olympus"},
			"exchange": {"api_key": "k", "api_secret": "s"},
			"advisor": {"provider": "openai", "api_key": "a"}
		}`,
		"bad provider": `{
			"exchange": {"api_key": "k", "api_secret": "s"},
			"advisor": {"provider": "bard", "api_key": "a"}
		}`,
		"telegram enabled without token": `{
			"exchange": {"api_key": "k", "api_secret": "s"},
			"advisor": {"provider": "openai", "api_key": "a"},
			"telegram": {"enabled": true}
		}`,
	}
	for name, body := range cases {
		_, err := Load(writeConfig(t, body))
		assert.Error(t, err, name)
	}
}

func TestLoad_EnvFallback(t *testing.T) {
	t.Setenv("BYBIT_API_KEY", "env-key")
	t.Setenv("BYBIT_API_SECRET", "env-secret")
	t.Setenv("OPENAI_API_KEY", "env-openai")

	cfg, err := Load(writeConfig(t, `{"advisor": {"provider": "openai"}}`))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Exchange.APIKey)
	assert.Equal(t, "env-openai", cfg.Advisor.APIKey)
}

func TestScheduledTimeframes(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, []trading.Timeframe{trading.Timeframe1h, trading.Timeframe4h, trading.Timeframe1d},
		cfg.ScheduledTimeframes())

	cfg.Trading.Enable15m = true
	assert.Equal(t, trading.SourceTimeframes, cfg.ScheduledTimeframes())
}

func TestDataPaths(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("data", "analysis"), cfg.AnalysisDir())
	assert.Equal(t, filepath.Join("data", "trades", "history.jsonl"), cfg.HistoryPath())
	assert.Equal(t, filepath.Join("data", "logs"), cfg.LogDir())
}
