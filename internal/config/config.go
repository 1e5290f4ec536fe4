package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ducminhle1904/gpt-futures-bot/internal/policy"
	"github.com/ducminhle1904/gpt-futures-bot/internal/trader"
	"github.com/ducminhle1904/gpt-futures-bot/internal/trading"
)

// Config represents the complete configuration for the trading bot
type Config struct {
	// Trading configuration
	Trading TradingConfig `json:"trading"`

	// Signal policy configuration
	Policy PolicyConfig `json:"policy"`

	// Exchange configuration
	Exchange ExchangeConfig `json:"exchange"`

	// Advisor (LLM) configuration
	Advisor AdvisorConfig `json:"advisor"`

	// Telegram configuration (optional)
	Telegram *TelegramConfig `json:"telegram,omitempty"`

	// Monitoring configuration (optional)
	Monitoring *MonitoringConfig `json:"monitoring,omitempty"`
}

// TradingConfig holds the core trading parameters
type TradingConfig struct {
	Symbol   string `json:"symbol"`   // Trading symbol (e.g., BTCUSDT)
	Timezone string `json:"timezone"` // Scheduler timezone (e.g., Asia/Seoul)

	// Whether the 15m timeframe runs on the scheduler. When disabled, its
	// analysis is refreshed on demand before a final pass.
	Enable15m bool `json:"enable_15m"`

	// Symbol filters for order sizing
	StepSize    float64 `json:"step_size"`    // Quantity step (base units)
	MinNotional float64 `json:"min_notional"` // Minimum order value (quote units)

	// Data directory for analysis snapshots, trade history and logs
	DataDir string `json:"data_dir"`
}

// PolicyConfig holds the rule gates applied before trading
type PolicyConfig struct {
	MinConfidence    float64 `json:"min_confidence"`     // Minimum advisor confidence
	MinTrendStrength float64 `json:"min_trend_strength"` // Minimum trend strength
	MaxDailyTrades   int     `json:"max_daily_trades"`   // Executed plans per calendar day
	CooldownMinutes  int     `json:"cooldown_minutes"`   // Minutes between executed plans
	MaxLossPct       float64 `json:"max_loss_pct"`       // Max stop distance from entry

	// Caps indexed by risk level; missing levels fall back to defaults
	LeverageCaps map[string]int     `json:"leverage_caps,omitempty"`
	PositionCaps map[string]float64 `json:"position_caps,omitempty"`
}

// ExchangeConfig holds exchange credentials and mode
type ExchangeConfig struct {
	Name      string `json:"name"`                 // Exchange name (bybit)
	APIKey    string `json:"api_key,omitempty"`    // Falls back to BYBIT_API_KEY
	APISecret string `json:"api_secret,omitempty"` // Falls back to BYBIT_API_SECRET
	Testnet   bool   `json:"testnet"`              // Use testnet endpoints
	Demo      bool   `json:"demo"`                 // Use demo trading endpoints
	QuoteCoin string `json:"quote_coin"`           // Equity currency (USDT)
}

// AdvisorConfig holds the LLM provider settings
type AdvisorConfig struct {
	Provider    string  `json:"provider"` // claude | openai | deepseek
	Model       string  `json:"model"`
	APIKey      string  `json:"api_key,omitempty"` // Falls back to the provider's env var
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// TelegramConfig holds the operator surface settings
type TelegramConfig struct {
	Enabled       bool    `json:"enabled"`
	BotToken      string  `json:"bot_token,omitempty"`     // Falls back to TELEGRAM_BOT_TOKEN
	AdminChatID   int64   `json:"admin_chat_id,omitempty"` // Falls back to TELEGRAM_CHAT_ID
	NotifyChatIDs []int64 `json:"notify_chat_ids,omitempty"`
	RatePerMinute int     `json:"rate_per_minute"` // Per-channel message budget
}

// MonitoringConfig holds the health/metrics endpoint settings
type MonitoringConfig struct {
	Enabled    bool   `json:"enabled"`
	ListenAddr string `json:"listen_addr"`
}

// Load loads configuration from file, applies env fallbacks, defaults and
// validation. A file name without a path is looked up under configs/.
func Load(configFile string) (*Config, error) {
	if !strings.ContainsAny(configFile, "/\\") {
		configFile = filepath.Join("configs", configFile)
	}
	if !strings.HasSuffix(configFile, ".json") {
		configFile += ".json"
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnv()
	config.setDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// applyEnv fills credentials from the environment when the file omits them.
// Secrets belong in .env, not in the committed config file.
func (c *Config) applyEnv() {
	if c.Exchange.APIKey == "" {
		c.Exchange.APIKey = os.Getenv("BYBIT_API_KEY")
	}
	if c.Exchange.APISecret == "" {
		c.Exchange.APISecret = os.Getenv("BYBIT_API_SECRET")
	}

	if c.Advisor.APIKey == "" {
		switch strings.ToLower(c.Advisor.Provider) {
		case "claude":
			c.Advisor.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "deepseek":
			c.Advisor.APIKey = os.Getenv("DEEPSEEK_API_KEY")
		default:
			c.Advisor.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	if c.Telegram != nil {
		if c.Telegram.BotToken == "" {
			c.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
		}
		if c.Telegram.AdminChatID == 0 {
			if id, err := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64); err == nil {
				c.Telegram.AdminChatID = id
			}
		}
	}
}

// setDefaults sets default values for missing configuration
func (c *Config) setDefaults() {
	if c.Trading.Symbol == "" {
		c.Trading.Symbol = "BTCUSDT"
	}
	if c.Trading.Timezone == "" {
		c.Trading.Timezone = "Asia/Seoul"
	}
	if c.Trading.StepSize == 0 {
		c.Trading.StepSize = 0.001
	}
	if c.Trading.MinNotional == 0 {
		c.Trading.MinNotional = 1.0
	}
	if c.Trading.DataDir == "" {
		c.Trading.DataDir = "data"
	}

	defaults := policy.DefaultConfig()
	if c.Policy.MinConfidence == 0 {
		c.Policy.MinConfidence = defaults.MinConfidence
	}
	if c.Policy.MinTrendStrength == 0 {
		c.Policy.MinTrendStrength = defaults.MinTrendStrength
	}
	if c.Policy.MaxDailyTrades == 0 {
		c.Policy.MaxDailyTrades = defaults.MaxDailyTrades
	}
	if c.Policy.CooldownMinutes == 0 {
		c.Policy.CooldownMinutes = int(defaults.Cooldown.Minutes())
	}
	if c.Policy.MaxLossPct == 0 {
		c.Policy.MaxLossPct = defaults.MaxLossPct
	}

	if c.Exchange.Name == "" {
		c.Exchange.Name = "bybit"
	}
	if c.Exchange.QuoteCoin == "" {
		c.Exchange.QuoteCoin = "USDT"
	}

	if c.Advisor.Provider == "" {
		c.Advisor.Provider = "openai"
	}
	if c.Advisor.Model == "" {
		switch strings.ToLower(c.Advisor.Provider) {
		case "claude":
			c.Advisor.Model = "claude-sonnet-4-20250514"
		case "deepseek":
			c.Advisor.Model = "deepseek-chat"
		default:
			c.Advisor.Model = "gpt-4o"
		}
	}
	if c.Advisor.MaxTokens == 0 {
		c.Advisor.MaxTokens = 1024
	}
	if c.Advisor.Temperature == 0 {
		c.Advisor.Temperature = 0.3
	}

	if c.Telegram != nil && c.Telegram.RatePerMinute == 0 {
		c.Telegram.RatePerMinute = 20
	}

	if c.Monitoring != nil && c.Monitoring.ListenAddr == "" {
		c.Monitoring.ListenAddr = ":9090"
	}
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Trading.Symbol == "" {
		return fmt.Errorf("trading symbol is required")
	}
	if _, err := time.LoadLocation(c.Trading.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Trading.Timezone, err)
	}
	if c.Trading.StepSize <= 0 {
		return fmt.Errorf("step size must be greater than 0")
	}
	if c.Trading.MinNotional <= 0 {
		return fmt.Errorf("min notional must be greater than 0")
	}

	if c.Policy.MinConfidence < 0 || c.Policy.MinConfidence > 100 {
		return fmt.Errorf("min confidence must be between 0 and 100")
	}
	if c.Policy.MinTrendStrength < 0 || c.Policy.MinTrendStrength > 100 {
		return fmt.Errorf("min trend strength must be between 0 and 100")
	}
	if c.Policy.MaxDailyTrades < 1 {
		return fmt.Errorf("max daily trades must be at least 1")
	}
	if c.Policy.CooldownMinutes < 0 {
		return fmt.Errorf("cooldown minutes must not be negative")
	}
	if c.Policy.MaxLossPct <= 0 {
		return fmt.Errorf("max loss percent must be greater than 0")
	}

	if strings.ToLower(c.Exchange.Name) != "bybit" {
		return fmt.Errorf("unsupported exchange: %s", c.Exchange.Name)
	}
	if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
		return fmt.Errorf("exchange API key and secret are required")
	}

	switch strings.ToLower(c.Advisor.Provider) {
	case "claude", "openai", "deepseek":
	default:
		return fmt.Errorf("unsupported advisor provider: %s", c.Advisor.Provider)
	}
	if c.Advisor.APIKey == "" {
		return fmt.Errorf("advisor API key is required")
	}

	if c.Telegram != nil && c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram bot token is required when telegram is enabled")
		}
		if c.Telegram.AdminChatID == 0 {
			return fmt.Errorf("telegram admin chat id is required when telegram is enabled")
		}
	}

	return nil
}

// Location returns the scheduler timezone. Validation guarantees it parses.
func (c *Config) Location() *time.Location {
	loc, _ := time.LoadLocation(c.Trading.Timezone)
	return loc
}

// PolicyConfig converts the file representation into the policy's config,
// filling risk-level caps from the defaults where the file is silent.
func (c *Config) PolicyConfig() policy.Config {
	out := policy.DefaultConfig()
	out.MinConfidence = c.Policy.MinConfidence
	out.MinTrendStrength = c.Policy.MinTrendStrength
	out.MaxDailyTrades = c.Policy.MaxDailyTrades
	out.Cooldown = time.Duration(c.Policy.CooldownMinutes) * time.Minute
	out.MaxLossPct = c.Policy.MaxLossPct

	for level, cap := range c.Policy.LeverageCaps {
		out.LeverageCaps[trading.RiskLevel(level)] = cap
	}
	for level, cap := range c.Policy.PositionCaps {
		out.PositionCaps[trading.RiskLevel(level)] = cap
	}
	return out
}

// SizingConfig converts the symbol filter settings into the reconciler's.
func (c *Config) SizingConfig() trader.SizingConfig {
	return trader.SizingConfig{
		StepSize:    c.Trading.StepSize,
		MinNotional: c.Trading.MinNotional,
	}
}

// ScheduledTimeframes returns the timeframes the scheduler should run.
func (c *Config) ScheduledTimeframes() []trading.Timeframe {
	if c.Trading.Enable15m {
		return trading.SourceTimeframes
	}
	out := make([]trading.Timeframe, 0, len(trading.SourceTimeframes)-1)
	for _, tf := range trading.SourceTimeframes {
		if tf != trading.Timeframe15m {
			out = append(out, tf)
		}
	}
	return out
}

// AnalysisDir returns the analysis snapshot directory.
func (c *Config) AnalysisDir() string {
	return filepath.Join(c.Trading.DataDir, "analysis")
}

// HistoryPath returns the trade history file path.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Trading.DataDir, "trades", "history.jsonl")
}

// LogDir returns the session log directory.
func (c *Config) LogDir() string {
	return filepath.Join(c.Trading.DataDir, "logs")
}
