package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Binance  Binance  `mapstructure:"binance"`
	Backtest Backtest `mapstructure:"backtest"`
	Paper    Paper    `mapstructure:"paper"`
	Risk     Risk     `mapstructure:"risk"`
	Logger   Logger   `mapstructure:"logger"`
	Database Database `mapstructure:"database"`
}

// Binance holds the configuration for the Binance API.
type Binance struct {
	ApiKey         string  `mapstructure:"apiKey"`
	SecretKey      string  `mapstructure:"secretKey"`
	Testnet        bool    `mapstructure:"testnet"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Backtest holds the configuration for historical simulation runs.
type Backtest struct {
	Symbol          string  `mapstructure:"symbol"`
	Interval        string  `mapstructure:"interval"`
	StartDate       string  `mapstructure:"start_date"`
	EndDate         string  `mapstructure:"end_date"`
	InitialCapital  float64 `mapstructure:"initial_capital"`
	FeePercent      float64 `mapstructure:"fee_percent"`
	SlippagePercent float64 `mapstructure:"slippage_percent"`
	FeePolicy       string  `mapstructure:"fee_policy"`
	Strategy        string  `mapstructure:"strategy"`
}

// Paper holds the configuration for the simulated exchange account.
type Paper struct {
	InitialBalance  float64 `mapstructure:"initial_balance"`
	FeeRate         float64 `mapstructure:"fee_rate"`
	SlippagePercent float64 `mapstructure:"slippage_percent"`
	DefaultLeverage float64 `mapstructure:"default_leverage"`
	DefaultQuantity float64 `mapstructure:"default_quantity"`
}

// Risk holds the position sizing and order validation limits.
type Risk struct {
	RiskPerTradePercent float64 `mapstructure:"risk_per_trade_percent"`
	MaxLeverage         float64 `mapstructure:"max_leverage"`
	RewardToRiskRatio   float64 `mapstructure:"reward_to_risk_ratio"`
	MaxDailyLossPercent float64 `mapstructure:"max_daily_loss_percent"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("binance.rate_limit", 20)      // requests per second
	viper.SetDefault("binance.rate_limit_burst", 5) // burst size
	viper.SetDefault("backtest.interval", "1h")
	viper.SetDefault("backtest.initial_capital", 10000)
	viper.SetDefault("backtest.fee_percent", 0.0004)
	viper.SetDefault("backtest.slippage_percent", 0.0005)
	viper.SetDefault("backtest.fee_policy", "ROUND_TRIP")
	viper.SetDefault("backtest.strategy", "MACD_HISTOGRAM")
	viper.SetDefault("paper.initial_balance", 50000)
	viper.SetDefault("paper.fee_rate", 0.0004)
	viper.SetDefault("paper.default_leverage", 10)
	viper.SetDefault("paper.default_quantity", 0.01)
	viper.SetDefault("risk.risk_per_trade_percent", 0.01)
	viper.SetDefault("risk.max_leverage", 10)
	viper.SetDefault("risk.reward_to_risk_ratio", 2.0)
	viper.SetDefault("risk.max_daily_loss_percent", 0.05)
	viper.SetDefault("database.dsn", "backtest.db")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
