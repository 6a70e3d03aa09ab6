package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"binance-backtest-bot-go/internal/config"
	"binance-backtest-bot-go/internal/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "bot",
	Short: "Binance futures strategy backtester and paper trader",
	Long: `A strategy research tool for Binance USDT-M futures.

It replays historical klines through a strategy to produce trade-by-trade
backtest reports, and runs the same strategies live against the market
stream with simulated order fills.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./configs", "directory containing config.yml")
}

// loadApp loads configuration and builds the logger every subcommand needs.
func loadApp() (config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("could not load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("could not build logger: %w", err)
	}

	return cfg, log, nil
}
