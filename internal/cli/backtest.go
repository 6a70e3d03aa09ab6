package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"binance-backtest-bot-go/internal/backtest"
	"binance-backtest-bot-go/internal/binance"
	"binance-backtest-bot-go/internal/database"
	"binance-backtest-bot-go/internal/ledger"
	"binance-backtest-bot-go/internal/strategy"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay historical klines through a strategy",
	Long: `Backtest downloads the configured kline range from Binance futures,
replays it through the selected strategy and prints the settled trades
and aggregate statistics. Results are stored in the local SQLite
database unless --no-save is given.

Example:
  bot backtest --symbol BTCUSDT --strategy MACD_HISTOGRAM`,
	RunE: runBacktest,
}

var (
	btSymbol   string
	btInterval string
	btStrategy string
	btStart    string
	btEnd      string
	btNoSave   bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btSymbol, "symbol", "s", "", "symbol to test, e.g. BTCUSDT (overrides config)")
	backtestCmd.Flags().StringVarP(&btInterval, "interval", "i", "", "kline interval, e.g. 1h (overrides config)")
	backtestCmd.Flags().StringVar(&btStrategy, "strategy", "", "strategy name (overrides config)")
	backtestCmd.Flags().StringVar(&btStart, "start", "", "start date YYYY-MM-DD (overrides config)")
	backtestCmd.Flags().StringVar(&btEnd, "end", "", "end date YYYY-MM-DD (overrides config)")
	backtestCmd.Flags().BoolVar(&btNoSave, "no-save", false, "do not persist the run to the database")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadApp()
	if err != nil {
		return err
	}
	defer log.Sync()

	if btSymbol != "" {
		cfg.Backtest.Symbol = btSymbol
	}
	if btInterval != "" {
		cfg.Backtest.Interval = btInterval
	}
	if btStrategy != "" {
		cfg.Backtest.Strategy = btStrategy
	}
	if btStart != "" {
		cfg.Backtest.StartDate = btStart
	}
	if btEnd != "" {
		cfg.Backtest.EndDate = btEnd
	}

	start, err := parseDate(cfg.Backtest.StartDate)
	if err != nil {
		return fmt.Errorf("bad start date: %w", err)
	}
	end, err := parseDate(cfg.Backtest.EndDate)
	if err != nil {
		return fmt.Errorf("bad end date: %w", err)
	}
	if !end.After(start) {
		return fmt.Errorf("end date %s is not after start date %s", cfg.Backtest.EndDate, cfg.Backtest.StartDate)
	}

	strat, err := strategy.New(cfg.Backtest.Strategy)
	if err != nil {
		return err
	}

	restClient := binance.NewRestClient(&cfg.Binance, log)
	engine := backtest.NewEngine(restClient, log)

	runCfg := backtest.Config{
		Symbol:          cfg.Backtest.Symbol,
		Interval:        cfg.Backtest.Interval,
		StartDate:       start,
		EndDate:         end,
		InitialCapital:  cfg.Backtest.InitialCapital,
		FeePercent:      cfg.Backtest.FeePercent,
		SlippagePercent: cfg.Backtest.SlippagePercent,
		FeePolicy:       ledger.ParseFeePolicy(cfg.Backtest.FeePolicy),
	}

	result, err := engine.Run(cmd.Context(), runCfg, strat)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	printResult(cfg.Backtest.Strategy, result)

	if !btNoSave {
		db, err := database.NewDatabase(cfg.Database.DSN)
		if err != nil {
			return err
		}
		run, err := database.SaveBacktestResult(db, cfg.Backtest.Strategy, result)
		if err != nil {
			return err
		}
		log.Info("Backtest run saved", zap.Uint("run_id", run.ID))
	}

	return nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func printResult(strategyName string, result *backtest.Result) {
	m := result.Metrics

	fmt.Printf("\nBacktest Complete!\n")
	fmt.Printf("  Strategy:      %s\n", strategyName)
	fmt.Printf("  Symbol:        %s %s\n", result.Config.Symbol, result.Config.Interval)
	fmt.Printf("  Period:        %s -> %s\n",
		result.Config.StartDate.Format("2006-01-02"),
		result.Config.EndDate.Format("2006-01-02"))
	fmt.Printf("  Trades:        %d (%d wins / %d losses, %.1f%% win rate)\n",
		m.TotalTrades, m.WinningTrades, m.LosingTrades, m.WinRate)
	fmt.Printf("  Net PnL:       $%.2f (%.2f%%)\n", m.TotalPnl, m.TotalPnlPercent)
	fmt.Printf("  Profit Factor: %.2f\n", m.ProfitFactor)
	fmt.Printf("  Max Drawdown:  %.2f%%\n", m.MaxDrawdownPercent)

	if len(result.Trades) == 0 {
		return
	}

	fmt.Printf("\n  %-4s %-6s %-20s %-12s %-12s %-12s %s\n",
		"#", "SIDE", "EXIT TIME", "ENTRY", "EXIT", "PNL", "REASON")
	for _, t := range result.Trades {
		fmt.Printf("  %-4d %-6s %-20s %-12.4f %-12.4f %-+12.2f %s\n",
			t.ID, t.Side,
			t.ExitTime.Format("2006-01-02 15:04"),
			t.EntryPrice, t.ExitPrice, t.Pnl, t.Reason)
	}
}
