package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"binance-backtest-bot-go/internal/binance"
	"binance-backtest-bot-go/internal/exchange"
	"binance-backtest-bot-go/internal/execution"
	"binance-backtest-bot-go/internal/market"
	"binance-backtest-bot-go/internal/risk"
	"binance-backtest-bot-go/internal/strategy"
)

// maxPaperWindow caps the candle history fed to the strategy per step.
const maxPaperWindow = 500

var paperCmd = &cobra.Command{
	Use:   "paper",
	Short: "Run a strategy live against the market stream with simulated fills",
	Long: `Paper connects to the Binance futures websocket stream, feeds closed
candles through the selected strategy and routes its signals to a
simulated account. Orders fill at the last mark price with slippage;
no real orders are placed.

Stop with Ctrl-C; the session summary is printed on shutdown.`,
	RunE: runPaper,
}

var (
	paperSymbol   string
	paperInterval string
	paperStrategy string
)

func init() {
	rootCmd.AddCommand(paperCmd)

	paperCmd.Flags().StringVarP(&paperSymbol, "symbol", "s", "", "symbol to trade, e.g. BTCUSDT (overrides config)")
	paperCmd.Flags().StringVarP(&paperInterval, "interval", "i", "", "kline interval, e.g. 1m (overrides config)")
	paperCmd.Flags().StringVar(&paperStrategy, "strategy", "", "strategy name (overrides config)")
}

func runPaper(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadApp()
	if err != nil {
		return err
	}
	defer log.Sync()

	if paperSymbol != "" {
		cfg.Backtest.Symbol = paperSymbol
	}
	if paperInterval != "" {
		cfg.Backtest.Interval = paperInterval
	}
	if paperStrategy != "" {
		cfg.Backtest.Strategy = paperStrategy
	}
	symbol := cfg.Backtest.Symbol
	interval := cfg.Backtest.Interval

	strat, err := strategy.New(cfg.Backtest.Strategy)
	if err != nil {
		return err
	}
	if err := strat.OnInit(); err != nil {
		return fmt.Errorf("strategy init failed: %w", err)
	}

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	stream := binance.NewMarketStream(cfg.Binance.Testnet, log)
	if err := stream.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect market stream: %w", err)
	}
	defer stream.Disconnect()

	client := exchange.NewPaperClient(exchange.PaperConfig{
		InitialBalance:  cfg.Paper.InitialBalance,
		FeeRate:         cfg.Paper.FeeRate,
		SlippagePercent: cfg.Paper.SlippagePercent,
		DefaultLeverage: cfg.Paper.DefaultLeverage,
	}, stream, log)

	gate := risk.NewGate(risk.Config{
		RiskPerTradePercent: cfg.Risk.RiskPerTradePercent,
		MaxLeverage:         cfg.Risk.MaxLeverage,
		RewardToRiskRatio:   cfg.Risk.RewardToRiskRatio,
		MaxDailyLossPercent: cfg.Risk.MaxDailyLossPercent,
	}, log)

	executor := execution.NewExecutor(client, gate, cfg.Paper.DefaultQuantity, log)

	candles, err := stream.SubscribeCandles(symbol, interval)
	if err != nil {
		return fmt.Errorf("failed to subscribe candles: %w", err)
	}

	log.Info("Paper trading started",
		zap.String("symbol", symbol),
		zap.String("interval", interval),
		zap.String("strategy", strat.Name()),
		zap.Float64("initial_balance", cfg.Paper.InitialBalance),
	)

	window := make([]market.Candle, 0, maxPaperWindow)
	for {
		select {
		case <-ctx.Done():
			printPortfolio(client)
			return nil

		case candle, ok := <-candles:
			if !ok {
				printPortfolio(client)
				return nil
			}
			// Strategies only see closed bars.
			if !candle.IsFinal {
				continue
			}

			window = append(window, candle)
			if len(window) > maxPaperWindow {
				window = window[len(window)-maxPaperWindow:]
			}

			sig, err := strat.Analyze(window)
			if err != nil {
				log.Error("Strategy analysis failed", zap.Error(err))
				continue
			}

			order, err := executor.Execute(ctx, symbol, sig)
			if err != nil {
				if errors.Is(err, risk.ErrRewardRiskTooLow) || errors.Is(err, risk.ErrInvalidRisk) {
					log.Warn("Signal rejected by risk gate", zap.Error(err))
				} else {
					log.Error("Order execution failed", zap.Error(err))
				}
				continue
			}
			if order != nil {
				log.Info("Order filled",
					zap.String("order_id", order.ID),
					zap.String("side", string(order.Side)),
					zap.Float64("price", order.AveragePrice),
					zap.Float64("quantity", order.FilledQuantity),
				)
			}
		}
	}
}

func printPortfolio(client *exchange.PaperClient) {
	p := client.Portfolio()

	fmt.Printf("\nPaper Session Summary\n")
	fmt.Printf("  Initial Balance: $%.2f\n", p.InitialBalance)
	fmt.Printf("  Current Balance: $%.2f\n", p.CurrentBalance)
	fmt.Printf("  Realized PnL:    $%.2f (%.2f%%)\n", p.TotalPnl, p.TotalPnlPercent)
	fmt.Printf("  Closed Trades:   %d\n", len(p.ClosedTrades))
	fmt.Printf("  Open Positions:  %d\n", len(p.OpenPositions))

	for _, pos := range p.OpenPositions {
		fmt.Printf("    %s %s qty %.4f @ %.4f (margin $%.2f)\n",
			pos.Symbol, pos.Side, pos.Quantity, pos.EntryPrice, pos.Margin())
	}
}
