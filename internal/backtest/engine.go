package backtest

import (
	"context"
	"fmt"

	"binance-backtest-bot-go/internal/ledger"
	"binance-backtest-bot-go/internal/strategy"
	"go.uber.org/zap"
)

// lookbackWindow bounds how many trailing candles a strategy sees per step,
// capping indicator cost without losing convergence.
const lookbackWindow = 500

// Engine replays a candle sequence through a strategy and a reinvestment-mode
// ledger, producing trades, an equity curve and aggregate metrics. A run is
// strictly sequential; any failure aborts the whole run rather than returning
// a partial result.
type Engine struct {
	loader HistoricalDataLoader
	logger *zap.Logger
}

// NewEngine creates a backtest engine.
func NewEngine(loader HistoricalDataLoader, logger *zap.Logger) *Engine {
	return &Engine{
		loader: loader,
		logger: logger,
	}
}

// Run executes a full backtest of strat over the configured range.
func (e *Engine) Run(ctx context.Context, cfg Config, strat strategy.Strategy) (*Result, error) {
	e.logger.Info("Starting backtest",
		zap.String("symbol", cfg.Symbol),
		zap.String("interval", cfg.Interval),
		zap.String("strategy", strat.Name()),
		zap.Time("start", cfg.StartDate),
		zap.Time("end", cfg.EndDate),
	)

	candles, err := e.loader.LoadCandles(ctx, cfg.Symbol, cfg.Interval, cfg.StartDate, cfg.EndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load candles: %w", err)
	}
	e.logger.Info("Loaded candles", zap.Int("count", len(candles)))

	book := ledger.NewReinvestLedger(ledger.ReinvestConfig{
		Symbol:          cfg.Symbol,
		InitialCapital:  cfg.InitialCapital,
		FeePercent:      cfg.FeePercent,
		SlippagePercent: cfg.SlippagePercent,
		FeePolicy:       cfg.FeePolicy,
	})
	if err := strat.OnInit(); err != nil {
		return nil, fmt.Errorf("strategy init failed: %w", err)
	}

	var trades []ledger.Trade
	equityCurve := []EquityPoint{{
		Timestamp: cfg.StartDate,
		Balance:   cfg.InitialCapital,
	}}

	for i, candle := range candles {
		start := i + 1 - lookbackWindow
		if start < 0 {
			start = 0
		}

		signal, err := strat.Analyze(candles[start : i+1])
		if err != nil {
			return nil, fmt.Errorf("strategy analyze failed at candle %d: %w", i, err)
		}

		// Exits and reversals settle before any new entry on the same candle.
		if pos := book.Position(); pos != nil {
			reason := closeReason(pos.Side, signal.Action)
			if reason != "" {
				trade, err := book.Close(candle, reason)
				if err != nil {
					return nil, err
				}
				trades = append(trades, trade)
				e.logger.Debug("Closed position",
					zap.Int64("trade_id", trade.ID),
					zap.String("reason", reason),
					zap.Float64("pnl", trade.Pnl),
				)
			}
		}

		if book.Position() == nil {
			switch signal.Action {
			case strategy.EnterLong:
				if _, err := book.Open(ledger.Long, candle, book.Balance()); err != nil {
					return nil, err
				}
			case strategy.EnterShort:
				if _, err := book.Open(ledger.Short, candle, book.Balance()); err != nil {
					return nil, err
				}
			}
		}

		equityCurve = append(equityCurve, EquityPoint{
			Timestamp: candle.Time(),
			Balance:   book.Balance() + book.UnrealizedPnL(candle.Close),
		})
	}

	// Force-close anything still open at the final candle.
	if book.Position() != nil {
		last := candles[len(candles)-1]
		trade, err := book.Close(last, "End of Backtest")
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
		equityCurve[len(equityCurve)-1].Balance = book.Balance()
	}

	applyDrawdown(equityCurve)
	metrics := computeMetrics(cfg, trades, equityCurve)

	e.logger.Info("Backtest complete",
		zap.Int("trades", metrics.TotalTrades),
		zap.Float64("total_pnl", metrics.TotalPnl),
		zap.Float64("win_rate", metrics.WinRate),
		zap.Float64("max_drawdown_percent", metrics.MaxDrawdownPercent),
	)

	return &Result{
		Config:      cfg,
		Trades:      trades,
		EquityCurve: equityCurve,
		Metrics:     metrics,
	}, nil
}

// closeReason returns the reason a position on side closes given the latest
// action, or "" if it stays open. Explicit exits and reversals both close.
func closeReason(side ledger.Side, action strategy.Action) string {
	switch {
	case side == ledger.Long && action == strategy.ExitLong:
		return "Signal Exit (ExitLong)"
	case side == ledger.Short && action == strategy.ExitShort:
		return "Signal Exit (ExitShort)"
	case side == ledger.Long && action == strategy.EnterShort:
		return "Reversal (EnterShort)"
	case side == ledger.Short && action == strategy.EnterLong:
		return "Reversal (EnterLong)"
	default:
		return ""
	}
}
