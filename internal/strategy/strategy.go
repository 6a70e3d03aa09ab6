package strategy

import (
	"fmt"

	"binance-backtest-bot-go/internal/market"
)

// Strategy consumes a window of candles and emits a trading signal for the
// most recent one. Analyze is called once per candle with a bounded lookback
// window; strategies must be able to recompute from the window alone.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// OnInit gives the strategy a chance to reset internal state before a run.
	OnInit() error

	// Analyze inspects the candle window and returns a signal for the latest
	// candle.
	Analyze(candles []market.Candle) (Signal, error)
}

// Strategy names accepted by New.
const (
	NameMacdHistogram      = "MACD_HISTOGRAM"
	NameMacdRsi            = "MACD_RSI"
	NameVolatilityBreakout = "VOLATILITY_BREAKOUT"
)

// New returns the strategy registered under name. The set of strategies is
// closed; unknown names are an error rather than a silent default.
func New(name string) (Strategy, error) {
	switch name {
	case NameMacdHistogram:
		return NewMacdHistogram(), nil
	case NameMacdRsi:
		return NewMacdRsi(), nil
	case NameVolatilityBreakout:
		return NewVolatilityBreakout(), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

// holdSignal builds the default no-action signal for the latest candle.
func holdSignal(candles []market.Candle) Signal {
	last := candles[len(candles)-1]
	return Signal{
		Action:    Hold,
		Price:     last.Close,
		Timestamp: last.Timestamp,
	}
}
