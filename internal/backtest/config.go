package backtest

import (
	"context"
	"time"

	"binance-backtest-bot-go/internal/ledger"
	"binance-backtest-bot-go/internal/market"
)

// Config parameterizes a single backtest run.
type Config struct {
	Symbol          string
	Interval        string
	StartDate       time.Time
	EndDate         time.Time
	InitialCapital  float64
	FeePercent      float64
	SlippagePercent float64
	FeePolicy       ledger.FeePolicy
}

// HistoricalDataLoader supplies the time-ordered candle sequence a run
// replays. Implementations own pagination and rate limiting; the engine only
// requires the result be ordered and final.
type HistoricalDataLoader interface {
	LoadCandles(ctx context.Context, symbol, interval string, start, end time.Time) ([]market.Candle, error)
}
