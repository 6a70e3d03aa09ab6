package backtest

import (
	"math"
	"time"

	"binance-backtest-bot-go/internal/ledger"
)

// EquityPoint is one mark-to-market observation of the run's balance.
type EquityPoint struct {
	Timestamp       time.Time
	Balance         float64
	DrawdownPercent float64
}

// Metrics are the aggregate statistics of a finished run.
type Metrics struct {
	TotalTrades     int
	WinningTrades   int
	LosingTrades    int
	WinRate         float64
	TotalPnl        float64
	TotalPnlPercent float64
	AverageWin      float64
	AverageLoss     float64
	// ProfitFactor is +Inf when there are wins and no losses, 0 when there
	// are no trades at all.
	ProfitFactor       float64
	MaxDrawdownPercent float64
}

// Result is everything a run produces.
type Result struct {
	Config      Config
	Trades      []ledger.Trade
	EquityCurve []EquityPoint
	Metrics     Metrics
}

// applyDrawdown fills in DrawdownPercent for every point by tracking the
// running equity peak.
func applyDrawdown(curve []EquityPoint) {
	peak := math.Inf(-1)
	for i := range curve {
		if curve[i].Balance > peak {
			peak = curve[i].Balance
		}
		curve[i].DrawdownPercent = (peak - curve[i].Balance) / peak * 100
	}
}

// computeMetrics aggregates trades and the equity curve into run statistics.
func computeMetrics(cfg Config, trades []ledger.Trade, curve []EquityPoint) Metrics {
	m := Metrics{TotalTrades: len(trades)}

	sumWins := 0.0
	sumLosses := 0.0
	for _, t := range trades {
		if t.Pnl > 0 {
			m.WinningTrades++
			sumWins += t.Pnl
		} else {
			m.LosingTrades++
			sumLosses += t.Pnl
		}
	}

	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	}
	if m.WinningTrades > 0 {
		m.AverageWin = sumWins / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = sumLosses / float64(m.LosingTrades)
	}

	switch {
	case sumLosses != 0:
		m.ProfitFactor = sumWins / math.Abs(sumLosses)
	case m.WinningTrades > 0:
		m.ProfitFactor = math.Inf(1)
	default:
		m.ProfitFactor = 0
	}

	if len(curve) > 0 {
		final := curve[len(curve)-1].Balance
		m.TotalPnl = final - cfg.InitialCapital
		if cfg.InitialCapital != 0 {
			m.TotalPnlPercent = m.TotalPnl / cfg.InitialCapital * 100
		}
		for _, p := range curve {
			if p.DrawdownPercent > m.MaxDrawdownPercent {
				m.MaxDrawdownPercent = p.DrawdownPercent
			}
		}
	}

	return m
}
