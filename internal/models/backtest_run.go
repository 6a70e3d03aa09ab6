package models

import (
	"time"

	"gorm.io/gorm"
)

// BacktestRun represents one completed backtest in the database, with its
// configuration and aggregate statistics flattened onto the row.
type BacktestRun struct {
	gorm.Model
	Symbol             string    `json:"symbol"`
	Interval           string    `json:"interval"`
	Strategy           string    `json:"strategy"`
	StartDate          time.Time `json:"start_date"`
	EndDate            time.Time `json:"end_date"`
	InitialCapital     float64   `json:"initial_capital"`
	FinalBalance       float64   `json:"final_balance"`
	TotalTrades        int       `json:"total_trades"`
	WinningTrades      int       `json:"winning_trades"`
	LosingTrades       int       `json:"losing_trades"`
	WinRate            float64   `json:"win_rate"`
	TotalPnl           float64   `json:"total_pnl"`
	TotalPnlPercent    float64   `json:"total_pnl_percent"`
	ProfitFactor       float64   `json:"profit_factor"`
	MaxDrawdownPercent float64   `json:"max_drawdown_percent"`

	Trades []TradeRecord `json:"trades" gorm:"foreignKey:RunID"`
}
