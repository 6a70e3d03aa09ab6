package models

import (
	"time"

	"gorm.io/gorm"
)

// TradeRecord represents a single settled round trip belonging to a run.
type TradeRecord struct {
	gorm.Model
	RunID             uint      `json:"run_id" gorm:"index"`
	TradeID           int64     `json:"trade_id"`
	Symbol            string    `json:"symbol"`
	Side              string    `json:"side"` // "LONG" or "SHORT"
	EntryTime         time.Time `json:"entry_time"`
	EntryPrice        float64   `json:"entry_price"`
	ExitTime          time.Time `json:"exit_time"`
	ExitPrice         float64   `json:"exit_price"`
	Quantity          float64   `json:"quantity"`
	Pnl               float64   `json:"pnl"`
	PnlPercent        float64   `json:"pnl_percent"`
	Reason            string    `json:"reason"`
	CumulativeBalance float64   `json:"cumulative_balance"`
}
