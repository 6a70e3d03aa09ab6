package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"binance-backtest-bot-go/internal/backtest"
	"binance-backtest-bot-go/internal/models"
)

// NewDatabase creates a new database connection and performs auto-migration.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates or updates the schema. Runs accumulate across
// invocations so past results stay queryable.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.BacktestRun{}, &models.TradeRecord{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

// SaveBacktestResult persists a finished run with all of its trades.
func SaveBacktestResult(db *gorm.DB, strategy string, result *backtest.Result) (*models.BacktestRun, error) {
	finalBalance := result.Config.InitialCapital
	if n := len(result.EquityCurve); n > 0 {
		finalBalance = result.EquityCurve[n-1].Balance
	}

	run := &models.BacktestRun{
		Symbol:             result.Config.Symbol,
		Interval:           result.Config.Interval,
		Strategy:           strategy,
		StartDate:          result.Config.StartDate,
		EndDate:            result.Config.EndDate,
		InitialCapital:     result.Config.InitialCapital,
		FinalBalance:       finalBalance,
		TotalTrades:        result.Metrics.TotalTrades,
		WinningTrades:      result.Metrics.WinningTrades,
		LosingTrades:       result.Metrics.LosingTrades,
		WinRate:            result.Metrics.WinRate,
		TotalPnl:           result.Metrics.TotalPnl,
		TotalPnlPercent:    result.Metrics.TotalPnlPercent,
		ProfitFactor:       result.Metrics.ProfitFactor,
		MaxDrawdownPercent: result.Metrics.MaxDrawdownPercent,
	}

	for _, t := range result.Trades {
		run.Trades = append(run.Trades, models.TradeRecord{
			TradeID:           t.ID,
			Symbol:            t.Symbol,
			Side:              string(t.Side),
			EntryTime:         t.EntryTime,
			EntryPrice:        t.EntryPrice,
			ExitTime:          t.ExitTime,
			ExitPrice:         t.ExitPrice,
			Quantity:          t.Quantity,
			Pnl:               t.Pnl,
			PnlPercent:        t.PnlPercent,
			Reason:            t.Reason,
			CumulativeBalance: t.CumulativeBalance,
		})
	}

	if err := db.Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to save backtest run: %w", err)
	}
	return run, nil
}
