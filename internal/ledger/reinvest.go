package ledger

import (
	"fmt"

	"binance-backtest-bot-go/internal/market"
)

// ReinvestConfig parameterizes a reinvestment-mode ledger run.
type ReinvestConfig struct {
	Symbol          string
	InitialCapital  float64
	FeePercent      float64
	SlippagePercent float64
	FeePolicy       FeePolicy
}

// ReinvestLedger tracks at most one open position and a running balance for a
// single backtest run. Every entry invests the full current balance; the
// balance is only adjusted when a position closes.
type ReinvestLedger struct {
	cfg      ReinvestConfig
	balance  float64
	position *Position
	tradeSeq int64
}

// NewReinvestLedger creates a ledger with the run's initial capital.
func NewReinvestLedger(cfg ReinvestConfig) *ReinvestLedger {
	return &ReinvestLedger{
		cfg:     cfg,
		balance: cfg.InitialCapital,
	}
}

// Reset returns the ledger to its initial state for a fresh run.
func (l *ReinvestLedger) Reset(cfg ReinvestConfig) {
	l.cfg = cfg
	l.balance = cfg.InitialCapital
	l.position = nil
	l.tradeSeq = 0
}

// Balance returns the current realized balance.
func (l *ReinvestLedger) Balance() float64 {
	return l.balance
}

// Position returns the open position, or nil.
func (l *ReinvestLedger) Position() *Position {
	return l.position
}

// Open enters a position at the candle close, adjusted for slippage.
// The invested amount determines quantity; the balance itself is untouched
// until close.
func (l *ReinvestLedger) Open(side Side, candle market.Candle, investAmount float64) (*Position, error) {
	if l.position != nil {
		return nil, fmt.Errorf("%w: %s %s", ErrPositionAlreadyOpen, l.position.Side, l.position.Symbol)
	}

	price := FillPrice(candle.Close, side, Entry, l.cfg.SlippagePercent)
	if price <= 0 {
		return nil, fmt.Errorf("invalid entry price %f for %s", price, l.cfg.Symbol)
	}

	l.position = &Position{
		Symbol:     l.cfg.Symbol,
		Side:       side,
		EntryPrice: price,
		Quantity:   investAmount / price,
		EntryTime:  candle.Time(),
	}
	return l.position, nil
}

// Close exits the open position at the candle close, adjusted for slippage,
// and settles net PnL into the balance.
func (l *ReinvestLedger) Close(candle market.Candle, reason string) (Trade, error) {
	if l.position == nil {
		return Trade{}, fmt.Errorf("%w: %s", ErrNoOpenPosition, l.cfg.Symbol)
	}

	pos := *l.position
	exitPrice := FillPrice(candle.Close, pos.Side, Exit, l.cfg.SlippagePercent)

	gross := GrossPnL(pos.Side, pos.EntryPrice, exitPrice, pos.Quantity)
	entryNotional := pos.EntryPrice * pos.Quantity
	exitNotional := exitPrice * pos.Quantity
	net := gross - TradeFee(entryNotional, exitNotional, l.cfg.FeePercent, l.cfg.FeePolicy)

	l.balance += net
	l.tradeSeq++

	pnlPercent := 0.0
	if entryNotional != 0 {
		pnlPercent = net / entryNotional * 100
	}

	trade := Trade{
		ID:                l.tradeSeq,
		Symbol:            pos.Symbol,
		Side:              pos.Side,
		EntryTime:         pos.EntryTime,
		EntryPrice:        pos.EntryPrice,
		ExitTime:          candle.Time(),
		ExitPrice:         exitPrice,
		Quantity:          pos.Quantity,
		Pnl:               net,
		PnlPercent:        pnlPercent,
		Reason:            reason,
		CumulativeBalance: l.balance,
	}

	l.position = nil
	return trade, nil
}

// UnrealizedPnL marks the open position to the given price. Zero if flat.
func (l *ReinvestLedger) UnrealizedPnL(price float64) float64 {
	if l.position == nil {
		return 0
	}
	return GrossPnL(l.position.Side, l.position.EntryPrice, price, l.position.Quantity)
}
