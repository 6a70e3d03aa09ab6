package ledger

import (
	"fmt"
	"time"
)

// Portfolio is a point-in-time snapshot of a margin ledger.
type Portfolio struct {
	InitialBalance  float64
	CurrentBalance  float64
	TotalPnl        float64
	TotalPnlPercent float64
	OpenPositions   []Position
	ClosedTrades    []Trade
}

// MarginLedger tracks leveraged positions against a shared balance. Opening a
// position locks its margin out of the balance; closing releases the margin
// plus net PnL. Multiple same-direction positions per symbol may coexist
// (pyramiding); closes are FIFO per symbol.
type MarginLedger struct {
	initialBalance float64
	balance        float64
	feeRate        float64
	feePolicy      FeePolicy
	open           []Position
	closed         []Trade
	tradeSeq       int64
}

// NewMarginLedger creates a margin ledger with the given starting balance and
// fee configuration.
func NewMarginLedger(initialBalance, feeRate float64, policy FeePolicy) *MarginLedger {
	return &MarginLedger{
		initialBalance: initialBalance,
		balance:        initialBalance,
		feeRate:        feeRate,
		feePolicy:      policy,
	}
}

// Balance returns the liquid balance, excluding margin locked in open positions.
func (l *MarginLedger) Balance() float64 {
	return l.balance
}

// LockedMargin returns the total margin held against open positions.
func (l *MarginLedger) LockedMargin() float64 {
	total := 0.0
	for _, p := range l.open {
		total += p.Margin()
	}
	return total
}

// Open locks the position's margin and adds it to the book.
func (l *MarginLedger) Open(pos Position) error {
	margin := pos.Margin()
	if margin > l.balance {
		return fmt.Errorf("%w: required %.2f, available %.2f", ErrInsufficientBalance, margin, l.balance)
	}

	l.balance -= margin
	l.open = append(l.open, pos)
	return nil
}

// Close settles the first open position for symbol (FIFO) at exitPrice,
// releasing its margin plus net PnL back into the balance.
func (l *MarginLedger) Close(symbol string, exitPrice float64, exitTime time.Time, reason string) (Trade, error) {
	idx := -1
	for i, p := range l.open {
		if p.Symbol == symbol {
			idx = i
			break
		}
	}
	if idx == -1 {
		return Trade{}, fmt.Errorf("%w: %s", ErrNoOpenPosition, symbol)
	}

	pos := l.open[idx]
	gross := GrossPnL(pos.Side, pos.EntryPrice, exitPrice, pos.Quantity)
	entryNotional := pos.EntryPrice * pos.Quantity
	exitNotional := exitPrice * pos.Quantity
	net := gross - TradeFee(entryNotional, exitNotional, l.feeRate, l.feePolicy)

	margin := pos.Margin()
	l.balance += margin + net
	l.tradeSeq++

	pnlPercent := 0.0
	if margin != 0 {
		pnlPercent = net / margin * 100
	}

	trade := Trade{
		ID:         l.tradeSeq,
		Symbol:     pos.Symbol,
		Side:       pos.Side,
		EntryTime:  pos.EntryTime,
		EntryPrice: pos.EntryPrice,
		ExitTime:   exitTime,
		ExitPrice:  exitPrice,
		Quantity:   pos.Quantity,
		Pnl:        net,
		PnlPercent: pnlPercent,
		Reason:     reason,
	}

	l.open = append(l.open[:idx], l.open[idx+1:]...)
	l.closed = append(l.closed, trade)
	return trade, nil
}

// OpenPosition returns the first open position for symbol, or nil.
func (l *MarginLedger) OpenPosition(symbol string) *Position {
	for i := range l.open {
		if l.open[i].Symbol == symbol {
			return &l.open[i]
		}
	}
	return nil
}

// Portfolio returns a snapshot of balances, open positions and closed trades.
func (l *MarginLedger) Portfolio() Portfolio {
	totalPnl := 0.0
	for _, t := range l.closed {
		totalPnl += t.Pnl
	}

	totalPnlPercent := 0.0
	if l.initialBalance != 0 {
		equity := l.balance + l.LockedMargin()
		totalPnlPercent = (equity - l.initialBalance) / l.initialBalance * 100
	}

	open := make([]Position, len(l.open))
	copy(open, l.open)
	closed := make([]Trade, len(l.closed))
	copy(closed, l.closed)

	return Portfolio{
		InitialBalance:  l.initialBalance,
		CurrentBalance:  l.balance,
		TotalPnl:        totalPnl,
		TotalPnlPercent: totalPnlPercent,
		OpenPositions:   open,
		ClosedTrades:    closed,
	}
}
