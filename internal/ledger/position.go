package ledger

import (
	"errors"
	"time"
)

// Side is the direction of an open exposure.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Long {
		return Short
	}
	return Long
}

var (
	// ErrPositionAlreadyOpen is returned when a single-position ledger is asked
	// to open while a position already exists.
	ErrPositionAlreadyOpen = errors.New("position already open")
	// ErrNoOpenPosition is returned when a close finds nothing to close.
	ErrNoOpenPosition = errors.New("no open position")
	// ErrInsufficientBalance is returned when the required margin exceeds the
	// available balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Position is an open exposure. Leverage is only meaningful in margin mode.
type Position struct {
	Symbol     string
	Side       Side
	EntryPrice float64
	Quantity   float64
	Leverage   float64
	EntryTime  time.Time
}

// Margin returns the capital locked to support this position.
// Leverage of zero is treated as 1x.
func (p Position) Margin() float64 {
	lev := p.Leverage
	if lev <= 0 {
		lev = 1
	}
	return p.EntryPrice * p.Quantity / lev
}

// Trade is an immutable record of a closed position. CumulativeBalance is
// populated by the reinvestment ledger only.
type Trade struct {
	ID                int64
	Symbol            string
	Side              Side
	EntryTime         time.Time
	EntryPrice        float64
	ExitTime          time.Time
	ExitPrice         float64
	Quantity          float64
	Pnl               float64
	PnlPercent        float64
	Reason            string
	CumulativeBalance float64
}
