package strategy

import (
	"time"

	"binance-backtest-bot-go/internal/market"
)

// VolatilityBreakout enters long when the price breaks above today's open
// plus a fraction K of yesterday's high-low range. Long-only; exits come from
// end-of-run liquidation or an operator-side stop.
type VolatilityBreakout struct {
	k float64
}

// NewVolatilityBreakout creates the strategy with the classic K of 0.5.
func NewVolatilityBreakout() *VolatilityBreakout {
	return &VolatilityBreakout{k: 0.5}
}

func (s *VolatilityBreakout) Name() string { return NameVolatilityBreakout }

func (s *VolatilityBreakout) OnInit() error { return nil }

func (s *VolatilityBreakout) Analyze(candles []market.Candle) (Signal, error) {
	signal := holdSignal(candles)
	if len(candles) < 2 {
		return signal, nil
	}

	latest := candles[len(candles)-1]
	today := utcDay(latest.Timestamp)

	// Walk backwards collecting today's candles and the previous day's range.
	var todayOpen float64
	prevHigh := 0.0
	prevLow := 0.0
	var prevDay time.Time
	seenPrev := false

	for i := len(candles) - 1; i >= 0; i-- {
		c := candles[i]
		day := utcDay(c.Timestamp)

		if day.Equal(today) {
			todayOpen = c.Open
			continue
		}
		if !seenPrev {
			prevDay = day
			prevHigh = c.High
			prevLow = c.Low
			seenPrev = true
			continue
		}
		if !day.Equal(prevDay) {
			break
		}
		if c.High > prevHigh {
			prevHigh = c.High
		}
		if c.Low < prevLow {
			prevLow = c.Low
		}
	}

	if !seenPrev || todayOpen == 0 {
		return signal, nil
	}

	rangeSize := prevHigh - prevLow
	target := todayOpen + rangeSize*s.k

	if latest.Close > target {
		signal.Action = EnterLong
		signal.Metadata = map[string]any{
			"reason":       "Volatility Breakout",
			"target_price": target,
			"today_open":   todayOpen,
			"prev_high":    prevHigh,
			"prev_low":     prevLow,
		}
	}

	return signal, nil
}

// utcDay truncates a millisecond timestamp to its UTC calendar day.
func utcDay(ts int64) time.Time {
	t := time.UnixMilli(ts).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
