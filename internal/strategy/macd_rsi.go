package strategy

import "binance-backtest-bot-go/internal/market"

// MacdRsi enters on MACD line crossovers filtered by RSI and exits open
// positions on the opposite cross.
type MacdRsi struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
	rsiPeriod    int
}

// NewMacdRsi creates the strategy with 12/26/9 MACD and a 14-period RSI.
func NewMacdRsi() *MacdRsi {
	return &MacdRsi{
		fastPeriod:   12,
		slowPeriod:   26,
		signalPeriod: 9,
		rsiPeriod:    14,
	}
}

func (s *MacdRsi) Name() string { return NameMacdRsi }

func (s *MacdRsi) OnInit() error { return nil }

func (s *MacdRsi) Analyze(candles []market.Candle) (Signal, error) {
	signal := holdSignal(candles)

	// MACD needs roughly slow+signal candles to converge.
	if len(candles) < 50 {
		return signal, nil
	}

	prices := closePrices(candles)
	macd := MACDSeries(prices, s.fastPeriod, s.slowPeriod, s.signalPeriod)
	if len(macd) < 2 {
		return signal, nil
	}

	current := macd[len(macd)-1]
	prev := macd[len(macd)-2]
	rsi := RSI(prices, s.rsiPeriod)

	goldenCross := prev.MACD <= prev.Signal && current.MACD > current.Signal
	deadCross := prev.MACD >= prev.Signal && current.MACD < current.Signal

	diagnostics := func(reason string) map[string]any {
		return map[string]any{
			"reason": reason,
			"macd":   current.MACD,
			"signal": current.Signal,
			"rsi":    rsi,
		}
	}

	switch {
	case goldenCross && rsi < 70:
		signal.Action = EnterLong
		signal.Metadata = diagnostics("MACD Golden Cross + RSI < 70")
	case deadCross && rsi > 30:
		signal.Action = EnterShort
		signal.Metadata = diagnostics("MACD Dead Cross + RSI > 30")
	case deadCross:
		signal.Action = ExitLong
		signal.Metadata = diagnostics("MACD Dead Cross")
	case goldenCross:
		signal.Action = ExitShort
		signal.Metadata = diagnostics("MACD Golden Cross")
	}

	return signal, nil
}
